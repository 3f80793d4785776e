package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"syntra-ledger/internal/ledger"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

func successWithMetaResponse(message string, data interface{}, meta interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	}
}

// StatusFor maps a ledger error onto its HTTP status.
func StatusFor(err error) int {
	switch ledger.Kind(err) {
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindValidation:
		return http.StatusUnprocessableEntity
	case ledger.KindExcessReturn, ledger.KindInsufficientStock:
		return http.StatusConflict
	case ledger.KindSequenceConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func handleLedgerError(c *gin.Context, logger *slog.Logger, err error) {
	status := StatusFor(err)
	resp := errorResponse(err.Error())
	resp.Error = ledger.Kind(err)

	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		resp.Data = gin.H{"field": ve.Field, "reason": ve.Reason}
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		resp.Message = "Internal server error"
	}
	c.AbortWithStatusJSON(status, resp)
}
