package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"syntra-ledger/internal/gateway/middleware"
	"syntra-ledger/internal/ledger"
	"syntra-ledger/internal/ledger/balance"
	"syntra-ledger/internal/ledger/billing"
	"syntra-ledger/internal/ledger/stock"
)

const requestTimeout = 15 * time.Second

type LedgerHTTPHandler struct {
	engine *billing.Engine
	reader ledger.Reader
	logger *slog.Logger
}

func NewLedgerHTTPHandler(engine *billing.Engine, reader ledger.Reader, logger *slog.Logger) *LedgerHTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerHTTPHandler{
		engine: engine,
		reader: reader,
		logger: logger.With("component", "gateway"),
	}
}

// Request structs
type CreateBillItemRequest struct {
	ProductID int64            `json:"product_id" binding:"required,gt=0"`
	Quantity  int64            `json:"quantity" binding:"required,gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type CreateBillRequest struct {
	CustomerID  *int64                  `json:"customer_id,omitempty"`
	PaymentMode string                  `json:"payment_mode" binding:"required"`
	InterState  bool                    `json:"inter_state"`
	Remarks     string                  `json:"remarks"`
	Items       []CreateBillItemRequest `json:"items" binding:"required,min=1,dive"`
}

type ReturnItemRequest struct {
	OriginalLineID int64 `json:"original_line_id" binding:"required,gt=0"`
	Quantity       int64 `json:"quantity" binding:"required,gt=0"`
}

type CreateBillReturnRequest struct {
	OriginalDocumentID int64               `json:"original_document_id" binding:"required,gt=0"`
	PaymentMode        string              `json:"payment_mode"`
	Reason             string              `json:"reason"`
	Items              []ReturnItemRequest `json:"items" binding:"required,min=1,dive"`
}

type ReceiptItemRequest struct {
	ProductID int64           `json:"product_id" binding:"required,gt=0"`
	Quantity  int64           `json:"quantity" binding:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type CreateStockReceiptRequest struct {
	Remarks string               `json:"remarks"`
	Items   []ReceiptItemRequest `json:"items" binding:"required,min=1,dive"`
}

type StockLevelResponse struct {
	ProductID    int64 `json:"product_id"`
	CurrentStock int64 `json:"current_stock"`
	LedgerSum    int64 `json:"ledger_sum"`
	InSync       bool  `json:"in_sync"`
}

type BalanceResponse struct {
	CustomerID         int64  `json:"customer_id"`
	OutstandingBalance string `json:"outstanding_balance"`
}

func actorFrom(c *gin.Context) billing.Actor {
	return billing.Actor{
		UserID:   c.GetInt64(middleware.UserIDKey),
		Username: c.GetString(middleware.UsernameKey),
	}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid "+name))
		return 0, false
	}
	return id, true
}

// --- Document Handlers ---

func (h *LedgerHTTPHandler) CreateBill(c *gin.Context) {
	var req CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	lines := make([]billing.SaleLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, billing.SaleLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	doc, err := h.engine.CreateSale(ctx, billing.SaleRequest{
		Actor:       actorFrom(c),
		CustomerID:  req.CustomerID,
		PaymentMode: req.PaymentMode,
		InterState:  req.InterState,
		Remarks:     req.Remarks,
		Lines:       lines,
	})
	if err != nil {
		handleLedgerError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Bill created successfully", doc))
}

func (h *LedgerHTTPHandler) CreateBillReturn(c *gin.Context) {
	var req CreateBillReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	lines := make([]billing.ReturnLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, billing.ReturnLine{OriginalLineID: item.OriginalLineID, Quantity: item.Quantity})
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	doc, err := h.engine.CreateReturn(ctx, billing.ReturnRequest{
		Actor:              actorFrom(c),
		OriginalDocumentID: req.OriginalDocumentID,
		PaymentMode:        req.PaymentMode,
		Reason:             req.Reason,
		Lines:              lines,
	})
	if err != nil {
		handleLedgerError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Return processed successfully", doc))
}

func (h *LedgerHTTPHandler) CreateStockReceipt(c *gin.Context) {
	var req CreateStockReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	lines := make([]billing.ReceiptLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, billing.ReceiptLine{ProductID: item.ProductID, Quantity: item.Quantity, UnitCost: item.UnitCost})
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	doc, err := h.engine.ReceiveStock(ctx, billing.ReceiptRequest{
		Actor:   actorFrom(c),
		Remarks: req.Remarks,
		Lines:   lines,
	})
	if err != nil {
		handleLedgerError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Stock received successfully", doc))
}

func (h *LedgerHTTPHandler) GetDocument(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	doc, err := h.reader.GetDocument(ctx, id)
	if err != nil {
		handleLedgerError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Document retrieved successfully", doc))
}

// --- Stock Handlers ---

func (h *LedgerHTTPHandler) GetProductStock(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	current, err := stock.CurrentStock(ctx, h.reader, id)
	if err != nil {
		handleLedgerError(c, h.logger, err)
		return
	}
	sum, err := stock.LedgerSum(ctx, h.reader, id)
	if err != nil {
		handleLedgerError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Stock level retrieved successfully", StockLevelResponse{
		ProductID:    id,
		CurrentStock: current,
		LedgerSum:    sum,
		InSync:       current == sum,
	}))
}

func (h *LedgerHTTPHandler) ListProductMovements(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	movements, err := h.reader.ListMovements(ctx, id)
	if err != nil {
		handleLedgerError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Stock movements retrieved successfully", movements, gin.H{
		"product_id": id,
		"count":      len(movements),
	}))
}

// --- Customer Handlers ---

func (h *LedgerHTTPHandler) GetCustomerBalance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	outstanding, err := balance.Outstanding(ctx, h.reader, id)
	if err != nil {
		handleLedgerError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Balance retrieved successfully", BalanceResponse{
		CustomerID:         id,
		OutstandingBalance: outstanding.StringFixed(2),
	}))
}
