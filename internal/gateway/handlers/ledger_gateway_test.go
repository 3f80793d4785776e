package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syntra-ledger/internal/database/models"
	"syntra-ledger/internal/gateway/middleware"
	"syntra-ledger/internal/ledger"
	"syntra-ledger/internal/ledger/billing"
	"syntra-ledger/internal/store/memory"
	"syntra-ledger/internal/utils"
)

var secret = []byte("gateway-test")

type testServer struct {
	router   *gin.Engine
	token    string
	product  int64
	customer int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	ts := &testServer{
		product: store.AddProduct(models.Product{
			ProductCode: "RICE-5KG",
			ProductName: "Rice 5kg",
			UnitPrice:   decimal.RequireFromString("100"),
			CostPrice:   decimal.RequireFromString("70"),
			TaxRate:     decimal.RequireFromString("0.18"),
		}),
		customer: store.AddCustomer(models.Customer{CustomerName: "Meena"}),
	}

	cfg := billing.DefaultConfig()
	cfg.RetryInitialInterval = time.Millisecond
	engine := billing.NewEngine(store, cfg, billing.WithClock(func() time.Time {
		return time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	}))
	h := NewLedgerHTTPHandler(engine, store, nil)

	r := gin.New()
	api := r.Group("/api/v1", middleware.JWTAuth(secret))
	api.POST("/bills", h.CreateBill)
	api.POST("/bill-returns", h.CreateBillReturn)
	api.POST("/stock-receipts", h.CreateStockReceipt)
	api.GET("/documents/:id", h.GetDocument)
	api.GET("/products/:id/stock", h.GetProductStock)
	api.GET("/products/:id/movements", h.ListProductMovements)
	api.GET("/customers/:id/balance", h.GetCustomerBalance)
	ts.router = r

	token, _, err := utils.GenerateToken(secret, 7, "cashier", time.Hour)
	require.NoError(t, err)
	ts.token = token
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.token)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

// document decodes the Data field of a document response.
func document(t *testing.T, resp APIResponse) models.Document {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var doc models.Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestBillAndReturnOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	w, resp := ts.do(t, http.MethodPost, "/api/v1/stock-receipts", gin.H{
		"items": []gin.H{{"product_id": ts.product, "quantity": 50, "unit_cost": "70"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "GRN-20261014-001", document(t, resp).DocumentNumber)

	w, resp = ts.do(t, http.MethodPost, "/api/v1/bills", gin.H{
		"customer_id":  ts.customer,
		"payment_mode": "CREDIT",
		"items":        []gin.H{{"product_id": ts.product, "quantity": 10}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bill := document(t, resp)
	assert.Equal(t, "BILL-20261014-001", bill.DocumentNumber)
	assert.True(t, decimal.RequireFromString("1180").Equal(bill.GrandTotal))
	assert.EqualValues(t, 7, bill.CreatedBy)

	w, resp = ts.do(t, http.MethodPost, "/api/v1/bill-returns", gin.H{
		"original_document_id": bill.ID,
		"reason":               "torn bags",
		"items":                []gin.H{{"original_line_id": bill.Lines[0].ID, "quantity": 4}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ret := document(t, resp)
	assert.Equal(t, "BRET-20261014-001", ret.DocumentNumber)
	assert.True(t, decimal.RequireFromString("36").Equal(ret.CGST))

	w, resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/products/%d/stock", ts.product), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"product_id": float64(ts.product), "current_stock": 44.0, "ledger_sum": 44.0, "in_sync": true}, resp.Data)

	w, resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/products/%d/movements", ts.product), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 3)
	assert.Equal(t, 3.0, resp.Meta.(map[string]any)["count"])

	w, resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/customers/%d/balance", ts.customer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "708.00", resp.Data.(map[string]any)["outstanding_balance"])

	w, resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/documents/%d", ret.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ret.DocumentNumber, document(t, resp).DocumentNumber)
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t)

	w, resp := ts.do(t, http.MethodPost, "/api/v1/bills", gin.H{
		"payment_mode": "CASH",
		"items":        []gin.H{{"product_id": ts.product, "quantity": 1}},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, ledger.KindInsufficientStock, resp.Error)

	w, resp = ts.do(t, http.MethodPost, "/api/v1/bills", gin.H{
		"payment_mode": "BARTER",
		"items":        []gin.H{{"product_id": ts.product, "quantity": 1}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, ledger.KindValidation, resp.Error)

	w, _ = ts.do(t, http.MethodPost, "/api/v1/bills", gin.H{"payment_mode": "CASH"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = ts.do(t, http.MethodGet, "/api/v1/documents/404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ledger.KindNotFound, resp.Error)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/customers/abc/balance", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ledger.NotFoundError{Entity: "product", ID: 1}, http.StatusNotFound},
		{ledger.NewValidationError("lines", "empty"), http.StatusUnprocessableEntity},
		{&ledger.ExcessReturnError{}, http.StatusConflict},
		{fmt.Errorf("sale: %w", &ledger.InsufficientStockError{}), http.StatusConflict},
		{&ledger.SequenceConflictError{Err: ledger.ErrTransient}, http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
