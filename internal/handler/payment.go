package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"ridecore/internal/domain"
	"ridecore/internal/payment"
	"ridecore/internal/service"
)

const maxCallbackBody = 64 << 10

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
	parser         *payment.CallbackParser
	appURL         string
}

// NewPaymentHandler creates a new PaymentHandler. appURL is where browsers
// returning from a provider page are sent.
func NewPaymentHandler(paymentService *service.PaymentService, parser *payment.CallbackParser, appURL string) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		parser:         parser,
		appURL:         strings.TrimRight(appURL, "/"),
	}
}

// StartPaymentRequest is the HTTP request body for opening a payment.
type StartPaymentRequest struct {
	PaymentMethod string `json:"payment_method,omitempty"` // defaults to the ride's method
}

// CallbackResponse is returned to providers posting a callback.
type CallbackResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// StartPayment handles POST /v1/rides/:id/payments
func (h *PaymentHandler) StartPayment(c *gin.Context) {
	var req StartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return
	}

	var method domain.PaymentMethod
	if req.PaymentMethod != "" {
		m, err := service.ValidatePaymentMethod(req.PaymentMethod)
		if err != nil {
			respondError(c, err)
			return
		}
		method = m
	}

	result, err := h.paymentService.BeginPayment(c.Request.Context(), service.BeginPaymentRequest{
		RideID: c.Param("id"),
		Method: method,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, newPaymentResponse(result))
}

// ListRidePayments handles GET /v1/rides/:id/payments
func (h *PaymentHandler) ListRidePayments(c *gin.Context) {
	transactions, err := h.paymentService.ListForRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TransactionResponse, 0, len(transactions))
	for _, t := range transactions {
		response = append(response, newTransactionResponse(t))
	}
	respondJSON(c, http.StatusOK, response)
}

// GetPayment handles GET /v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	txn, err := h.paymentService.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newTransactionResponse(txn))
}

// ConfirmCash handles POST /v1/payments/:id/confirm-cash
func (h *PaymentHandler) ConfirmCash(c *gin.Context) {
	txn, err := h.paymentService.ConfirmCash(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newTransactionResponse(txn))
}

// Callback handles GET|POST /v1/payments/callback?provider=&tx=&status=
//
// Browsers returning from a provider page (GET) are redirected back to the
// app; provider server-to-server notifications (POST) receive JSON.
func (h *PaymentHandler) Callback(c *gin.Context) {
	browser := c.Request.Method == http.MethodGet

	var body []byte
	if c.Request.Body != nil && !browser {
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
		if err != nil {
			badRequest(c, "unreadable callback body")
			return
		}
		body = data
	}

	cb, err := h.parser.Parse(c.Request.URL.Query(), body)
	if err != nil {
		log.Printf("[PAYMENT] rejected callback %s: %v", c.Request.URL.RawQuery, err)
		h.callbackFailed(c, browser, c.Query("tx"), err)
		return
	}

	ctx := c.Request.Context()
	var txn *domain.Transaction
	if cb.Reported() {
		txn, err = h.paymentService.ApplyCallback(ctx, cb.TransactionID, cb.Outcome, cb.ExternalRef)
	} else {
		txn, err = h.paymentService.GetTransaction(ctx, cb.TransactionID)
	}
	if err != nil {
		h.callbackFailed(c, browser, cb.TransactionID, err)
		return
	}

	if browser {
		c.Redirect(http.StatusFound, h.returnURL(string(txn.Status), txn.ID))
		return
	}
	respondJSON(c, http.StatusOK, CallbackResponse{
		TransactionID: txn.ID,
		Status:        string(txn.Status),
	})
}

func (h *PaymentHandler) callbackFailed(c *gin.Context, browser bool, txID string, err error) {
	if browser {
		c.Redirect(http.StatusFound, h.returnURL("error", txID))
		return
	}
	respondError(c, err)
}

func (h *PaymentHandler) returnURL(status, txID string) string {
	q := url.Values{}
	q.Set("payment", status)
	if txID != "" {
		q.Set("tx", txID)
	}
	return h.appURL + "/ride?" + q.Encode()
}
