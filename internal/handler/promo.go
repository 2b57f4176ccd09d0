package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridecore/internal/domain"
	"ridecore/internal/service"
)

// PromoHandler handles HTTP requests for promo codes.
type PromoHandler struct {
	promoService *service.PromoService
}

// NewPromoHandler creates a new PromoHandler.
func NewPromoHandler(promoService *service.PromoService) *PromoHandler {
	return &PromoHandler{promoService: promoService}
}

// CreatePromoRequest is the HTTP request body for adding a promo code.
type CreatePromoRequest struct {
	Code          string `json:"code"`
	DiscountType  string `json:"discount_type"` // percentage or fixed
	DiscountValue int64  `json:"discount_value"`
	MaxDiscount   *int64 `json:"max_discount,omitempty"`
	UsageLimit    *int64 `json:"usage_limit,omitempty"`
}

// ValidatePromoRequest is the HTTP request body for checking a code.
type ValidatePromoRequest struct {
	Code       string `json:"code"`
	RideAmount int64  `json:"ride_amount"`
}

// ValidatePromoResponse is the discount a code would give.
type ValidatePromoResponse struct {
	Code         string `json:"code"`
	DiscountType string `json:"discount_type"`
	Discount     int64  `json:"discount"`
	FinalAmount  int64  `json:"final_amount"`
}

// SetPromoActiveRequest is the HTTP request body for toggling a code.
type SetPromoActiveRequest struct {
	Active *bool `json:"active"`
}

// GetAll handles GET /v1/promos
func (h *PromoHandler) GetAll(c *gin.Context) {
	promos, err := h.promoService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]PromoResponse, 0, len(promos))
	for _, p := range promos {
		response = append(response, newPromoResponse(p))
	}
	respondJSON(c, http.StatusOK, response)
}

// Create handles POST /v1/promos
func (h *PromoHandler) Create(c *gin.Context) {
	var req CreatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	promo, err := h.promoService.Create(c.Request.Context(), service.CreatePromoRequest{
		Code:          req.Code,
		DiscountType:  domain.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		MaxDiscount:   req.MaxDiscount,
		UsageLimit:    req.UsageLimit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, newPromoResponse(promo))
}

// Validate handles POST /v1/promos/validate
func (h *PromoHandler) Validate(c *gin.Context) {
	var req ValidatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	quote, err := h.promoService.Validate(c.Request.Context(), req.Code, req.RideAmount)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ValidatePromoResponse{
		Code:         quote.Code,
		DiscountType: string(quote.DiscountType),
		Discount:     quote.Discount,
		FinalAmount:  quote.FinalAmount,
	})
}

// SetActive handles POST /v1/promos/:code/active
func (h *PromoHandler) SetActive(c *gin.Context) {
	var req SetPromoActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		badRequest(c, "active is required")
		return
	}

	promo, err := h.promoService.SetActive(c.Request.Context(), c.Param("code"), *req.Active)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newPromoResponse(promo))
}
