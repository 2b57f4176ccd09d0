package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridecore/internal/domain"
	"ridecore/internal/service"
)

// ProfileHandler handles HTTP requests for profiles.
type ProfileHandler struct {
	profileService *service.ProfileService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// CreateProfileRequest is the HTTP request body for creating a profile.
type CreateProfileRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"` // rider (default), driver, admin
}

// Create handles POST /v1/profiles
func (h *ProfileHandler) Create(c *gin.Context) {
	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	profile, err := h.profileService.CreateProfile(c.Request.Context(), service.CreateProfileRequest{
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, newProfileResponse(profile))
}

// Get handles GET /v1/profiles/:id
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.profileService.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newProfileResponse(profile))
}
