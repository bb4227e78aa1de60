package handler

import (
	"errors"
	"net/http"
	"time"

	accountHandler "mindcare_billing/internal/domain/account/handler"
	"mindcare_billing/internal/domain/promo/service"
	"mindcare_billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// PromoHandler exposes promo code endpoints.
type PromoHandler struct {
	service service.PromoService
}

// NewPromoHandler creates the handler.
func NewPromoHandler(s service.PromoService) *PromoHandler {
	return &PromoHandler{service: s}
}

// CreatePromoInput is the admin create request body.
type CreatePromoInput struct {
	Code      string    `json:"code" binding:"required"`
	GrantDays int       `json:"grantDays" binding:"required,gt=0"`
	Total     int       `json:"total" binding:"required,gt=0"`
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`
}

// RedeemInput is the redeem request body.
type RedeemInput struct {
	Code string `json:"code" binding:"required"`
}

// CreatePromo registers a new promo code (admin).
func (h *PromoHandler) CreatePromo(c *gin.Context) {
	var input CreatePromoInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	promo, err := h.service.CreatePromo(input.Code, input.GrantDays, input.Total, input.StartTime, input.EndTime)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, promo)
}

// Redeem claims a code for the authenticated user.
func (h *PromoHandler) Redeem(c *gin.Context) {
	var input RedeemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	userID := accountHandler.GetUserIDFromContext(c)
	if userID == "" {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Unauthorized")
		return
	}

	if err := h.service.Redeem(c.Request.Context(), userID, input.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrCodeNotFound):
			response.Fail(c, response.ErrPromoNotFound, err.Error())
		case errors.Is(err, service.ErrCodeExpired):
			response.Fail(c, response.ErrPromoExpired, err.Error())
		case errors.Is(err, service.ErrAlreadyUsed):
			response.Fail(c, response.ErrPromoRedeemed, err.Error())
		case errors.Is(err, service.ErrOutOfStock):
			response.Fail(c, response.ErrPromoOutOfStock, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}

	response.Success(c, gin.H{"redeemed": true})
}
