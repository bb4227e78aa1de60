package handler

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	accountHandler "mindcare_billing/internal/domain/account/handler"
	"mindcare_billing/internal/domain/billing/service"
	"mindcare_billing/internal/domain/billing/wayforpay"
	"mindcare_billing/pkg/logger"
	"mindcare_billing/pkg/response"
	"mindcare_billing/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BillingHandler exposes the reconciliation flow endpoints. The
// invoice, sync and return endpoints speak the {ok,...} wire shape the
// front end and the gateway expect, not the API envelope.
type BillingHandler struct {
	service    service.BillingService
	resultPath string
}

// NewBillingHandler creates the handler.
func NewBillingHandler(s service.BillingService, resultPath string) *BillingHandler {
	return &BillingHandler{service: s, resultPath: resultPath}
}

// CreateInvoiceInput is the invoice request body.
type CreateInvoiceInput struct {
	PlanID string `json:"planId" binding:"required"`
}

// SyncInput is the sync request body (POST variant).
type SyncInput struct {
	OrderReference string `json:"orderReference"`
}

// CreateInvoice issues a checkout URL for a plan.
func (h *BillingHandler) CreateInvoice(c *gin.Context) {
	var input CreateInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	userID := accountHandler.GetUserIDFromContext(c)

	result, err := h.service.IssueInvoice(c.Request.Context(), userID, input.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPlan):
			// Client mistake, not a server fault.
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unknown plan id"})
		case errors.Is(err, service.ErrGatewayNotReady):
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "payment gateway is not configured"})
		default:
			// Soft failure: the front end shows a retry affordance.
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "could not create invoice, please try again"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":             true,
		"url":            result.URL,
		"orderReference": result.OrderReference,
	})
}

// Callback receives the gateway webhook. Always answers 200 with a
// signed ack, whatever happens internally.
func (h *BillingHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		logger.Log.Error("failed to read callback body", zap.Error(err))
		c.JSON(http.StatusOK, h.service.Acknowledge(""))
		return
	}

	cb, err := wayforpay.ParseCallback(c.ContentType(), body)
	if err != nil {
		logger.Log.Error("unparseable callback payload",
			zap.Error(err),
			zap.Int("body_len", len(body)))
		c.JSON(http.StatusOK, h.service.Acknowledge(""))
		return
	}

	ack := h.service.HandleCallback(c.Request.Context(), cb)
	c.JSON(http.StatusOK, ack)
}

// Sync answers the result page's "is it paid yet" poll. Handles both
// the POST body and the GET query variant.
func (h *BillingHandler) Sync(c *gin.Context) {
	orderReference := c.Query("orderReference")
	if orderReference == "" && c.Request.Method == http.MethodPost {
		var input SyncInput
		if err := c.ShouldBindJSON(&input); err == nil {
			orderReference = input.OrderReference
		}
	}
	if orderReference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "orderReference is required"})
		return
	}

	status, err := h.service.SyncStatus(c.Request.Context(), orderReference)
	if err != nil {
		logger.Log.Error("sync failed",
			zap.String("order_reference", orderReference),
			zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

// Return bounces the browser coming back from the hosted checkout to
// the result page, carrying the order reference along.
func (h *BillingHandler) Return(c *gin.Context) {
	orderReference := c.Query("orderReference")
	if orderReference == "" {
		orderReference = c.PostForm("orderReference")
	}

	target := h.resultPath
	if orderReference != "" {
		target += "?orderReference=" + url.QueryEscape(orderReference)
	}
	c.Redirect(http.StatusFound, target)
}

// Suspend cancels auto-renew for the authenticated user.
func (h *BillingHandler) Suspend(c *gin.Context) {
	userID := accountHandler.GetUserIDFromContext(c)
	if userID == "" {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Unauthorized")
		return
	}

	if err := h.service.Suspend(c.Request.Context(), userID); err != nil {
		switch {
		case errors.Is(err, service.ErrNoRecurringOrder):
			response.Fail(c, response.ErrNoRecurringToken, "no recurring payment on file")
		case errors.Is(err, service.ErrGatewayNotReady):
			response.Error(c, http.StatusInternalServerError, response.ErrGatewayNotReady, "payment gateway is not configured")
		case errors.Is(err, service.ErrGatewayUnavailable), errors.Is(err, service.ErrSuspendRejected):
			response.Fail(c, response.ErrGatewayTransport, "could not suspend, please try again")
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}

	response.Success(c, gin.H{"autoRenew": false})
}

// Entitlement returns the authenticated user's access windows.
func (h *BillingHandler) Entitlement(c *gin.Context) {
	userID := accountHandler.GetUserIDFromContext(c)
	if userID == "" {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Unauthorized")
		return
	}

	grant, err := h.service.Entitlement(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, gin.H{
		"paidUntil":   grant.PaidUntil,
		"promoUntil":  grant.PromoUntil,
		"activeUntil": grant.ActiveUntil(),
		"autoRenew":   grant.AutoRenew,
	})
}

// ListOrders is the admin reconciliation view.
func (h *BillingHandler) ListOrders(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	offset, limit := p.GetPageOffset()
	orders, total, err := h.service.ListOrders(offset, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, utils.PageResult{
		List:  orders,
		Total: total,
		Page:  p.Page,
		Limit: p.Limit,
	})
}
