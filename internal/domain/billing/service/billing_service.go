package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	accountService "mindcare_billing/internal/domain/account/service"
	"mindcare_billing/internal/domain/billing/model"
	"mindcare_billing/internal/domain/billing/repository"
	"mindcare_billing/internal/domain/billing/wayforpay"
	"mindcare_billing/pkg/cache"
	"mindcare_billing/pkg/logger"
	"mindcare_billing/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUnknownPlan        = errors.New("unknown plan id")
	ErrGatewayNotReady    = errors.New("payment gateway credentials are not configured")
	ErrGatewayUnavailable = errors.New("payment gateway is temporarily unavailable")
	ErrNoRecurringOrder   = errors.New("no recurring payment on file")
	ErrSuspendRejected    = errors.New("gateway rejected the suspend request")
)

// orderReferencePrefix starts every generated reference:
// <prefix>_<plan>_<unix>_<random>.
const orderReferencePrefix = "mc"

// statusCacheTTL keeps terminal sync answers hot for the result page's
// polling loop without re-reading the database every 1.2 s.
const statusCacheTTL = 30 * time.Second

// Gateway is the slice of the WayForPay client the service needs;
// narrowed for tests.
type Gateway interface {
	Ready() bool
	SecretKey() string
	CreateInvoice(ctx context.Context, orderReference string, orderDate int64, amount float64, currency, productName, returnURL, serviceURL string) (*wayforpay.InvoiceResponse, error)
	CheckStatus(ctx context.Context, orderReference string) (*wayforpay.StatusResponse, error)
	Suspend(ctx context.Context, orderReference string) (*wayforpay.SuspendResponse, error)
}

// InvoiceResult is returned to the invoice endpoint.
type InvoiceResult struct {
	URL            string
	OrderReference string
}

// BillingService implements the payment reconciliation flow.
type BillingService interface {
	IssueInvoice(ctx context.Context, userID, planID string) (*InvoiceResult, error)
	HandleCallback(ctx context.Context, cb *wayforpay.Callback) wayforpay.Ack
	Acknowledge(orderReference string) wayforpay.Ack
	SyncStatus(ctx context.Context, orderReference string) (string, error)
	Suspend(ctx context.Context, userID string) error
	Entitlement(ctx context.Context, userID string) (*model.AccessGrant, error)
	ListOrders(offset, limit int) ([]model.Order, int64, error)
}

type billingService struct {
	orders   repository.OrderRepository
	grants   repository.GrantRepository
	accounts accountService.AccountService
	gateway  Gateway
	cache    cache.Service

	publicURL  string
	resultPath string
}

// NewBillingService wires the reconciliation flow.
func NewBillingService(orders repository.OrderRepository, grants repository.GrantRepository, accounts accountService.AccountService, gateway Gateway, statusCache cache.Service, publicURL, resultPath string) BillingService {
	return &billingService{
		orders:     orders,
		grants:     grants,
		accounts:   accounts,
		gateway:    gateway,
		cache:      statusCache,
		publicURL:  strings.TrimRight(publicURL, "/"),
		resultPath: resultPath,
	}
}

// IssueInvoice validates the plan, creates the optimistic order row
// and asks the gateway for a hosted checkout URL.
func (s *billingService) IssueInvoice(ctx context.Context, userID, planID string) (*InvoiceResult, error) {
	plan, ok := model.GetPlan(planID)
	if !ok {
		metrics.InvoicesIssued.WithLabelValues(planID, "unknown_plan").Inc()
		return nil, ErrUnknownPlan
	}

	if !s.gateway.Ready() {
		metrics.InvoicesIssued.WithLabelValues(planID, "not_configured").Inc()
		return nil, ErrGatewayNotReady
	}

	// 1. Fresh globally unique reference.
	now := time.Now()
	orderReference := fmt.Sprintf("%s_%s_%d_%s",
		orderReferencePrefix, plan.ID, now.Unix(), uuid.New().String()[:8])

	// 2. Optimistic order row, so the sync poller has something to
	// report before the first callback. Insert is conflict-free by
	// construction but idempotent anyway.
	order := &model.Order{
		OrderReference: orderReference,
		UserID:         userID,
		PlanID:         plan.ID,
		Amount:         plan.Amount,
		Currency:       plan.Currency,
		Status:         model.OrderStatusCreated,
	}
	if err := s.orders.CreateOrder(order); err != nil {
		metrics.InvoicesIssued.WithLabelValues(planID, "store_error").Inc()
		return nil, err
	}

	// 3. Gateway round trip. Transport problems surface as a soft
	// failure so the caller can offer a retry.
	returnURL := fmt.Sprintf("%s/billing/return?orderReference=%s", s.publicURL, orderReference)
	serviceURL := s.publicURL + "/billing/callback"

	resp, err := s.gateway.CreateInvoice(ctx, orderReference, now.Unix(), plan.Amount, plan.Currency, plan.ProductName, returnURL, serviceURL)
	if err != nil {
		logger.Log.Warn("invoice request failed",
			zap.String("order_reference", orderReference),
			zap.Error(err))
		metrics.InvoicesIssued.WithLabelValues(planID, "gateway_error").Inc()
		return nil, ErrGatewayUnavailable
	}
	if resp.URL == "" {
		logger.Log.Warn("invoice response has no checkout url",
			zap.String("order_reference", orderReference),
			zap.String("reason", resp.Reason),
			zap.String("reason_code", resp.ReasonCode.String()))
		metrics.InvoicesIssued.WithLabelValues(planID, "no_url").Inc()
		return nil, ErrGatewayUnavailable
	}

	metrics.InvoicesIssued.WithLabelValues(planID, "ok").Inc()
	return &InvoiceResult{URL: resp.URL, OrderReference: orderReference}, nil
}

// HandleCallback processes one webhook delivery. It always returns a
// signed acknowledgement: the gateway retries non-200 answers for
// days, which is worse than any internal persistence failure.
func (s *billingService) HandleCallback(ctx context.Context, cb *wayforpay.Callback) wayforpay.Ack {
	verification := wayforpay.VerifyCallback(s.gateway.SecretKey(), cb)

	status := mapTransactionStatus(cb.TransactionStatus)
	var verified *bool
	switch verification {
	case wayforpay.VerificationValid:
		v := true
		verified = &v
	case wayforpay.VerificationInvalid:
		// A forged or corrupted callback must never be recorded as
		// paid, whatever transactionStatus claims.
		v := false
		verified = &v
		status = model.OrderStatusSignatureInvalid
		metrics.SignatureFailures.Inc()
	}

	raw, _ := json.Marshal(cb)
	var paidAt *time.Time
	if status == model.OrderStatusPaid {
		now := time.Now()
		paidAt = &now
	}

	if err := s.orders.UpsertStatus(cb.OrderReference, status, verified, raw, paidAt); err != nil {
		// Logged, never surfaced: the ack must go out regardless.
		logger.Log.Error("failed to persist callback",
			zap.String("order_reference", cb.OrderReference),
			zap.String("status", status),
			zap.Error(err))
	} else {
		s.cacheStatus(ctx, cb.OrderReference, status)
	}
	metrics.CallbacksReceived.WithLabelValues(status).Inc()

	// A paid callback may carry the recurring token; stash it on the
	// profile for later SUSPEND requests.
	if status == model.OrderStatusPaid && cb.RecToken != "" {
		s.storeRecurringToken(cb.OrderReference, cb.RecToken)
	}

	return wayforpay.BuildAck(s.gateway.SecretKey(), cb.OrderReference, time.Now().Unix())
}

// Acknowledge builds a signed ack on its own, for deliveries that
// could not even be parsed. The body shape is the provider contract on
// every 200, not just the happy path.
func (s *billingService) Acknowledge(orderReference string) wayforpay.Ack {
	return wayforpay.BuildAck(s.gateway.SecretKey(), orderReference, time.Now().Unix())
}

func (s *billingService) storeRecurringToken(orderReference, recToken string) {
	order, err := s.orders.GetByReference(orderReference)
	if err != nil || order.UserID == "" {
		return
	}
	if err := s.accounts.StoreRecurringToken(order.UserID, recToken, orderReference); err != nil {
		logger.Log.Error("failed to store recurring token",
			zap.String("order_reference", orderReference),
			zap.Error(err))
	}
}

// SyncStatus answers the result page's poll. Unknown references are a
// normal answer, not an error; a not-yet-paid order triggers an active
// CHECK_STATUS reconciliation instead of waiting for the webhook.
func (s *billingService) SyncStatus(ctx context.Context, orderReference string) (string, error) {
	// 1. Terminal answers are cached for the duration of the polling
	// loop.
	var cached string
	if err := s.cache.Get(ctx, statusCacheKey(orderReference), &cached); err == nil && cached != "" {
		if cached == model.OrderStatusPaid {
			s.applyGrant(orderReference)
		}
		metrics.SyncPolls.WithLabelValues(cached).Inc()
		return cached, nil
	}

	// 2. Stored state first.
	order, err := s.orders.GetByReference(orderReference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.SyncPolls.WithLabelValues(model.OrderStatusNotFound).Inc()
			return model.OrderStatusNotFound, nil
		}
		return "", err
	}

	if order.Status == model.OrderStatusPaid {
		s.applyGrant(orderReference)
		s.cacheStatus(ctx, orderReference, order.Status)
		metrics.SyncPolls.WithLabelValues(order.Status).Inc()
		return order.Status, nil
	}

	// 3. Not paid yet: reconcile actively if the gateway is usable.
	status := order.Status
	if s.gateway.Ready() {
		if resp, gwErr := s.gateway.CheckStatus(ctx, orderReference); gwErr != nil {
			// Timeouts and transport faults are transient, not a
			// definitive status.
			logger.Log.Warn("check status failed",
				zap.String("order_reference", orderReference),
				zap.Error(gwErr))
		} else if resp.TransactionStatus != "" {
			status = mapTransactionStatus(resp.TransactionStatus)
			raw, _ := json.Marshal(resp)
			var paidAt *time.Time
			if status == model.OrderStatusPaid {
				now := time.Now()
				paidAt = &now
			}
			if err := s.orders.UpsertStatus(orderReference, status, nil, raw, paidAt); err != nil {
				logger.Log.Error("failed to persist checked status",
					zap.String("order_reference", orderReference),
					zap.Error(err))
			}
			if status == model.OrderStatusPaid {
				s.applyGrant(orderReference)
				if resp.RecToken != "" {
					s.storeRecurringToken(orderReference, resp.RecToken)
				}
			}
		}
	}

	if model.IsTerminal(status) {
		s.cacheStatus(ctx, orderReference, status)
	}
	metrics.SyncPolls.WithLabelValues(status).Inc()
	return status, nil
}

// applyGrant extends the paid window exactly once per order. The
// conditional marker update decides the winner under concurrent polls.
func (s *billingService) applyGrant(orderReference string) {
	won, err := s.orders.MarkGrantApplied(orderReference)
	if err != nil {
		logger.Log.Error("failed to mark grant applied",
			zap.String("order_reference", orderReference),
			zap.Error(err))
		return
	}
	if !won {
		return
	}

	order, err := s.orders.GetByReference(orderReference)
	if err != nil {
		logger.Log.Error("paid order vanished before grant",
			zap.String("order_reference", orderReference),
			zap.Error(err))
		return
	}
	if order.UserID == "" {
		logger.Log.Warn("paid order has no user, skipping grant",
			zap.String("order_reference", orderReference))
		return
	}

	plan, ok := model.GetPlan(order.PlanID)
	if !ok {
		logger.Log.Error("paid order references unknown plan",
			zap.String("order_reference", orderReference),
			zap.String("plan_id", order.PlanID))
		return
	}

	period := time.Duration(plan.PeriodDays) * 24 * time.Hour
	if err := s.grants.ExtendPaid(order.UserID, period); err != nil {
		logger.Log.Error("failed to extend paid access",
			zap.String("order_reference", orderReference),
			zap.String("user_id", order.UserID),
			zap.Error(err))
		return
	}
	metrics.GrantsApplied.Inc()
}

// Suspend cancels auto-renew through the gateway using the recurring
// order stored on the profile.
func (s *billingService) Suspend(ctx context.Context, userID string) error {
	user, err := s.accounts.GetUser(userID)
	if err != nil {
		return err
	}
	if user.RecOrderReference == "" {
		return ErrNoRecurringOrder
	}
	if !s.gateway.Ready() {
		return ErrGatewayNotReady
	}

	resp, err := s.gateway.Suspend(ctx, user.RecOrderReference)
	if err != nil {
		logger.Log.Warn("suspend request failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return ErrGatewayUnavailable
	}

	code, _ := resp.ReasonCode.Int64()
	if code != wayforpay.SuspendOKCode {
		logger.Log.Warn("suspend rejected by gateway",
			zap.String("user_id", userID),
			zap.Int64("reason_code", code),
			zap.String("reason", resp.Reason))
		return ErrSuspendRejected
	}

	return s.grants.SetAutoRenew(userID, false)
}

// Entitlement returns the user's grant; a user with no grant row gets
// an empty, inactive grant.
func (s *billingService) Entitlement(ctx context.Context, userID string) (*model.AccessGrant, error) {
	grant, err := s.grants.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.AccessGrant{UserID: userID}, nil
		}
		return nil, err
	}
	return grant, nil
}

func (s *billingService) ListOrders(offset, limit int) ([]model.Order, int64, error) {
	return s.orders.List(offset, limit)
}

func (s *billingService) cacheStatus(ctx context.Context, orderReference, status string) {
	if !model.IsTerminal(status) {
		return
	}
	if err := s.cache.Set(ctx, statusCacheKey(orderReference), status, statusCacheTTL); err != nil {
		logger.Log.Debug("status cache write failed", zap.Error(err))
	}
}

func statusCacheKey(orderReference string) string {
	return "order:status:" + orderReference
}

// mapTransactionStatus converts the gateway's transactionStatus to the
// internal order status: Approved becomes paid, other non-empty values
// pass through lowercased, absence means the callback arrived without
// a status.
func mapTransactionStatus(transactionStatus string) string {
	switch {
	case transactionStatus == "Approved":
		return model.OrderStatusPaid
	case transactionStatus != "":
		return strings.ToLower(transactionStatus)
	default:
		return model.OrderStatusCallbackReceived
	}
}
