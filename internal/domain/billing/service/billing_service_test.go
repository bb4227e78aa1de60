package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	accountModel "mindcare_billing/internal/domain/account/model"
	"mindcare_billing/internal/domain/billing/model"
	"mindcare_billing/internal/domain/billing/wayforpay"
	"mindcare_billing/pkg/cache"
	"mindcare_billing/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "flk3409refn54t54t*FNJRET"

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	m.Run()
}

// --- mocks ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) CreateOrder(order *model.Order) error {
	args := m.Called(order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByReference(orderReference string) (*model.Order, error) {
	args := m.Called(orderReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *mockOrderRepository) UpsertStatus(orderReference, status string, verified *bool, raw json.RawMessage, paidAt *time.Time) error {
	args := m.Called(orderReference, status, verified, raw, paidAt)
	return args.Error(0)
}

func (m *mockOrderRepository) MarkGrantApplied(orderReference string) (bool, error) {
	args := m.Called(orderReference)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderRepository) List(offset, limit int) ([]model.Order, int64, error) {
	args := m.Called(offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Order), args.Get(1).(int64), args.Error(2)
}

type mockGrantRepository struct {
	mock.Mock
}

func (m *mockGrantRepository) GetByUserID(userID string) (*model.AccessGrant, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessGrant), args.Error(1)
}

func (m *mockGrantRepository) ExtendPaid(userID string, period time.Duration) error {
	args := m.Called(userID, period)
	return args.Error(0)
}

func (m *mockGrantRepository) ExtendPromo(userID string, period time.Duration) error {
	args := m.Called(userID, period)
	return args.Error(0)
}

func (m *mockGrantRepository) SetAutoRenew(userID string, autoRenew bool) error {
	args := m.Called(userID, autoRenew)
	return args.Error(0)
}

type mockAccountService struct {
	mock.Mock
}

func (m *mockAccountService) Register(email, password string) (*accountModel.User, error) {
	args := m.Called(email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accountModel.User), args.Error(1)
}

func (m *mockAccountService) Login(email, password string) (string, error) {
	args := m.Called(email, password)
	return args.String(0), args.Error(1)
}

func (m *mockAccountService) GetUser(id string) (*accountModel.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accountModel.User), args.Error(1)
}

func (m *mockAccountService) StoreRecurringToken(userID, recToken, orderReference string) error {
	args := m.Called(userID, recToken, orderReference)
	return args.Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Ready() bool {
	return m.Called().Bool(0)
}

func (m *mockGateway) SecretKey() string {
	return m.Called().String(0)
}

func (m *mockGateway) CreateInvoice(ctx context.Context, orderReference string, orderDate int64, amount float64, currency, productName, returnURL, serviceURL string) (*wayforpay.InvoiceResponse, error) {
	args := m.Called(ctx, orderReference, orderDate, amount, currency, productName, returnURL, serviceURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wayforpay.InvoiceResponse), args.Error(1)
}

func (m *mockGateway) CheckStatus(ctx context.Context, orderReference string) (*wayforpay.StatusResponse, error) {
	args := m.Called(ctx, orderReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wayforpay.StatusResponse), args.Error(1)
}

func (m *mockGateway) Suspend(ctx context.Context, orderReference string) (*wayforpay.SuspendResponse, error) {
	args := m.Called(ctx, orderReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wayforpay.SuspendResponse), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type fixture struct {
	orders   *mockOrderRepository
	grants   *mockGrantRepository
	accounts *mockAccountService
	gateway  *mockGateway
	cache    *mockCache
	svc      BillingService
}

func newFixture() *fixture {
	f := &fixture{
		orders:   new(mockOrderRepository),
		grants:   new(mockGrantRepository),
		accounts: new(mockAccountService),
		gateway:  new(mockGateway),
		cache:    new(mockCache),
	}
	f.svc = NewBillingService(f.orders, f.grants, f.accounts, f.gateway, f.cache,
		"https://mindcare.example", "/billing/result")
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.orders.AssertExpectations(t)
	f.grants.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.cache.AssertExpectations(t)
}

// --- invoice issuer ---

func TestIssueInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown plan", func(t *testing.T) {
		f := newFixture()

		result, err := f.svc.IssueInvoice(ctx, "user-1", "lifetime")
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrUnknownPlan)
		f.assertExpectations(t)
	})

	t.Run("Gateway credentials missing", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("Ready").Return(false)

		result, err := f.svc.IssueInvoice(ctx, "user-1", "monthly")
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrGatewayNotReady)
		f.assertExpectations(t)
	})

	t.Run("Successful issue", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("Ready").Return(true)

		var created *model.Order
		f.orders.On("CreateOrder", mock.AnythingOfType("*model.Order")).
			Run(func(args mock.Arguments) {
				created = args.Get(0).(*model.Order)
			}).Return(nil)

		f.gateway.On("CreateInvoice", ctx,
			mock.MatchedBy(func(ref string) bool { return strings.HasPrefix(ref, "mc_monthly_") }),
			mock.AnythingOfType("int64"),
			float64(1), "UAH", "MindCare support, monthly subscription",
			mock.MatchedBy(func(u string) bool {
				return strings.HasPrefix(u, "https://mindcare.example/billing/return?orderReference=mc_monthly_")
			}),
			"https://mindcare.example/billing/callback",
		).Return(&wayforpay.InvoiceResponse{URL: "https://secure.wayforpay.com/page?vkh=1"}, nil)

		result, err := f.svc.IssueInvoice(ctx, "user-1", "monthly")
		assert.NoError(t, err)
		assert.Equal(t, "https://secure.wayforpay.com/page?vkh=1", result.URL)
		assert.True(t, strings.HasPrefix(result.OrderReference, "mc_monthly_"))

		assert.Equal(t, "user-1", created.UserID)
		assert.Equal(t, model.OrderStatusCreated, created.Status)
		assert.Equal(t, result.OrderReference, created.OrderReference)
		f.assertExpectations(t)
	})

	t.Run("Transport failure is a soft error", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("Ready").Return(true)
		f.orders.On("CreateOrder", mock.Anything).Return(nil)
		f.gateway.On("CreateInvoice", ctx, mock.Anything, mock.Anything, mock.Anything,
			mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("connection refused"))

		result, err := f.svc.IssueInvoice(ctx, "user-1", "monthly")
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
		f.assertExpectations(t)
	})

	t.Run("Response without a checkout url is a soft error", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("Ready").Return(true)
		f.orders.On("CreateOrder", mock.Anything).Return(nil)
		f.gateway.On("CreateInvoice", ctx, mock.Anything, mock.Anything, mock.Anything,
			mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&wayforpay.InvoiceResponse{Reason: "Merchant account error", ReasonCode: json.Number("1101")}, nil)

		result, err := f.svc.IssueInvoice(ctx, "user-1", "monthly")
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
		f.assertExpectations(t)
	})
}

// --- callback receiver ---

func approvedCallback(ref string) *wayforpay.Callback {
	cb := &wayforpay.Callback{
		MerchantAccount:   "test_merch_n1",
		OrderReference:    ref,
		Amount:            json.Number("1"),
		Currency:          "UAH",
		AuthCode:          "541963",
		CardPan:           "44****1111",
		TransactionStatus: "Approved",
		ReasonCode:        json.Number("1100"),
	}
	cb.MerchantSignature = wayforpay.CallbackSignature(testSecret, cb)
	return cb
}

func TestHandleCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("Approved with valid signature becomes paid", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("SecretKey").Return(testSecret)
		cb := approvedCallback("mc_monthly_1_aa")

		f.orders.On("UpsertStatus", "mc_monthly_1_aa", model.OrderStatusPaid,
			mock.MatchedBy(func(v *bool) bool { return v != nil && *v }),
			mock.Anything,
			mock.MatchedBy(func(p *time.Time) bool { return p != nil }),
		).Return(nil)
		f.cache.On("Set", ctx, "order:status:mc_monthly_1_aa", model.OrderStatusPaid, mock.Anything).Return(nil)

		ack := f.svc.HandleCallback(ctx, cb)
		assert.Equal(t, "mc_monthly_1_aa", ack.OrderReference)
		assert.Equal(t, wayforpay.AckStatusAccept, ack.Status)
		assert.Equal(t,
			wayforpay.AckSignature(testSecret, "mc_monthly_1_aa", wayforpay.AckStatusAccept, ack.Time),
			ack.Signature)
		f.assertExpectations(t)
	})

	t.Run("Tampered signature never records paid", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("SecretKey").Return(testSecret)
		cb := approvedCallback("mc_monthly_1_bb")
		cb.Amount = json.Number("999") // signature no longer matches

		f.orders.On("UpsertStatus", "mc_monthly_1_bb", model.OrderStatusSignatureInvalid,
			mock.MatchedBy(func(v *bool) bool { return v != nil && !*v }),
			mock.Anything, mock.Anything,
		).Return(nil)
		f.cache.On("Set", ctx, "order:status:mc_monthly_1_bb", model.OrderStatusSignatureInvalid, mock.Anything).Return(nil)

		ack := f.svc.HandleCallback(ctx, cb)
		assert.Equal(t, wayforpay.AckStatusAccept, ack.Status)
		f.assertExpectations(t)
	})

	t.Run("Missing secret keeps verification open", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("SecretKey").Return("")
		cb := approvedCallback("mc_monthly_1_cc")

		f.orders.On("UpsertStatus", "mc_monthly_1_cc", model.OrderStatusPaid,
			(*bool)(nil), mock.Anything, mock.Anything,
		).Return(nil)
		f.cache.On("Set", ctx, "order:status:mc_monthly_1_cc", model.OrderStatusPaid, mock.Anything).Return(nil)

		ack := f.svc.HandleCallback(ctx, cb)
		assert.Equal(t, wayforpay.AckStatusAccept, ack.Status)
		f.assertExpectations(t)
	})

	t.Run("Persistence failure still acknowledges", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("SecretKey").Return(testSecret)
		cb := approvedCallback("mc_monthly_1_dd")

		f.orders.On("UpsertStatus", "mc_monthly_1_dd", model.OrderStatusPaid,
			mock.Anything, mock.Anything, mock.Anything,
		).Return(errors.New("database is down"))

		ack := f.svc.HandleCallback(ctx, cb)
		assert.Equal(t, wayforpay.AckStatusAccept, ack.Status)
		f.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("Paid callback stores the recurring token", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("SecretKey").Return(testSecret)
		cb := &wayforpay.Callback{
			MerchantAccount:   "test_merch_n1",
			OrderReference:    "mc_monthly_1_ee",
			Amount:            json.Number("1"),
			Currency:          "UAH",
			TransactionStatus: "Approved",
			RecToken:          "tok-abc",
		}
		cb.MerchantSignature = wayforpay.CallbackSignature(testSecret, cb)

		f.orders.On("UpsertStatus", "mc_monthly_1_ee", model.OrderStatusPaid,
			mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.cache.On("Set", ctx, "order:status:mc_monthly_1_ee", model.OrderStatusPaid, mock.Anything).Return(nil)
		f.orders.On("GetByReference", "mc_monthly_1_ee").
			Return(&model.Order{OrderReference: "mc_monthly_1_ee", UserID: "user-1"}, nil)
		f.accounts.On("StoreRecurringToken", "user-1", "tok-abc", "mc_monthly_1_ee").Return(nil)

		ack := f.svc.HandleCallback(ctx, cb)
		assert.Equal(t, wayforpay.AckStatusAccept, ack.Status)
		f.assertExpectations(t)
	})

	t.Run("Duplicate delivery converges", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("SecretKey").Return(testSecret)
		cb := approvedCallback("mc_monthly_1_ff")

		f.orders.On("UpsertStatus", "mc_monthly_1_ff", model.OrderStatusPaid,
			mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()
		f.cache.On("Set", ctx, "order:status:mc_monthly_1_ff", model.OrderStatusPaid, mock.Anything).Return(nil).Twice()

		first := f.svc.HandleCallback(ctx, cb)
		second := f.svc.HandleCallback(ctx, cb)
		assert.Equal(t, wayforpay.AckStatusAccept, first.Status)
		assert.Equal(t, wayforpay.AckStatusAccept, second.Status)
		f.assertExpectations(t)
	})

	t.Run("Callback without transactionStatus is recorded as received", func(t *testing.T) {
		f := newFixture()
		f.gateway.On("SecretKey").Return(testSecret)
		cb := &wayforpay.Callback{OrderReference: "mc_monthly_1_gg"}
		cb.MerchantSignature = wayforpay.CallbackSignature(testSecret, cb)

		f.orders.On("UpsertStatus", "mc_monthly_1_gg", model.OrderStatusCallbackReceived,
			mock.Anything, mock.Anything, (*time.Time)(nil)).Return(nil)

		ack := f.svc.HandleCallback(ctx, cb)
		assert.Equal(t, wayforpay.AckStatusAccept, ack.Status)
		// Non-terminal statuses must not be cached for the poll loop.
		f.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})
}

func TestAcknowledge(t *testing.T) {
	f := newFixture()
	f.gateway.On("SecretKey").Return(testSecret)

	ack := f.svc.Acknowledge("")
	assert.Equal(t, "", ack.OrderReference)
	assert.Equal(t, wayforpay.AckStatusAccept, ack.Status)
	assert.Equal(t,
		wayforpay.AckSignature(testSecret, "", wayforpay.AckStatusAccept, ack.Time),
		ack.Signature)
}

// --- status sync ---

func TestSyncStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown reference is a normal answer", func(t *testing.T) {
		f := newFixture()
		f.cache.On("Get", ctx, "order:status:mc_missing", mock.Anything).Return(cache.ErrMiss)
		f.orders.On("GetByReference", "mc_missing").Return(nil, gorm.ErrRecordNotFound)

		status, err := f.svc.SyncStatus(ctx, "mc_missing")
		assert.NoError(t, err)
		assert.Equal(t, model.OrderStatusNotFound, status)
		f.assertExpectations(t)
	})

	t.Run("Cached terminal status short-circuits the database", func(t *testing.T) {
		f := newFixture()
		f.cache.On("Get", ctx, "order:status:mc_1", mock.Anything).
			Run(func(args mock.Arguments) {
				*args.Get(2).(*string) = model.OrderStatusDeclined
			}).Return(nil)

		status, err := f.svc.SyncStatus(ctx, "mc_1")
		assert.NoError(t, err)
		assert.Equal(t, model.OrderStatusDeclined, status)
		f.orders.AssertNotCalled(t, "GetByReference", mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("Stored paid order extends the grant exactly once", func(t *testing.T) {
		f := newFixture()
		paid := &model.Order{
			OrderReference: "mc_2",
			UserID:         "user-1",
			PlanID:         "monthly",
			Status:         model.OrderStatusPaid,
		}
		f.cache.On("Get", ctx, "order:status:mc_2", mock.Anything).Return(cache.ErrMiss).Twice()
		f.orders.On("GetByReference", "mc_2").Return(paid, nil)
		f.orders.On("MarkGrantApplied", "mc_2").Return(true, nil).Once()
		f.orders.On("MarkGrantApplied", "mc_2").Return(false, nil).Once()
		f.grants.On("ExtendPaid", "user-1", 30*24*time.Hour).Return(nil).Once()
		f.cache.On("Set", ctx, "order:status:mc_2", model.OrderStatusPaid, mock.Anything).Return(nil)

		for i := 0; i < 2; i++ {
			status, err := f.svc.SyncStatus(ctx, "mc_2")
			assert.NoError(t, err)
			assert.Equal(t, model.OrderStatusPaid, status)
		}
		f.grants.AssertNumberOfCalls(t, "ExtendPaid", 1)
		f.assertExpectations(t)
	})

	t.Run("Cached paid still settles the grant for late losers", func(t *testing.T) {
		f := newFixture()
		f.cache.On("Get", ctx, "order:status:mc_3", mock.Anything).
			Run(func(args mock.Arguments) {
				*args.Get(2).(*string) = model.OrderStatusPaid
			}).Return(nil)
		f.orders.On("MarkGrantApplied", "mc_3").Return(false, nil)

		status, err := f.svc.SyncStatus(ctx, "mc_3")
		assert.NoError(t, err)
		assert.Equal(t, model.OrderStatusPaid, status)
		f.grants.AssertNotCalled(t, "ExtendPaid", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("Pending order reconciles actively", func(t *testing.T) {
		f := newFixture()
		pending := &model.Order{
			OrderReference: "mc_4",
			UserID:         "user-1",
			PlanID:         "monthly",
			Status:         model.OrderStatusCreated,
		}
		f.cache.On("Get", ctx, "order:status:mc_4", mock.Anything).Return(cache.ErrMiss)
		f.orders.On("GetByReference", "mc_4").Return(pending, nil)
		f.gateway.On("Ready").Return(true)
		f.gateway.On("CheckStatus", ctx, "mc_4").
			Return(&wayforpay.StatusResponse{OrderReference: "mc_4", TransactionStatus: "Approved"}, nil)
		f.orders.On("UpsertStatus", "mc_4", model.OrderStatusPaid,
			(*bool)(nil), mock.Anything,
			mock.MatchedBy(func(p *time.Time) bool { return p != nil }),
		).Return(nil)
		f.orders.On("MarkGrantApplied", "mc_4").Return(true, nil)
		f.grants.On("ExtendPaid", "user-1", 30*24*time.Hour).Return(nil)
		f.cache.On("Set", ctx, "order:status:mc_4", model.OrderStatusPaid, mock.Anything).Return(nil)

		status, err := f.svc.SyncStatus(ctx, "mc_4")
		assert.NoError(t, err)
		assert.Equal(t, model.OrderStatusPaid, status)
		f.assertExpectations(t)
	})

	t.Run("Check status transport failure keeps the stored status", func(t *testing.T) {
		f := newFixture()
		pending := &model.Order{OrderReference: "mc_5", Status: model.OrderStatusCreated}
		f.cache.On("Get", ctx, "order:status:mc_5", mock.Anything).Return(cache.ErrMiss)
		f.orders.On("GetByReference", "mc_5").Return(pending, nil)
		f.gateway.On("Ready").Return(true)
		f.gateway.On("CheckStatus", ctx, "mc_5").Return(nil, errors.New("timeout"))

		status, err := f.svc.SyncStatus(ctx, "mc_5")
		assert.NoError(t, err)
		assert.Equal(t, model.OrderStatusCreated, status)
		// A transient failure is not a terminal answer.
		f.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("Declined reconciliation is cached", func(t *testing.T) {
		f := newFixture()
		pending := &model.Order{OrderReference: "mc_6", Status: model.OrderStatusCallbackReceived}
		f.cache.On("Get", ctx, "order:status:mc_6", mock.Anything).Return(cache.ErrMiss)
		f.orders.On("GetByReference", "mc_6").Return(pending, nil)
		f.gateway.On("Ready").Return(true)
		f.gateway.On("CheckStatus", ctx, "mc_6").
			Return(&wayforpay.StatusResponse{OrderReference: "mc_6", TransactionStatus: "Declined"}, nil)
		f.orders.On("UpsertStatus", "mc_6", model.OrderStatusDeclined,
			(*bool)(nil), mock.Anything, (*time.Time)(nil)).Return(nil)
		f.cache.On("Set", ctx, "order:status:mc_6", model.OrderStatusDeclined, mock.Anything).Return(nil)

		status, err := f.svc.SyncStatus(ctx, "mc_6")
		assert.NoError(t, err)
		assert.Equal(t, model.OrderStatusDeclined, status)
		f.assertExpectations(t)
	})
}

// --- suspend ---

func TestSuspend(t *testing.T) {
	ctx := context.Background()

	t.Run("No recurring payment on file", func(t *testing.T) {
		f := newFixture()
		f.accounts.On("GetUser", "user-1").Return(&accountModel.User{}, nil)

		err := f.svc.Suspend(ctx, "user-1")
		assert.ErrorIs(t, err, ErrNoRecurringOrder)
		f.assertExpectations(t)
	})

	t.Run("Gateway accepts", func(t *testing.T) {
		f := newFixture()
		f.accounts.On("GetUser", "user-1").
			Return(&accountModel.User{RecToken: "tok", RecOrderReference: "mc_monthly_1_aa"}, nil)
		f.gateway.On("Ready").Return(true)
		f.gateway.On("Suspend", ctx, "mc_monthly_1_aa").
			Return(&wayforpay.SuspendResponse{ReasonCode: json.Number("4100"), Reason: "Ok"}, nil)
		f.grants.On("SetAutoRenew", "user-1", false).Return(nil)

		assert.NoError(t, f.svc.Suspend(ctx, "user-1"))
		f.assertExpectations(t)
	})

	t.Run("Gateway rejects", func(t *testing.T) {
		f := newFixture()
		f.accounts.On("GetUser", "user-1").
			Return(&accountModel.User{RecOrderReference: "mc_monthly_1_aa"}, nil)
		f.gateway.On("Ready").Return(true)
		f.gateway.On("Suspend", ctx, "mc_monthly_1_aa").
			Return(&wayforpay.SuspendResponse{ReasonCode: json.Number("4101"), Reason: "Declined"}, nil)

		err := f.svc.Suspend(ctx, "user-1")
		assert.ErrorIs(t, err, ErrSuspendRejected)
		f.grants.AssertNotCalled(t, "SetAutoRenew", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("Transport failure", func(t *testing.T) {
		f := newFixture()
		f.accounts.On("GetUser", "user-1").
			Return(&accountModel.User{RecOrderReference: "mc_monthly_1_aa"}, nil)
		f.gateway.On("Ready").Return(true)
		f.gateway.On("Suspend", ctx, "mc_monthly_1_aa").Return(nil, errors.New("timeout"))

		err := f.svc.Suspend(ctx, "user-1")
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
		f.assertExpectations(t)
	})
}

// --- entitlement ---

func TestEntitlement(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing grant row yields an inactive grant", func(t *testing.T) {
		f := newFixture()
		f.grants.On("GetByUserID", "user-1").Return(nil, gorm.ErrRecordNotFound)

		grant, err := f.svc.Entitlement(ctx, "user-1")
		assert.NoError(t, err)
		assert.Equal(t, "user-1", grant.UserID)
		assert.False(t, grant.Active(time.Now()))
		f.assertExpectations(t)
	})

	t.Run("Access is the union of the two windows", func(t *testing.T) {
		f := newFixture()
		now := time.Now()
		f.grants.On("GetByUserID", "user-1").Return(&model.AccessGrant{
			UserID:     "user-1",
			PaidUntil:  now.Add(-time.Hour),
			PromoUntil: now.Add(48 * time.Hour),
		}, nil)

		grant, err := f.svc.Entitlement(ctx, "user-1")
		assert.NoError(t, err)
		assert.True(t, grant.Active(now))
		assert.Equal(t, grant.PromoUntil, grant.ActiveUntil())
		f.assertExpectations(t)
	})
}
