package service

import (
	"context"
	"testing"
	"time"

	billingModel "mindcare_billing/internal/domain/billing/model"
	"mindcare_billing/internal/domain/promo/model"
	"mindcare_billing/internal/domain/promo/repository"
	"mindcare_billing/internal/pkg/worker"
	"mindcare_billing/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	m.Run()
}

type mockPromoRepository struct {
	mock.Mock
}

func (m *mockPromoRepository) Create(code *model.PromoCode) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *mockPromoRepository) GetByCode(code string) (*model.PromoCode, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PromoCode), args.Error(1)
}

func (m *mockPromoRepository) DecrementStock(codeID string) error {
	args := m.Called(codeID)
	return args.Error(0)
}

func (m *mockPromoRepository) CreateRedemption(redemption *model.PromoRedemption) error {
	args := m.Called(redemption)
	return args.Error(0)
}

func (m *mockPromoRepository) HasRedeemed(userID, codeID string) (bool, error) {
	args := m.Called(userID, codeID)
	return args.Bool(0), args.Error(1)
}

type mockGrantRepository struct {
	mock.Mock
}

func (m *mockGrantRepository) GetByUserID(userID string) (*billingModel.AccessGrant, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingModel.AccessGrant), args.Error(1)
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

func TestRedeemValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown code", func(t *testing.T) {
		repo := new(mockPromoRepository)
		repo.On("GetByCode", "NOPE").Return(nil, gorm.ErrRecordNotFound)
		s := &promoService{repo: repo}

		err := s.Redeem(ctx, "user-1", "NOPE")
		assert.ErrorIs(t, err, ErrCodeNotFound)
		repo.AssertExpectations(t)
	})

	t.Run("Outside the activity window", func(t *testing.T) {
		repo := new(mockPromoRepository)
		repo.On("GetByCode", "EXPIRED").Return(&model.PromoCode{
			Code:      "EXPIRED",
			StartTime: time.Now().Add(-48 * time.Hour),
			EndTime:   time.Now().Add(-24 * time.Hour),
		}, nil)
		s := &promoService{repo: repo}

		err := s.Redeem(ctx, "user-1", "EXPIRED")
		assert.ErrorIs(t, err, ErrCodeExpired)
		repo.AssertExpectations(t)
	})

	t.Run("Known sold-out code skips redis", func(t *testing.T) {
		repo := new(mockPromoRepository)
		promo := &model.PromoCode{
			Code:      "GONE",
			StartTime: time.Now().Add(-time.Hour),
			EndTime:   time.Now().Add(time.Hour),
		}
		promo.ID = "code-1"
		repo.On("GetByCode", "GONE").Return(promo, nil)

		s := &promoService{repo: repo}
		s.soldOutMap.Store("code-1", struct{}{})

		err := s.Redeem(ctx, "user-1", "GONE")
		assert.ErrorIs(t, err, ErrOutOfStock)
		repo.AssertExpectations(t)
	})
}

func TestPersistRedemption(t *testing.T) {
	task := worker.RedemptionTask{
		UserID:    "user-1",
		CodeID:    "code-1",
		Code:      "WELCOME14",
		GrantDays: 14,
	}

	t.Run("Extends the promo window", func(t *testing.T) {
		repo := new(mockPromoRepository)
		grants := new(mockGrantRepository)
		s := &promoService{repo: repo, grants: grants}

		repo.On("HasRedeemed", "user-1", "code-1").Return(false, nil)
		repo.On("DecrementStock", "code-1").Return(nil)
		repo.On("CreateRedemption", mock.MatchedBy(func(r *model.PromoRedemption) bool {
			return r.UserID == "user-1" && r.CodeID == "code-1"
		})).Return(nil)
		grants.On("ExtendPromo", "user-1", 14*24*time.Hour).Return(nil)

		assert.NoError(t, s.persistRedemption(task))
		repo.AssertExpectations(t)
		grants.AssertExpectations(t)
	})

	t.Run("Replayed task is a no-op", func(t *testing.T) {
		repo := new(mockPromoRepository)
		grants := new(mockGrantRepository)
		s := &promoService{repo: repo, grants: grants}

		repo.On("HasRedeemed", "user-1", "code-1").Return(true, nil)

		assert.NoError(t, s.persistRedemption(task))
		grants.AssertNotCalled(t, "ExtendPromo", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "DecrementStock", mock.Anything)
	})

	t.Run("Durable stock is the authority", func(t *testing.T) {
		repo := new(mockPromoRepository)
		grants := new(mockGrantRepository)
		s := &promoService{repo: repo, grants: grants}

		repo.On("HasRedeemed", "user-1", "code-1").Return(false, nil)
		repo.On("DecrementStock", "code-1").Return(repository.ErrOutOfStock)

		// Swallowed, not retried: the code is simply gone.
		assert.NoError(t, s.persistRedemption(task))
		grants.AssertNotCalled(t, "ExtendPromo", mock.Anything, mock.Anything)
	})
}
