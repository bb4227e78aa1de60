package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	billingRepo "mindcare_billing/internal/domain/billing/repository"
	"mindcare_billing/internal/domain/promo/model"
	"mindcare_billing/internal/domain/promo/repository"
	"mindcare_billing/internal/pkg/worker"
	"mindcare_billing/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrCodeNotFound = errors.New("promo code not found")
	ErrCodeExpired  = errors.New("promo code is not active")
	ErrAlreadyUsed  = errors.New("promo code already redeemed")
	ErrOutOfStock   = errors.New("promo code out of stock")
)

// PromoService redeems codes into promo access time.
type PromoService interface {
	CreatePromo(code string, grantDays, total int, startTime, endTime time.Time) (*model.PromoCode, error)
	Redeem(ctx context.Context, userID, code string) error
}

type promoService struct {
	repo       repository.PromoRepository
	grants     billingRepo.GrantRepository
	rdb        *redis.Client
	soldOutMap sync.Map // codes known to be exhausted, saves a round trip
	pool       *worker.Pool
}

// NewPromoService creates the service and starts its worker pool.
func NewPromoService(repo repository.PromoRepository, grants billingRepo.GrantRepository, rdb *redis.Client) PromoService {
	s := &promoService{
		repo:   repo,
		grants: grants,
		rdb:    rdb,
	}
	s.pool = worker.NewPool(s.persistRedemption, 5, 1000)
	s.pool.Start()
	return s
}

// CreatePromo registers a new code and warms the redis stock counter.
func (s *promoService) CreatePromo(code string, grantDays, total int, startTime, endTime time.Time) (*model.PromoCode, error) {
	promo := &model.PromoCode{
		Code:      code,
		GrantDays: grantDays,
		Total:     total,
		Stock:     total,
		StartTime: startTime,
		EndTime:   endTime,
	}

	if err := s.repo.Create(promo); err != nil {
		return nil, err
	}

	stockKey := fmt.Sprintf("promo:stock:%s", promo.ID)
	s.rdb.Set(context.Background(), stockKey, total, 0)

	return promo, nil
}

// redeemScript checks "not yet redeemed by this user" and "stock left"
// and claims both atomically.
var redeemScript = redis.NewScript(`
	local user_key = KEYS[1]
	local stock_key = KEYS[2]
	local user_id = ARGV[1]

	if redis.call("SISMEMBER", user_key, user_id) == 1 then
		return -1
	end

	local stock = tonumber(redis.call("GET", stock_key))
	if stock == nil or stock <= 0 then
		return -2
	end

	redis.call("DECR", stock_key)
	redis.call("SADD", user_key, user_id)

	return 1
`)

// Redeem claims the code for the user. The redis script decides the
// winner; durable persistence and the grant extension run on the
// worker pool.
func (s *promoService) Redeem(ctx context.Context, userID, code string) error {
	promo, err := s.repo.GetByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCodeNotFound
		}
		return err
	}

	now := time.Now()
	if now.Before(promo.StartTime) || now.After(promo.EndTime) {
		return ErrCodeExpired
	}

	if _, ok := s.soldOutMap.Load(promo.ID); ok {
		return ErrOutOfStock
	}

	userKey := fmt.Sprintf("promo:users:%s", promo.ID)
	stockKey := fmt.Sprintf("promo:stock:%s", promo.ID)

	result, err := redeemScript.Run(ctx, s.rdb, []string{userKey, stockKey}, userID).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	switch result {
	case -1:
		return ErrAlreadyUsed
	case -2:
		s.soldOutMap.Store(promo.ID, struct{}{})
		return ErrOutOfStock
	}

	s.pool.AddTask(worker.RedemptionTask{
		UserID:    userID,
		CodeID:    promo.ID,
		Code:      promo.Code,
		GrantDays: promo.GrantDays,
	})

	return nil
}

// persistRedemption is the worker handler: decrement durable stock,
// record the redemption, extend the promo window.
func (s *promoService) persistRedemption(task worker.RedemptionTask) error {
	// The redis script admitted the user; re-check durably anyway.
	redeemed, err := s.repo.HasRedeemed(task.UserID, task.CodeID)
	if err != nil {
		return err
	}
	if redeemed {
		return nil
	}

	if err := s.repo.DecrementStock(task.CodeID); err != nil {
		if errors.Is(err, repository.ErrOutOfStock) {
			logger.Log.Warn("redis admitted a redemption past durable stock",
				zap.String("code_id", task.CodeID),
				zap.String("user_id", task.UserID))
			return nil
		}
		return err
	}

	if err := s.repo.CreateRedemption(&model.PromoRedemption{
		UserID: task.UserID,
		CodeID: task.CodeID,
	}); err != nil {
		return err
	}

	period := time.Duration(task.GrantDays) * 24 * time.Hour
	return s.grants.ExtendPromo(task.UserID, period)
}
