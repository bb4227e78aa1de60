package repository

import (
	"time"

	"mindcare_billing/internal/domain/billing/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GrantRepository maintains the single access grant row per user.
// Extensions are expressed in SQL so concurrent writers cannot lose an
// update or create a second row.
type GrantRepository interface {
	GetByUserID(userID string) (*model.AccessGrant, error)
	ExtendPaid(userID string, period time.Duration) error
	ExtendPromo(userID string, period time.Duration) error
	SetAutoRenew(userID string, autoRenew bool) error
}

type grantRepository struct {
	db *gorm.DB
}

// NewGrantRepository creates the gorm-backed repository.
func NewGrantRepository(db *gorm.DB) GrantRepository {
	return &grantRepository{db: db}
}

func (r *grantRepository) GetByUserID(userID string) (*model.AccessGrant, error) {
	var grant model.AccessGrant
	if err := r.db.Where("user_id = ?", userID).First(&grant).Error; err != nil {
		return nil, err
	}
	return &grant, nil
}

// ExtendPaid lengthens the paid window by period, counted from the
// later of now and the current window end so back-to-back renewals
// stack instead of truncating.
func (r *grantRepository) ExtendPaid(userID string, period time.Duration) error {
	return r.extend(userID, "paid_until", period)
}

// ExtendPromo does the same for the promo window.
func (r *grantRepository) ExtendPromo(userID string, period time.Duration) error {
	return r.extend(userID, "promo_until", period)
}

func (r *grantRepository) extend(userID, column string, period time.Duration) error {
	seconds := int64(period / time.Second)
	sql := `
		INSERT INTO access_grants (id, user_id, ` + column + `, created_at, updated_at)
		VALUES (?, ?, now() + make_interval(secs => ?), now(), now())
		ON CONFLICT (user_id) DO UPDATE
		SET ` + column + ` = GREATEST(access_grants.` + column + `, now()) + make_interval(secs => ?),
		    updated_at = now()`
	return r.db.Exec(sql, uuid.New().String(), userID, seconds, seconds).Error
}

// SetAutoRenew records a cancellation (or re-enable) of auto-renew.
func (r *grantRepository) SetAutoRenew(userID string, autoRenew bool) error {
	updates := map[string]interface{}{
		"auto_renew": autoRenew,
		"updated_at": time.Now(),
	}
	if autoRenew {
		updates["cancelled_at"] = nil
	} else {
		now := time.Now()
		updates["cancelled_at"] = &now
	}
	return r.db.Model(&model.AccessGrant{}).Where("user_id = ?", userID).Updates(updates).Error
}
