package repository

import (
	"errors"

	"mindcare_billing/internal/domain/promo/model"

	"gorm.io/gorm"
)

// ErrOutOfStock is returned when the conditional decrement finds no
// stock left.
var ErrOutOfStock = errors.New("promo code out of stock")

// PromoRepository persists promo codes and redemptions.
type PromoRepository interface {
	Create(code *model.PromoCode) error
	GetByCode(code string) (*model.PromoCode, error)
	DecrementStock(codeID string) error
	CreateRedemption(redemption *model.PromoRedemption) error
	HasRedeemed(userID, codeID string) (bool, error)
}

type promoRepository struct {
	db *gorm.DB
}

// NewPromoRepository creates the gorm-backed repository.
func NewPromoRepository(db *gorm.DB) PromoRepository {
	return &promoRepository{db: db}
}

func (r *promoRepository) Create(code *model.PromoCode) error {
	return r.db.Create(code).Error
}

func (r *promoRepository) GetByCode(code string) (*model.PromoCode, error) {
	var promo model.PromoCode
	if err := r.db.Where("code = ?", code).First(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

// DecrementStock decrements conditionally so the database stays the
// authority even if the redis pre-check drifted.
func (r *promoRepository) DecrementStock(codeID string) error {
	res := r.db.Model(&model.PromoCode{}).
		Where("id = ? AND stock > 0", codeID).
		Update("stock", gorm.Expr("stock - 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOutOfStock
	}
	return nil
}

func (r *promoRepository) CreateRedemption(redemption *model.PromoRedemption) error {
	return r.db.Create(redemption).Error
}

func (r *promoRepository) HasRedeemed(userID, codeID string) (bool, error) {
	var count int64
	if err := r.db.Model(&model.PromoRedemption{}).
		Where("user_id = ? AND code_id = ?", userID, codeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
