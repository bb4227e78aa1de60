package repository

import (
	"encoding/json"
	"time"

	"mindcare_billing/internal/domain/billing/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository persists checkout attempts. All writes are keyed on
// order_reference so duplicate or out-of-order deliveries converge:
// a row never leaves "paid" once it got there.
type OrderRepository interface {
	CreateOrder(order *model.Order) error
	GetByReference(orderReference string) (*model.Order, error)
	UpsertStatus(orderReference, status string, verified *bool, raw json.RawMessage, paidAt *time.Time) error
	MarkGrantApplied(orderReference string) (bool, error)
	List(offset, limit int) ([]model.Order, int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates the gorm-backed repository.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// CreateOrder inserts the optimistic "created" row at invoice time.
// Idempotent under retries with the same reference.
func (r *orderRepository) CreateOrder(order *model.Order) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_reference"}},
		DoNothing: true,
	}).Create(order).Error
}

func (r *orderRepository) GetByReference(orderReference string) (*model.Order, error) {
	var order model.Order
	if err := r.db.Where("order_reference = ?", orderReference).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpsertStatus records a gateway-reported state for the order,
// inserting the row if the optimistic create never happened. The
// conditional update keeps transitions forward-only: a stale
// callback_received can never overwrite a paid row.
func (r *orderRepository) UpsertStatus(orderReference, status string, verified *bool, raw json.RawMessage, paidAt *time.Time) error {
	order := model.Order{
		OrderReference: orderReference,
		Status:         status,
		Verified:       verified,
		Raw:            raw,
		PaidAt:         paidAt,
	}

	assignments := map[string]interface{}{
		"status":     status,
		"raw":        raw,
		"updated_at": time.Now(),
	}
	if verified != nil {
		assignments["verified"] = *verified
	}
	if paidAt != nil {
		assignments["paid_at"] = *paidAt
	}

	// The insert branch only writes what the gateway reported. A
	// callback knows nothing about user or plan; inserting the Go zero
	// values would bind '' to the uuid column and fail the whole upsert.
	return r.db.
		Select("id", "created_at", "updated_at", "order_reference", "status", "verified", "raw", "paid_at").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_reference"}},
			DoUpdates: clause.Assignments(assignments),
			Where: clause.Where{Exprs: []clause.Expression{
				gorm.Expr("orders.status <> ?", model.OrderStatusPaid),
			}},
		}).Create(&order).Error
}

// MarkGrantApplied flips the grant marker for a paid order and reports
// whether this caller won. The conditional update makes concurrent
// sync polls apply the grant exactly once.
func (r *orderRepository) MarkGrantApplied(orderReference string) (bool, error) {
	res := r.db.Model(&model.Order{}).
		Where("order_reference = ? AND status = ? AND grant_applied = ?",
			orderReference, model.OrderStatusPaid, false).
		Update("grant_applied", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List returns orders newest-first for the admin reconciliation view.
func (r *orderRepository) List(offset, limit int) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	if err := r.db.Model(&model.Order{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
