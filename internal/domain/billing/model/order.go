package model

import (
	"encoding/json"
	"time"

	baseModel "mindcare_billing/pkg/model"
)

// Order is one checkout attempt. The row is upserted by reference:
// the callback receiver and the status sync both write it, and a later
// write never regresses a paid order.
type Order struct {
	baseModel.BaseModel
	OrderReference string  `gorm:"unique;not null" json:"orderReference"`
	UserID         string  `gorm:"type:uuid" json:"userId"`
	PlanID         string  `json:"planId"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Status         string  `gorm:"default:'created'" json:"status"`

	// Verified records the callback signature check separately from the
	// payment status: nil means no secret was configured (unverified),
	// which is not the same thing as a forged signature.
	Verified *bool `json:"verified,omitempty"`

	// GrantApplied marks that this order already extended the user's
	// access grant. Flipped with a conditional update so concurrent
	// sync polls extend at most once.
	GrantApplied bool `json:"grantApplied"`

	Raw    json.RawMessage `gorm:"type:jsonb" json:"raw,omitempty"`
	PaidAt *time.Time      `json:"paidAt,omitempty"`
}

const (
	OrderStatusCreated          = "created"
	OrderStatusCallbackReceived = "callback_received"
	OrderStatusPaid             = "paid"
	OrderStatusDeclined         = "declined"
	OrderStatusSignatureInvalid = "callback_signature_invalid"

	// OrderStatusNotFound is a wire-only status for sync responses;
	// it is never stored.
	OrderStatusNotFound = "not_found"
)

// IsTerminal reports whether the status can no longer change through
// the normal flow. The sync poller caches these.
func IsTerminal(status string) bool {
	switch status {
	case OrderStatusPaid, OrderStatusDeclined, OrderStatusSignatureInvalid:
		return true
	}
	return false
}
