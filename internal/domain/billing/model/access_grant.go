package model

import (
	"time"

	baseModel "mindcare_billing/pkg/model"
)

// AccessGrant is the user's current entitlement, independent of any
// single order. At most one row per user; access is the union of the
// paid and promo windows, either alone suffices.
type AccessGrant struct {
	baseModel.BaseModel
	UserID      string     `gorm:"type:uuid;uniqueIndex;not null" json:"userId"`
	PaidUntil   time.Time  `json:"paidUntil"`
	PromoUntil  time.Time  `json:"promoUntil"`
	AutoRenew   bool       `gorm:"default:true" json:"autoRenew"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

// ActiveUntil returns the later of the two entitlement windows.
func (g *AccessGrant) ActiveUntil() time.Time {
	if g.PromoUntil.After(g.PaidUntil) {
		return g.PromoUntil
	}
	return g.PaidUntil
}

// Active reports whether the grant covers the given moment.
func (g *AccessGrant) Active(now time.Time) bool {
	return now.Before(g.ActiveUntil())
}
