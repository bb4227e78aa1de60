package model

import (
	"time"

	baseModel "mindcare_billing/pkg/model"
)

// PromoCode grants free access time when redeemed. One authoritative
// schema; redemptions are tracked per user in promo_redemptions.
type PromoCode struct {
	baseModel.BaseModel
	Code      string    `gorm:"unique;not null" json:"code"`
	GrantDays int       `gorm:"not null" json:"grantDays"`
	Total     int       `json:"total"`
	Stock     int       `json:"stock"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// PromoRedemption records one user redeeming one code.
type PromoRedemption struct {
	baseModel.BaseModel
	UserID string `gorm:"type:uuid;index;not null" json:"userId"`
	CodeID string `gorm:"type:uuid;index;not null" json:"codeId"`
}
