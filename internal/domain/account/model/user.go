package model

import (
	baseModel "mindcare_billing/pkg/model"
)

// User is an account profile. Entitlement windows live on the billing
// side (AccessGrant); the profile only carries the gateway recurring
// token so auto-renew can later be suspended without re-collecting
// card details.
type User struct {
	baseModel.BaseModel
	Email        string `gorm:"unique;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         int    `gorm:"default:0" json:"role"`

	// RecToken is the opaque recurring-payment token issued by the
	// gateway together with the order reference that produced it.
	RecToken          string `json:"-"`
	RecOrderReference string `json:"-"`
}

const (
	RoleUser  = 0
	RoleAdmin = 1
)
