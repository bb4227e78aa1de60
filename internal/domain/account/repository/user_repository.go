package repository

import (
	"mindcare_billing/internal/domain/account/model"

	"gorm.io/gorm"
)

// UserRepository is the account storage interface.
type UserRepository interface {
	Create(user *model.User) error
	GetByID(id string) (*model.User, error)
	GetByEmail(email string) (*model.User, error)
	Update(user *model.User) error
	UpdateRecurringToken(userID, recToken, orderReference string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates the gorm-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *userRepository) GetByID(id string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(email string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

// UpdateRecurringToken stores the gateway recurring token and the
// order reference that produced it on the profile.
func (r *userRepository) UpdateRecurringToken(userID, recToken, orderReference string) error {
	return r.db.Model(&model.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"rec_token":           recToken,
		"rec_order_reference": orderReference,
	}).Error
}
