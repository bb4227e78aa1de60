package service

import (
	"errors"

	"mindcare_billing/internal/domain/account/model"
	"mindcare_billing/internal/domain/account/repository"
	"mindcare_billing/pkg/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// AccountService handles registration, login and the profile fields
// the billing flow depends on.
type AccountService interface {
	Register(email, password string) (*model.User, error)
	Login(email, password string) (string, error)
	GetUser(id string) (*model.User, error)
	StoreRecurringToken(userID, recToken, orderReference string) error
}

type accountService struct {
	repo repository.UserRepository
}

// NewAccountService creates the account service.
func NewAccountService(repo repository.UserRepository) AccountService {
	return &accountService{repo: repo}
}

func (s *accountService) Register(email, password string) (*model.User, error) {
	// 1. Reject duplicate emails up front for a clean error.
	if _, err := s.repo.GetByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. Hash and create.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
	}
	if err := s.repo.Create(user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *accountService) Login(email, password string) (string, error) {
	user, err := s.repo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, _, err := utils.GenerateToken(user.ID, user.Role)
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *accountService) GetUser(id string) (*model.User, error) {
	return s.repo.GetByID(id)
}

// StoreRecurringToken is called by the billing callback when the
// gateway reports a recToken for a paid order.
func (s *accountService) StoreRecurringToken(userID, recToken, orderReference string) error {
	return s.repo.UpdateRecurringToken(userID, recToken, orderReference)
}
