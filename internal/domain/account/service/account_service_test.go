package service

import (
	"errors"
	"testing"

	"mindcare_billing/internal/domain/account/model"
	"mindcare_billing/internal/pkg/config"
	"mindcare_billing/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	config.GlobalConfig.JWT.Secret = "unit-test-secret-key-0123456789abcdef"
	config.GlobalConfig.JWT.Expire = 24
	m.Run()
}

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(user *model.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(id string) (*model.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(email string) (*model.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepository) Update(user *model.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *mockUserRepository) UpdateRecurringToken(userID, recToken, orderReference string) error {
	args := m.Called(userID, recToken, orderReference)
	return args.Error(0)
}

func hashOf(t *testing.T, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	assert.NoError(t, err)
	return string(hash)
}

func TestRegister(t *testing.T) {
	t.Run("New account", func(t *testing.T) {
		repo := new(mockUserRepository)
		repo.On("GetByEmail", "a@example.com").Return(nil, gorm.ErrRecordNotFound)
		repo.On("Create", mock.MatchedBy(func(u *model.User) bool {
			return u.Email == "a@example.com" && u.Role == model.RoleUser && u.PasswordHash != ""
		})).Return(nil)

		svc := NewAccountService(repo)
		user, err := svc.Register("a@example.com", "s3cret-pass")
		assert.NoError(t, err)
		assert.Equal(t, "a@example.com", user.Email)
		// The hash must verify and the plaintext must not be stored.
		assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")))
		repo.AssertExpectations(t)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		repo := new(mockUserRepository)
		repo.On("GetByEmail", "a@example.com").Return(&model.User{Email: "a@example.com"}, nil)

		svc := NewAccountService(repo)
		_, err := svc.Register("a@example.com", "s3cret-pass")
		assert.ErrorIs(t, err, ErrEmailTaken)
		repo.AssertNotCalled(t, "Create", mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	t.Run("Valid credentials yield a parsable token", func(t *testing.T) {
		user := &model.User{
			Email:        "a@example.com",
			PasswordHash: hashOf(t, "s3cret-pass"),
			Role:         model.RoleUser,
		}
		user.ID = "11111111-1111-1111-1111-111111111111"

		repo := new(mockUserRepository)
		repo.On("GetByEmail", "a@example.com").Return(user, nil)

		svc := NewAccountService(repo)
		token, err := svc.Login("a@example.com", "s3cret-pass")
		assert.NoError(t, err)

		claims, err := utils.ParseToken(token)
		assert.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, model.RoleUser, claims.Role)
	})

	t.Run("Wrong password", func(t *testing.T) {
		repo := new(mockUserRepository)
		repo.On("GetByEmail", "a@example.com").Return(&model.User{
			PasswordHash: hashOf(t, "s3cret-pass"),
		}, nil)

		svc := NewAccountService(repo)
		_, err := svc.Login("a@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Unknown email maps to the same error", func(t *testing.T) {
		repo := new(mockUserRepository)
		repo.On("GetByEmail", "b@example.com").Return(nil, gorm.ErrRecordNotFound)

		svc := NewAccountService(repo)
		_, err := svc.Login("b@example.com", "whatever")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Storage failure is not credential failure", func(t *testing.T) {
		repo := new(mockUserRepository)
		repo.On("GetByEmail", "a@example.com").Return(nil, errors.New("connection reset"))

		svc := NewAccountService(repo)
		_, err := svc.Login("a@example.com", "s3cret-pass")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestStoreRecurringToken(t *testing.T) {
	repo := new(mockUserRepository)
	repo.On("UpdateRecurringToken", "user-1", "tok-abc", "mc_monthly_1_aa").Return(nil)

	svc := NewAccountService(repo)
	assert.NoError(t, svc.StoreRecurringToken("user-1", "tok-abc", "mc_monthly_1_aa"))
	repo.AssertExpectations(t)
}
