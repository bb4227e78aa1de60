package handler

import (
	"errors"
	"net/http"

	"mindcare_billing/internal/domain/account/service"
	"mindcare_billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler exposes the auth endpoints.
type AccountHandler struct {
	service service.AccountService
}

// NewAccountHandler creates the handler.
func NewAccountHandler(s service.AccountService) *AccountHandler {
	return &AccountHandler{service: s}
}

// RegisterInput is the register request body.
type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginInput is the login request body.
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account.
func (h *AccountHandler) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	user, err := h.service.Register(input.Email, input.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			response.Fail(c, response.ErrUserExists, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, gin.H{"id": user.ID, "email": user.Email})
}

// Login authenticates and returns a session token.
func (h *AccountHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	token, err := h.service.Login(input.Email, input.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Error(c, http.StatusUnauthorized, response.ErrAuthFailed, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, gin.H{"token": token})
}

// Me returns the authenticated user's profile.
func (h *AccountHandler) Me(c *gin.Context) {
	userID := GetUserIDFromContext(c)
	if userID == "" {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Unauthorized")
		return
	}

	user, err := h.service.GetUser(userID)
	if err != nil {
		response.Error(c, http.StatusNotFound, response.ErrUserNotFound, "User not found")
		return
	}
	response.Success(c, user)
}

// GetUserIDFromContext reads the user id stored by the auth middleware.
func GetUserIDFromContext(c *gin.Context) string {
	val, _ := c.Get("userID")
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}
