package account

import (
	"mindcare_billing/internal/domain/account/handler"
	"mindcare_billing/internal/domain/account/repository"
	"mindcare_billing/internal/domain/account/service"
	"mindcare_billing/internal/pkg/middleware"
	"mindcare_billing/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// AccountModule wires the auth subsystem.
type AccountModule struct{}

func init() {
	registry.Register(&AccountModule{})
}

func (m *AccountModule) Name() string {
	return "account"
}

func (m *AccountModule) Priority() int {
	// Billing and promo depend on accounts, so this comes up first.
	return 10
}

func (m *AccountModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewUserRepository(ctx.DB)
	svc := service.NewAccountService(repo)
	h := handler.NewAccountHandler(svc)

	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.AccountHandler) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}

	userGroup := r.Group("/users")
	userGroup.Use(middleware.AuthMiddleware())
	{
		userGroup.GET("/me", h.Me)
	}
}
