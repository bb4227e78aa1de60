package billing

import (
	accountRepo "mindcare_billing/internal/domain/account/repository"
	accountService "mindcare_billing/internal/domain/account/service"
	"mindcare_billing/internal/domain/billing/handler"
	"mindcare_billing/internal/domain/billing/repository"
	"mindcare_billing/internal/domain/billing/service"
	"mindcare_billing/internal/domain/billing/wayforpay"
	"mindcare_billing/internal/pkg/config"
	"mindcare_billing/internal/pkg/middleware"
	"mindcare_billing/internal/pkg/registry"
	"mindcare_billing/pkg/cache"

	"github.com/gin-gonic/gin"
)

// BillingModule wires the payment reconciliation flow.
type BillingModule struct{}

func init() {
	registry.Register(&BillingModule{})
}

func (m *BillingModule) Name() string {
	return "billing"
}

func (m *BillingModule) Priority() int {
	// Depends on the account module.
	return 20
}

func (m *BillingModule) Init(ctx *registry.ModuleContext) error {
	orders := repository.NewOrderRepository(ctx.DB)
	grants := repository.NewGrantRepository(ctx.DB)

	uRepo := accountRepo.NewUserRepository(ctx.DB)
	accounts := accountService.NewAccountService(uRepo)

	gateway := wayforpay.NewClient(config.GlobalConfig.WayForPay)
	statusCache := cache.NewRedisCache(ctx.Redis)

	svc := service.NewBillingService(
		orders,
		grants,
		accounts,
		gateway,
		statusCache,
		config.GlobalConfig.App.PublicURL,
		config.GlobalConfig.App.ResultPath,
	)

	h := handler.NewBillingHandler(svc, config.GlobalConfig.App.ResultPath)

	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.BillingHandler) {
	g := r.Group("/billing")

	// Gateway webhook and browser return: no auth, the gateway signs
	// its payloads instead.
	g.POST("/callback", h.Callback)
	g.GET("/return", h.Return)
	g.POST("/return", h.Return)

	// The result page polls sync before the session may be restored,
	// so it stays open; rate limiting bounds abuse.
	g.POST("/sync", h.Sync)
	g.GET("/sync", h.Sync)

	auth := g.Group("")
	auth.Use(middleware.AuthMiddleware())
	{
		auth.POST("/invoice", h.CreateInvoice)
		auth.POST("/suspend", h.Suspend)
		auth.GET("/entitlement", h.Entitlement)
	}

	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.GET("/orders", h.ListOrders)
	}
}
