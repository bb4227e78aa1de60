package promo

import (
	billingRepo "mindcare_billing/internal/domain/billing/repository"
	"mindcare_billing/internal/domain/promo/handler"
	"mindcare_billing/internal/domain/promo/repository"
	"mindcare_billing/internal/domain/promo/service"
	"mindcare_billing/internal/pkg/middleware"
	"mindcare_billing/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// PromoModule wires promo code redemption.
type PromoModule struct{}

func init() {
	registry.Register(&PromoModule{})
}

func (m *PromoModule) Name() string {
	return "promo"
}

func (m *PromoModule) Priority() int {
	// Writes access grants, so it comes after billing.
	return 30
}

func (m *PromoModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewPromoRepository(ctx.DB)
	grants := billingRepo.NewGrantRepository(ctx.DB)

	svc := service.NewPromoService(repo, grants, ctx.Redis)
	h := handler.NewPromoHandler(svc)

	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.PromoHandler) {
	g := r.Group("/promo")
	g.Use(middleware.AuthMiddleware())
	{
		g.POST("/redeem", h.Redeem)
	}

	admin := g.Group("")
	admin.Use(middleware.AdminMiddleware())
	{
		admin.POST("", h.CreatePromo)
	}
}
