package registry

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ModuleContext carries the shared process resources handed to each
// module at init time. Nothing else is shared between requests.
type ModuleContext struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Router *gin.Engine
}

// Module is implemented by each domain package.
type Module interface {
	// Name returns the module name.
	Name() string

	// Init wires dependencies and registers routes.
	Init(ctx *ModuleContext) error

	// Priority orders initialization (lower runs first). The account
	// module must come up before billing and promo, which depend on it.
	Priority() int
}

var moduleRegistry = make(map[string]Module)

// Register adds a module to the registry. Called from init().
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// GetModules returns all registered modules.
func GetModules() map[string]Module {
	return moduleRegistry
}

// InitModules initializes all modules in priority order.
func InitModules(ctx *ModuleContext) error {
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}

	// Few modules, a simple sort is enough.
	for i := 0; i < len(modules); i++ {
		for j := i + 1; j < len(modules); j++ {
			if modules[i].Priority() > modules[j].Priority() {
				modules[i], modules[j] = modules[j], modules[i]
			}
		}
	}

	for _, module := range modules {
		if err := module.Init(ctx); err != nil {
			return err
		}
	}

	return nil
}
