package api

import (
	"net/http"
	"time"

	"api_commerce/internal/catalog"
	"api_commerce/internal/entitlement"
	"api_commerce/internal/identity"
	"api_commerce/internal/revenue"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// RouterConfig carries the services the HTTP layer is wired to.
type RouterConfig struct {
	Resolver    *entitlement.Resolver
	Ledger      *entitlement.Ledger
	Revenue     *revenue.Service
	Catalog     *catalog.Service
	Verifier    *identity.Verifier
	Logger      *zap.Logger
	CORSOrigins []string
	ServiceName string
}

// InitRoutes registers every endpoint on the given Gin engine.
func InitRoutes(e *gin.Engine, cfg RouterConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(cfg.CORSOrigins) > 0 {
		e.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if cfg.ServiceName != "" {
		e.Use(otelgin.Middleware(cfg.ServiceName))
	}

	courses := NewCourseHandler(cfg.Resolver, cfg.Ledger, cfg.Catalog, logger)
	creators := NewCreatorHandler(cfg.Revenue, cfg.Catalog, logger)

	optional := cfg.Verifier.Optional()
	required := cfg.Verifier.Required()

	e.GET("/courses/:id/access", optional, courses.handleCheckAccess)
	e.POST("/courses/:id/enroll", required, courses.handleEnroll)
	e.GET("/courses/:id/lessons", optional, courses.handleListLessons)
	e.POST("/courses/:id/lessons", required, courses.handleAddLesson)
	e.POST("/courses", required, courses.handleCreateCourse)
	e.DELETE("/courses/:id", required, courses.handleDeleteCourse)

	e.POST("/profiles", required, creators.handleRegisterProfile)
	e.POST("/products", required, creators.handleCreateProduct)
	e.DELETE("/products/:id", required, creators.handleDeleteProduct)
	e.GET("/creators/:id/stats", required, creators.handleGetStats)
	e.GET("/creators/:id/courses", required, creators.handleListCourses)
	e.GET("/creators/:id/storefront", creators.handleGetStorefront)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}
