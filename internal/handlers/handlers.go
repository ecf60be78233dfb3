package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/config"
	"github.com/vblendo1/koisando-green-alien/internal/middleware"
	"github.com/vblendo1/koisando-green-alien/internal/models"
	"github.com/vblendo1/koisando-green-alien/internal/repository"
	"github.com/vblendo1/koisando-green-alien/internal/service"
)

// Pinger is anything the health check can reach, such as a pgx pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the handlers. DB and Redis are optional; nil
// reports the dependency as disabled in the health check.
type Deps struct {
	Config       *config.AppConfig
	Log          zerolog.Logger
	Catalog      *service.CatalogService
	Entitlements *service.EntitlementService
	Progress     *service.ProgressService
	Feed         *service.FeedService
	Admin        *service.AdminService
	Media        *service.MediaService
	Users        repository.UserStore
	DB           Pinger
	Redis        *redis.Client
}

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	catalog      *service.CatalogService
	entitlements *service.EntitlementService
	progress     *service.ProgressService
	feed         *service.FeedService
	admin        *service.AdminService
	media        *service.MediaService
	users        repository.UserStore
	db           Pinger
	redis        *redis.Client
}

func NewHandlerSet(deps Deps) HandlerSet {
	return HandlerSet{
		log:          deps.Log,
		cfg:          deps.Config,
		catalog:      deps.Catalog,
		entitlements: deps.Entitlements,
		progress:     deps.Progress,
		feed:         deps.Feed,
		admin:        deps.Admin,
		media:        deps.Media,
		users:        deps.Users,
		db:           deps.DB,
		redis:        deps.Redis,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	auth := middleware.Auth(h.cfg.Security.JWTAccessSecret, h.users, h.log)

	v1 := router.Group("/v1")
	v1.Use(auth)
	{
		v1.GET("/feed", h.Feed)

		v1.GET("/products", h.ListProducts)
		v1.GET("/products/:slug", h.GetProduct)
		v1.GET("/products/:slug/modules", h.ListProductModules)
		v1.GET("/modules/:id/lessons", h.ListModuleLessons)
		v1.GET("/lessons/:id", h.GetLesson)

		v1.GET("/lessons/:id/progress", h.GetProgress)
		v1.PUT("/lessons/:id/progress", h.SetProgress)
		v1.POST("/lessons/:id/progress/touch", h.TouchProgress)

		v1.GET("/me/entitlements", h.MyEntitlements)
		v1.GET("/me/progress", h.MyProgress)
	}

	admin := router.Group("/v1/admin")
	admin.Use(auth, middleware.RequireAdmin())
	if h.cfg.Security.RequireSignature && h.redis != nil {
		admin.Use(middleware.Signature(h.cfg.Security.SignatureSecret, h.redis, h.log))
	}
	{
		admin.GET("/products", h.AdminListProducts)
		admin.POST("/products", h.AdminCreateProduct)
		admin.PUT("/products/:id", h.AdminUpdateProduct)
		admin.DELETE("/products/:id", h.AdminDeleteProduct)
		admin.POST("/products/:id/cover", h.AdminUploadCover)
		admin.POST("/products/:id/thumbnail", h.AdminUploadProductThumbnail)

		admin.GET("/modules", h.AdminListModules)
		admin.POST("/modules", h.AdminCreateModule)
		admin.PUT("/modules/:id", h.AdminUpdateModule)
		admin.DELETE("/modules/:id", h.AdminDeleteModule)

		admin.GET("/lessons", h.AdminListLessons)
		admin.POST("/lessons", h.AdminCreateLesson)
		admin.PUT("/lessons/:id", h.AdminUpdateLesson)
		admin.DELETE("/lessons/:id", h.AdminDeleteLesson)
		admin.POST("/lessons/:id/thumbnail", h.AdminUploadLessonThumbnail)

		admin.GET("/entitlements", h.AdminListEntitlements)
		admin.POST("/entitlements", h.AdminGrant)
		admin.DELETE("/entitlements/:id", h.AdminRevoke)

		admin.GET("/users", h.AdminListUsers)
		admin.POST("/users/:id/roles", h.AdminAssignRole)
		admin.DELETE("/users/:id/roles", h.AdminRevokeRole)
	}
}

func actorOf(c *gin.Context) models.Actor {
	actor, _ := middleware.ActorFrom(c)
	return actor
}
