package router

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"budgie/internal/backup"
	"budgie/internal/config"
	"budgie/internal/handler"
	"budgie/internal/middleware"
	"budgie/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Deps 是路由需要的运行时依赖
type Deps struct {
	DB       *gorm.DB
	Sessions *service.SessionService
	Backups  *backup.Manager
	Log      *slog.Logger
}

// SetupRouter configures the gin engine and all API routes.
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Sessions == nil {
		deps.Sessions = service.NewSessionService(deps.DB, time.Duration(cfg.JWT.ExpireHours)*time.Hour)
	}
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"environment": cfg.Server.Environment,
		})
	})

	ledgers := service.NewLedgerService(deps.DB)
	txs := service.NewTransactionService(deps.DB)

	authHandler := handler.NewAuthHandler(deps.DB, deps.Sessions, cfg)
	ledgerHandler := handler.NewLedgerHandler(ledgers, txs)
	txHandler := handler.NewTransactionHandler(txs)
	ioHandler := handler.NewImportExportHandler(ledgers)

	requireAuth := middleware.AuthMiddleware(cfg.JWT, deps.DB)

	// ====== API ======
	api := r.Group("/api")
	api.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "Budgie API",
			"version": "1.0",
			"endpoints": gin.H{
				"auth":         "/api/auth",
				"ledgers":      "/api/ledgers",
				"transactions": "/api/transactions",
				"admin":        "/api/admin",
			},
		})
	})

	// 登录/注册接口（不需要鉴权）
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/check", authHandler.Check)
	auth.GET("/me", requireAuth, authHandler.Me)
	auth.PUT("/profile", requireAuth, authHandler.UpdateProfile)
	auth.PUT("/password", requireAuth, authHandler.ChangePassword)
	auth.DELETE("/account", requireAuth, authHandler.DeleteAccount)

	// 需要登录才能访问的接口
	lg := api.Group("/ledgers", requireAuth)
	lg.GET("", ledgerHandler.List)
	lg.POST("", ledgerHandler.Create)
	lg.POST("/import", ioHandler.Import)
	lg.GET("/:id", ledgerHandler.Get)
	lg.PUT("/:id", ledgerHandler.Update)
	lg.DELETE("/:id", ledgerHandler.Delete)
	lg.GET("/:id/balance", ledgerHandler.Balance)
	lg.GET("/:id/statement", ledgerHandler.Statement)
	lg.GET("/:id/export", ioHandler.Export)
	lg.GET("/:id/export/csv", ioHandler.ExportCSV)
	lg.GET("/:id/export/xlsx", ioHandler.ExportXLSX)
	lg.POST("/:id/copy", ledgerHandler.Copy)
	lg.POST("/:id/reorder", ledgerHandler.Reorder)

	tx := api.Group("/transactions", requireAuth)
	tx.GET("", txHandler.List)
	tx.POST("", txHandler.Create)
	tx.GET("/:id", txHandler.Get)
	tx.PUT("/:id", txHandler.Update)
	tx.DELETE("/:id", txHandler.Delete)
	tx.POST("/:id/toggle-paid", txHandler.TogglePaid)
	tx.POST("/:id/toggle-cleared", txHandler.ToggleCleared)

	if deps.Backups != nil {
		backupHandler := handler.NewBackupHandler(deps.Backups, cfg.Backup.Keep)
		admin := api.Group("/admin", requireAuth, middleware.RequireAdmin())
		admin.GET("/backups", backupHandler.ListBackups)
		admin.POST("/backups", backupHandler.CreateBackup)
		admin.GET("/backups/:filename", backupHandler.DownloadBackup)
		admin.DELETE("/backups/:filename", backupHandler.DeleteBackup)
	}

	return r
}

// New wraps the engine with CORS for the configured origins.
func New(cfg *config.Config, deps Deps) http.Handler {
	return WithCORS(cfg, SetupRouter(cfg, deps))
}

func WithCORS(cfg *config.Config, next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})(next)
}

// useJSONFieldNames 让校验错误里的字段名使用 json tag
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}
