package routers

import (
	"github.com/haierkeys/fast-content-service/internal/app"
	"github.com/haierkeys/fast-content-service/internal/middleware"
	"github.com/haierkeys/fast-content-service/internal/routers/api_router"

	"github.com/gin-gonic/gin"
)

// NewRouter 创建公开 API 路由
func NewRouter(appContainer *app.App) *gin.Engine {
	cfg := appContainer.Config()

	r := gin.New()

	healthHandler := api_router.NewHealthHandler(appContainer)
	r.GET("/api/health", healthHandler.Check)

	api := r.Group("/api")
	{
		api.Use(middleware.TraceMiddleware(cfg.GetTraceConfig())) // Trace ID 中间件
		api.Use(middleware.ContextTimeout(cfg.GetContextTimeout()))
		api.Use(middleware.AccessLog(appContainer.Logger()))
		api.Use(middleware.RecoveryWithLogger(appContainer.Logger()))
		api.Use(middleware.LangWithTranslator(appContainer.Translator, cfg.App.Language))
		api.Use(middleware.Identity())

		// 创建 Handlers（注入 App Container）
		historyHandler := api_router.NewHistoryHandler(appContainer)
		contentHandler := api_router.NewContentHandler(appContainer)

		api.GET("/history", historyHandler.List)
		api.GET("/history/user", historyHandler.UserList)
		api.GET("/history/content", historyHandler.Content)
		api.POST("/history/restore", historyHandler.Restore)

		api.GET("/content", contentHandler.Get)
		api.POST("/content", contentHandler.Create)
		api.PUT("/content", contentHandler.Update)
		api.DELETE("/content", contentHandler.Delete)
		api.POST("/content/undelete", contentHandler.Undelete)
		api.POST("/content/archive", contentHandler.Archive)
		api.POST("/content/unarchive", contentHandler.Unarchive)
	}

	r.NoRoute(middleware.NoFound())

	return r
}
