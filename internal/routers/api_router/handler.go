// Package api_router 提供 HTTP API 路由处理器
package api_router

import (
	"context"

	"github.com/haierkeys/fast-content-service/internal/app"
	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/internal/middleware"
	pkgapp "github.com/haierkeys/fast-content-service/pkg/app"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 基础 Handler 结构体，封装 App Container
// 所有 API Handler 都应该嵌入此结构体以获得依赖注入能力
type Handler struct {
	App *app.App
}

// NewHandler 创建基础 Handler 实例
func NewHandler(a *app.App) *Handler {
	return &Handler{App: a}
}

// logError 记录错误日志，包含 Trace ID
func (h *Handler) logError(ctx context.Context, method string, err error) {
	traceID := middleware.GetTraceID(ctx)
	h.App.Logger().Error(method,
		zap.Error(err),
		zap.String("traceId", traceID),
	)
}

// pager 从请求中读取分页参数
func pager(c *gin.Context) *pkgapp.Pager {
	return &pkgapp.Pager{Page: pkgapp.GetPage(c), PageSize: pkgapp.GetPageSize(c)}
}

// audit 读取网关转发的审计来源
func audit(c *gin.Context) domain.AuditContext {
	source, authType, tokenPrefix := pkgapp.GetAudit(c)
	return domain.AuditContext{Source: source, AuthType: authType, TokenPrefix: tokenPrefix}
}
