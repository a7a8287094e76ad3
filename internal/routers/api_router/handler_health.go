// Package api_router 提供 HTTP API 路由处理器
package api_router

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/haierkeys/fast-content-service/internal/app"
	pkgapp "github.com/haierkeys/fast-content-service/pkg/app"
	"github.com/haierkeys/fast-content-service/pkg/code"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/process"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	*Handler
}

// NewHealthHandler 创建健康检查处理器实例
func NewHealthHandler(a *app.App) *HealthHandler {
	return &HealthHandler{Handler: NewHandler(a)}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status   string  `json:"status"`   // "healthy" 或 "unhealthy"
	Version  string  `json:"version"`  // 服务版本号
	Uptime   float64 `json:"uptime"`   // 运行时间（秒）
	Database string  `json:"database"` // "connected" 或 "error"

	Process ProcessStats `json:"process"` // 当前进程资源占用
}

// ProcessStats 当前进程资源占用
type ProcessStats struct {
	Goroutines    int     `json:"goroutines"`
	RSSBytes      uint64  `json:"rssBytes"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float32 `json:"memoryPercent"`
}

// collectProcessStats reads process usage; fields gopsutil cannot read stay zero.
// collectProcessStats 读取进程资源占用，无法读取的字段保持为零
func collectProcessStats(ctx context.Context) ProcessStats {
	stats := ProcessStats{Goroutines: runtime.NumGoroutine()}

	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return stats
	}
	if info, err := p.MemoryInfoWithContext(ctx); err == nil && info != nil {
		stats.RSSBytes = info.RSS
	}
	stats.CPUPercent, _ = p.CPUPercentWithContext(ctx)
	stats.MemoryPercent, _ = p.MemoryPercentWithContext(ctx)
	return stats
}

// Check 健康检查接口，包括数据库连接
func (h *HealthHandler) Check(c *gin.Context) {
	response := HealthResponse{
		Status:   "healthy",
		Version:  h.App.Version().Version,
		Uptime:   time.Since(h.App.StartTime).Seconds(),
		Database: "connected",
		Process:  collectProcessStats(c.Request.Context()),
	}

	var one int
	if err := h.App.DB.WithContext(c.Request.Context()).Raw("SELECT 1").Scan(&one).Error; err != nil {
		h.logError(c.Request.Context(), "HealthHandler.Check", err)
		response.Status = "unhealthy"
		response.Database = "error"
		pkgapp.NewResponse(c).ToResponse(code.ErrorDBQuery.WithData(response))
		return
	}

	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(response))
}
