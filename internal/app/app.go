// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haierkeys/fast-content-service/internal/dao"
	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/internal/service"
	pkgapp "github.com/haierkeys/fast-content-service/pkg/app"
	"github.com/haierkeys/fast-content-service/pkg/code"
	"github.com/haierkeys/fast-content-service/pkg/diff"
	"github.com/haierkeys/fast-content-service/pkg/workerpool"
	"github.com/haierkeys/fast-content-service/pkg/writequeue"

	ut "github.com/go-playground/universal-translator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// metricsNamespace 容器级指标命名空间
const metricsNamespace = "content_service"

// App 应用容器，封装所有依赖和服务
type App struct {
	// 基础设施（注入的依赖）
	config *AppConfig
	logger *zap.Logger
	DB     *gorm.DB
	Dao    *dao.Dao

	// 并发控制组件
	workerPool    *workerpool.Pool
	writeQueueMgr *writequeue.Manager

	// 指标
	Registry       *prometheus.Registry
	HistoryMetrics *service.HistoryMetrics

	// Translator 参数校验错误翻译器
	Translator *ut.UniversalTranslator

	// Repository 层
	HistoryRepo domain.HistoryRepository
	ContentRepo domain.ContentRepository
	UserRepo    domain.UserRepository

	// Service 层
	HistoryService service.HistoryService
	ContentService service.ContentService
	DBUtils        *service.DBUtils

	// StartTime 容器创建时间
	StartTime time.Time

	// 关闭控制
	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// VersionInfo 版本信息
type VersionInfo struct {
	Version   string `json:"version"`
	GitTag    string `json:"gitTag"`
	BuildTime string `json:"buildTime"`
}

// NewApp 创建应用容器实例
// 初始化所有依赖并进行依赖注入
// cfg: 应用配置（必须）
// logger: zap 日志器（必须）
// db: 数据库连接（必须）
func NewApp(cfg *AppConfig, logger *zap.Logger, db *gorm.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	a := &App{
		config:     cfg,
		logger:     logger,
		DB:         db,
		Registry:   prometheus.NewRegistry(),
		StartTime:  time.Now(),
		shutdownCh: make(chan struct{}),
	}

	pkgapp.SetPaginationConfig(cfg.GetPaginationConfig())
	if err := code.SetGlobalDefaultLang(cfg.App.Language); err != nil {
		logger.Warn("invalid app.language", zap.Error(err))
	}

	uni, err := NewValidatorTranslator()
	if err != nil {
		return nil, fmt.Errorf("validator translations: %w", err)
	}
	a.Translator = uni

	// 初始化 Worker Pool
	wpConfig := cfg.GetWorkerPoolConfig()
	a.workerPool = workerpool.New(wpConfig, logger)

	// 初始化 Write Queue Manager
	wqConfig := cfg.GetWriteQueueConfig()
	a.writeQueueMgr = writequeue.New(wqConfig, logger)

	// 初始化 DAO（使用依赖注入）
	a.Dao = dao.New(db,
		dao.WithLogger(logger),
		dao.WithWriteQueueManager(a.writeQueueMgr),
	)

	// 注册指标
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Registry.MustRegister(a.workerPool.Collectors(metricsNamespace)...)
	a.HistoryMetrics = service.NewHistoryMetrics(a.Registry)

	// 初始化 Repository 层
	a.HistoryRepo = dao.NewHistoryRepository(a.Dao)
	a.ContentRepo = dao.NewContentRepository(a.Dao)
	a.UserRepo = dao.NewUserRepository(a.Dao)

	// 创建 ServiceConfig（从 AppConfig 提取 Service 层需要的配置）
	svcConfig := &service.ServiceConfig{
		History: cfg.GetHistoryServiceConfig(),
	}

	// 初始化 Service 层（依赖注入）
	a.HistoryService = service.NewHistoryService(a.HistoryRepo, a.ContentRepo, a.Dao, diff.New(), a.HistoryMetrics, logger, &svcConfig.History)
	a.ContentService = service.NewContentService(a.ContentRepo, a.UserRepo, a.Dao, a.HistoryService, logger)
	a.DBUtils = service.NewDBUtils(a.Dao)

	logger.Info("App container initialized successfully",
		zap.Int("workerPoolMaxWorkers", wpConfig.MaxWorkers),
		zap.Duration("writeQueueTimeout", wqConfig.WaitTimeout),
		zap.Int("snapshotInterval", svcConfig.History.SnapshotInterval))

	return a, nil
}

// Close 释放应用容器持有的资源
func (a *App) Close() error {
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		a.logger.Info("Database connection closed")
	}
	return nil
}

// Config 获取应用配置
func (a *App) Config() *AppConfig {
	return a.config
}

// Logger 获取日志器
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// SubmitTask 提交任务到 Worker Pool
// 返回错误如果池已满或已关闭
func (a *App) SubmitTask(ctx context.Context, task func(context.Context) error) error {
	return a.workerPool.Submit(ctx, task)
}

// RunTasks 在 Worker Pool 中并发执行一组任务并收集各自的错误
func (a *App) RunTasks(ctx context.Context, tasks []func(context.Context) error) []error {
	return a.workerPool.RunAll(ctx, tasks)
}

// Version 获取版本信息
func (a *App) Version() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitTag:    GitTag,
		BuildTime: BuildTime,
	}
}

// IsProductionMode 是否为生产模式
// 根据日志配置中的 Production 字段判断
func (a *App) IsProductionMode() bool {
	return a.config.Log.Production
}

// WorkerPool 获取 Worker Pool（用于高级操作）
func (a *App) WorkerPool() *workerpool.Pool {
	return a.workerPool
}

// WriteQueueManager 获取 Write Queue Manager（用于高级操作）
func (a *App) WriteQueueManager() *writequeue.Manager {
	return a.writeQueueMgr
}

// DefaultShutdownTimeout 默认关闭超时时间
const DefaultShutdownTimeout = 30 * time.Second

// Shutdown 优雅关闭应用容器
// 按顺序关闭：Worker Pool -> Write Queue Manager -> 后台操作 -> Database
// ctx 用于控制关闭超时，如果为 nil 则使用默认 30 秒超时
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("App container shutting down...")

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
	}

	select {
	case <-a.shutdownCh:
		return nil
	default:
		close(a.shutdownCh)
	}

	var errs []error

	// 1. 关闭 Worker Pool（停止接受新任务，等待现有任务完成）
	if a.workerPool != nil {
		a.logger.Info("Shutting down worker pool...")
		if err := a.workerPool.Shutdown(ctx); err != nil {
			a.logger.Warn("Worker pool shutdown error", zap.Error(err))
			errs = append(errs, fmt.Errorf("worker pool shutdown: %w", err))
		}
	}

	// 2. 关闭 Write Queue Manager（等待进行中的写操作）
	if a.writeQueueMgr != nil {
		a.logger.Info("Shutting down write queue manager...")
		if err := a.writeQueueMgr.Shutdown(ctx); err != nil {
			a.logger.Warn("write queue manager shutdown error", zap.Error(err))
			errs = append(errs, fmt.Errorf("write queue manager shutdown: %w", err))
		}
	}

	// 3. 等待所有后台操作完成
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("All background operations completed")
	case <-ctx.Done():
		a.logger.Warn("Timeout waiting for background operations")
		errs = append(errs, fmt.Errorf("timeout waiting for background operations"))
	}

	// 4. 关闭数据库连接
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.Info("App container shutdown completed")
	return nil
}

// IsShuttingDown 检查是否正在关闭
func (a *App) IsShuttingDown() bool {
	select {
	case <-a.shutdownCh:
		return true
	default:
		return false
	}
}

// TrackOperation 跟踪后台操作，Shutdown 会等待其完成
// 返回的函数必须在操作结束时调用
func (a *App) TrackOperation() func() {
	a.wg.Add(1)
	return a.wg.Done
}
