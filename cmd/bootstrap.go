package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	internalApp "github.com/haierkeys/fast-content-service/internal/app"
	"github.com/haierkeys/fast-content-service/internal/dao"
	"github.com/haierkeys/fast-content-service/pkg/logger"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bootstrapLogger 启动阶段日志器，主日志器初始化之前使用
var bootstrapLogger *zap.Logger

func init() {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if os.Getenv("DEBUG") != "" {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), level)
	bootstrapLogger = zap.New(core, zap.AddCaller())
}

// configCandidates 未指定配置文件时依次查找的路径
var configCandidates = []string{
	"config/config-dev.yaml",
	"config.yaml",
	"config/config.yaml",
}

// resolveConfigPath 返回要使用的配置文件路径
// 未指定且均不存在时，将内嵌默认配置写入 config/config.yaml
func resolveConfigPath(configPath, defaultContent string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	for _, candidate := range configCandidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	configPath = configCandidates[len(configCandidates)-1]
	bootstrapLogger.Warn("config file not found, creating default config", zap.String("path", configPath))

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return "", fmt.Errorf("config file auto create error: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultContent), 0644); err != nil {
		return "", fmt.Errorf("config file auto create writing error: %w", err)
	}
	return configPath, nil
}

// initStorageWithConfig 创建日志与数据库所在目录
func initStorageWithConfig(cfg *internalApp.AppConfig) error {
	dirs := []string{filepath.Dir(cfg.Log.File)}
	if cfg.GetDatabaseConfig().IsSQLite() {
		dirs = append(dirs, filepath.Dir(cfg.Database.Path))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0754); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// openApp 加载配置并创建应用容器，供命令行子命令使用
func openApp(configPath string) (*internalApp.App, error) {
	configPath, err := resolveConfigPath(configPath, configDefault)
	if err != nil {
		return nil, err
	}

	appConfig, _, err := internalApp.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := initStorageWithConfig(appConfig); err != nil {
		return nil, err
	}

	lg, err := logger.NewLogger(appConfig.GetLoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	db, err := dao.NewDBEngineWithConfig(appConfig.GetDatabaseConfig(), lg)
	if err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	return internalApp.NewApp(appConfig, lg, db)
}
