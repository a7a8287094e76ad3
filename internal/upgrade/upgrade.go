// Package upgrade 按语义化版本顺序执行数据库升级脚本
package upgrade

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/haierkeys/fast-content-service/internal/app"
	"github.com/haierkeys/fast-content-service/internal/dao"
	"github.com/haierkeys/fast-content-service/internal/service"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"
)

// DefaultReferenceFile 记录上次运行版本号的文件
const DefaultReferenceFile = "storage/lastVersion"

// baseVersion 没有参考版本时的基准，所有升级脚本都会执行
const baseVersion = "v0.0.0"

// SchemaVersion 数据库版本记录表
type SchemaVersion struct {
	ID          int       `gorm:"primaryKey;autoIncrement" json:"id"`
	Version     string    `gorm:"not null;uniqueIndex;type:varchar(64)" json:"version"`
	Description string    `gorm:"type:text" json:"description"`
	AppliedAt   time.Time `gorm:"not null" json:"applied_at"`
}

// TableName 指定表名
func (SchemaVersion) TableName() string {
	return "schema_version"
}

// Migration 定义升级接口
// Up 在事务中执行，ctx 携带该事务
type Migration interface {
	Version() string
	Description() string
	Up(ctx context.Context, db *service.DBUtils) error
}

// MigrationManager 升级管理器
type MigrationManager struct {
	dao            *dao.Dao
	db             *service.DBUtils
	logger         *zap.Logger
	migrations     []Migration
	referenceFile  string
	runningVersion string
}

// NewMigrationManager 创建升级管理器
func NewMigrationManager(d *dao.Dao, logger *zap.Logger, referenceFile, runningVersion string) *MigrationManager {
	return &MigrationManager{
		dao:    d,
		db:     service.NewDBUtils(d),
		logger: logger,
		migrations: []Migration{
			// 在这里注册所有的升级脚本
			&HistoryTablesMigrate{},
			&OrphanHistoryMigrate{},
		},
		referenceFile:  referenceFile,
		runningVersion: normalize(runningVersion),
	}
}

func normalize(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// Run 执行升级
func (m *MigrationManager) Run(ctx context.Context) error {
	m.logger.Info("Migration started")
	if err := m.db.ExposeAutoMigrate(ctx); err != nil {
		return fmt.Errorf("failed to dao db auto migrate: %w", err)
	}

	// 确保 schema_version 表存在
	if err := m.db.AutoMigrateModels(ctx, &SchemaVersion{}); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	appliedVersions, err := m.getAppliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied versions: %w", err)
	}

	lastVersion := normalize(m.getReferenceVersion())
	if !semver.IsValid(lastVersion) {
		m.logger.Warn("reference version is not a valid semver, using base version",
			zap.String("lastVersion", lastVersion), zap.String("baseVersion", baseVersion))
		lastVersion = baseVersion
	}

	// 当前运行版本不比上次运行版本新时跳过
	if semver.IsValid(m.runningVersion) && semver.Compare(m.runningVersion, lastVersion) <= 0 {
		m.logger.Info("skipping upgrade", zap.String("runningVersion", m.runningVersion), zap.String("lastVersion", lastVersion))
		return nil
	}

	migrations := make([]Migration, len(m.migrations))
	copy(migrations, m.migrations)
	sort.SliceStable(migrations, func(i, j int) bool {
		return semver.Compare(normalize(migrations[i].Version()), normalize(migrations[j].Version())) < 0
	})

	executed := 0
	for _, migration := range migrations {
		scriptVersion := normalize(migration.Version())

		if semver.Compare(scriptVersion, lastVersion) <= 0 {
			m.logger.Info("skip migration <= lastVersion",
				zap.String("scriptVersion", scriptVersion),
				zap.String("lastVersion", lastVersion))
			continue
		}
		if appliedVersions[scriptVersion] {
			continue
		}

		m.logger.Info("applying migration",
			zap.String("scriptVersion", scriptVersion),
			zap.String("desc", migration.Description()))

		if err := m.dao.Transaction(ctx, func(ctx context.Context) error {
			if err := migration.Up(ctx, m.db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			record := &SchemaVersion{
				Version:     scriptVersion,
				Description: migration.Description(),
				AppliedAt:   time.Now(),
			}
			if err := m.dao.DB(ctx).Create(record).Error; err != nil {
				return fmt.Errorf("failed to record version: %w", err)
			}
			return nil
		}); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", scriptVersion, err)
		}

		m.logger.Info("migration applied successfully", zap.String("scriptVersion", scriptVersion))
		executed++
	}

	if executed == 0 {
		m.logger.Info("database is already up to date")
	} else {
		m.logger.Info("upgrade completed", zap.Int("migrations_applied", executed))
	}

	if err := m.saveReferenceVersion(m.runningVersion); err != nil {
		m.logger.Error("save lastVersion failed", zap.Error(err))
	}

	return nil
}

// getAppliedVersions 获取已应用的数据库版本
func (m *MigrationManager) getAppliedVersions(ctx context.Context) (map[string]bool, error) {
	var versions []SchemaVersion
	if err := m.dao.DB(ctx).Find(&versions).Error; err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[normalize(v.Version)] = true
	}
	return applied, nil
}

// getReferenceVersion 读取参考版本号，文件不存在或为空时返回基准版本
func (m *MigrationManager) getReferenceVersion() string {
	content, err := os.ReadFile(m.referenceFile)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("read lastVersion failed", zap.String("file", m.referenceFile), zap.Error(err))
		}
		return baseVersion
	}

	ver := strings.TrimSpace(string(content))
	if ver == "" {
		return baseVersion
	}
	return ver
}

// saveReferenceVersion 保存当前版本号，作为下一次运行的基准
func (m *MigrationManager) saveReferenceVersion(version string) error {
	if err := os.MkdirAll(filepath.Dir(m.referenceFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(m.referenceFile, []byte(version), 0644)
}

// Execute 使用应用容器执行升级(便捷方法)
func Execute(ctx context.Context, appContainer *app.App) error {
	if appContainer == nil {
		return fmt.Errorf("app container not initialized")
	}
	manager := NewMigrationManager(appContainer.Dao, appContainer.Logger(), DefaultReferenceFile, app.Version)
	return manager.Run(ctx)
}
