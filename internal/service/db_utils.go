// Package service 实现业务逻辑层
package service

import (
	"context"

	"github.com/haierkeys/fast-content-service/internal/dao"
	"github.com/haierkeys/fast-content-service/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// DBUtils 数据库工具服务，提供数据库迁移和 SQL 执行功能
// 用于后台任务和升级脚本
type DBUtils struct {
	dao *dao.Dao
}

// NewDBUtils 创建 DBUtils 实例
func NewDBUtils(d *dao.Dao) *DBUtils {
	return &DBUtils{dao: d}
}

// ExposeAutoMigrate 迁移全部数据表
func (u *DBUtils) ExposeAutoMigrate(ctx context.Context) error {
	return errors.Wrap(model.AutoMigrateAll(u.dao.DB(ctx)), "auto migrate")
}

// ExecuteSQL 执行 SQL
func (u *DBUtils) ExecuteSQL(ctx context.Context, sql string, args ...any) error {
	return u.dao.DB(ctx).Exec(sql, args...).Error
}

// HasTable 判断表是否存在
func (u *DBUtils) HasTable(ctx context.Context, table string) bool {
	return u.dao.DB(ctx).Migrator().HasTable(table)
}

// AutoMigrateModels 迁移额外的数据表（如 schema_version）
func (u *DBUtils) AutoMigrateModels(ctx context.Context, models ...any) error {
	return errors.Wrap(u.dao.DB(ctx).AutoMigrate(models...), "auto migrate models")
}

// PurgeOrphanHistory 删除所属用户已不存在的历史记录，返回删除条数
// 未启用外键约束的 SQLite 库中，删除用户不会级联清理历史
func (u *DBUtils) PurgeOrphanHistory(ctx context.Context) (int64, error) {
	db := u.dao.DB(ctx)
	users := db.Session(&gorm.Session{NewDB: true}).Model(&model.User{}).Select("uid")
	res := db.Where("uid NOT IN (?)", users).Delete(&model.ContentHistory{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "purge orphan history")
	}
	return res.RowsAffected, nil
}
