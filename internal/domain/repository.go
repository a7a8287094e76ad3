// Package domain 定义领域模型和接口
package domain

import (
	"context"
	"time"
)

// HistoryRepository 历史记录仓储接口
type HistoryRepository interface {
	// Create 插入一条历史记录；版本冲突时返回唯一约束错误
	Create(ctx context.Context, record *HistoryRecord) (*HistoryRecord, error)

	// GetLatestVersion 获取实体的最新版本号，无记录时返回 0
	GetLatestVersion(ctx context.Context, uid int64, entityType EntityType, entityID int64) (int64, error)

	// GetLatest 获取实体的最新历史记录
	GetLatest(ctx context.Context, uid int64, entityType EntityType, entityID int64) (*HistoryRecord, error)

	// GetByVersion 获取指定版本的历史记录
	GetByVersion(ctx context.Context, uid int64, entityType EntityType, entityID, version int64) (*HistoryRecord, error)

	// ListVersionRange 获取 [from, to] 范围内的历史记录，按版本倒序
	ListVersionRange(ctx context.Context, uid int64, entityType EntityType, entityID, from, to int64) ([]*HistoryRecord, error)

	// ListByEntity 分页获取实体历史，按版本倒序
	ListByEntity(ctx context.Context, uid int64, entityType EntityType, entityID int64, page, pageSize int) ([]*HistoryRecord, int64, error)

	// ListByUser 分页获取用户的历史动态，entityType 为空表示全部类型
	ListByUser(ctx context.Context, uid int64, entityType EntityType, page, pageSize int) ([]*HistoryRecord, int64, error)

	// ListEntityKeys 获取用户所有存在历史记录的实体
	ListEntityKeys(ctx context.Context, uid int64) ([]EntityKey, error)

	// DeleteByEntity 删除实体的全部历史记录，返回删除条数
	DeleteByEntity(ctx context.Context, uid int64, entityType EntityType, entityID int64) (int64, error)
}

// ContentRepository 书签/笔记/提示词仓储接口
type ContentRepository interface {
	// GetByID 获取实体，includeDeleted 为 true 时包含软删除记录
	GetByID(ctx context.Context, uid int64, entityType EntityType, id int64, includeDeleted bool) (*Content, error)

	// Create 创建实体
	Create(ctx context.Context, content *Content) (*Content, error)

	// Update 更新实体的可编辑字段
	Update(ctx context.Context, content *Content) (*Content, error)

	// SoftDelete 软删除
	SoftDelete(ctx context.Context, uid int64, entityType EntityType, id int64) error

	// Undelete 恢复软删除
	Undelete(ctx context.Context, uid int64, entityType EntityType, id int64) error

	// SetArchived 设置或清除归档时间
	SetArchived(ctx context.Context, uid int64, entityType EntityType, id int64, archivedAt *time.Time) error

	// HardDelete 物理删除
	HardDelete(ctx context.Context, uid int64, entityType EntityType, id int64) error
}

// UserRepository 用户仓储接口
type UserRepository interface {
	// GetByUID 根据UID获取用户
	GetByUID(ctx context.Context, uid int64) (*User, error)

	// Create 创建用户
	Create(ctx context.Context, user *User) (*User, error)

	// Ensure 用户不存在时创建
	Ensure(ctx context.Context, uid int64) error

	// Delete 删除用户，历史记录随外键级联删除
	Delete(ctx context.Context, uid int64) error

	// GetAllUIDs 获取所有用户UID
	GetAllUIDs(ctx context.Context) ([]int64, error)
}

// Transactor runs work inside one database transaction carried on ctx.
// Transactor 在 ctx 携带的同一数据库事务中执行操作
type Transactor interface {
	// Transaction 在事务中执行 fn；ctx 中已有事务时以保存点嵌套
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// ExecuteWrite 按用户串行化后在事务中执行 fn
	ExecuteWrite(ctx context.Context, uid int64, fn func(ctx context.Context) error) error
}
