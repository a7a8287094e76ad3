// Package service implements the business logic layer
// Package service 实现业务逻辑层
package service

// ServiceConfig service layer configuration
// ServiceConfig 服务层配置
type ServiceConfig struct {
	History HistoryServiceConfig // History related config // 历史记录相关配置
}

// HistoryServiceConfig history service configuration
// HistoryServiceConfig 历史记录服务配置
type HistoryServiceConfig struct {
	SnapshotInterval  int // Every Nth version stores a full snapshot, 0 uses the default // 每 N 个版本存储一次完整快照，0 使用默认值
	MaxRecordAttempts int // Total attempts when a version collides // 版本冲突时的总尝试次数
}

const (
	// DefaultSnapshotInterval 默认快照间隔
	DefaultSnapshotInterval = 10
	// DefaultMaxRecordAttempts 默认记录尝试次数
	DefaultMaxRecordAttempts = 3
)

func (c *HistoryServiceConfig) withDefaults() HistoryServiceConfig {
	out := HistoryServiceConfig{}
	if c != nil {
		out = *c
	}
	if out.SnapshotInterval <= 0 {
		out.SnapshotInterval = DefaultSnapshotInterval
	}
	if out.MaxRecordAttempts <= 0 {
		out.MaxRecordAttempts = DefaultMaxRecordAttempts
	}
	return out
}
