// Package domain 定义领域模型和接口
package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// EntityType 可记录历史的实体类型
type EntityType string

const (
	EntityTypeBookmark EntityType = "bookmark"
	EntityTypeNote     EntityType = "note"
	EntityTypePrompt   EntityType = "prompt"
)

// EntityTypes lists every versioned entity type.
// EntityTypes 所有可版本化的实体类型
var EntityTypes = []EntityType{EntityTypeBookmark, EntityTypeNote, EntityTypePrompt}

// Valid 判断实体类型是否合法
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeBookmark, EntityTypeNote, EntityTypePrompt:
		return true
	}
	return false
}

// ParseEntityType 解析实体类型
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return t, nil
}

// HistoryAction 历史记录的操作类型
type HistoryAction string

const (
	HistoryActionCreate    HistoryAction = "create"
	HistoryActionUpdate    HistoryAction = "update"
	HistoryActionDelete    HistoryAction = "delete"
	HistoryActionRestore   HistoryAction = "restore"
	HistoryActionUndelete  HistoryAction = "undelete"
	HistoryActionArchive   HistoryAction = "archive"
	HistoryActionUnarchive HistoryAction = "unarchive"
)

// Valid 判断操作类型是否合法
func (a HistoryAction) Valid() bool {
	switch a {
	case HistoryActionCreate, HistoryActionUpdate, HistoryActionDelete, HistoryActionRestore,
		HistoryActionUndelete, HistoryActionArchive, HistoryActionUnarchive:
		return true
	}
	return false
}

// IsAuditOnly reports actions that never carry a changed-fields list.
// IsAuditOnly 审计类操作，不记录变更字段
func (a HistoryAction) IsAuditOnly() bool {
	switch a {
	case HistoryActionDelete, HistoryActionArchive, HistoryActionUnarchive,
		HistoryActionRestore, HistoryActionUndelete:
		return true
	}
	return false
}

// DiffType 历史记录的内容存储方式
type DiffType string

const (
	DiffTypeSnapshot DiffType = "snapshot"
	DiffTypeDiff     DiffType = "diff"
	DiffTypeMetadata DiffType = "metadata"
)

// StoredContent is the content payload of one history record.
// Exactly one of SnapshotContent, DiffContent or MetadataContent.
// StoredContent 历史记录的内容载荷，只能是 SnapshotContent、DiffContent、MetadataContent 之一
type StoredContent interface {
	DiffType() DiffType
	storedContent()
}

// SnapshotContent 完整内容快照；周期性快照同时携带反向补丁
type SnapshotContent struct {
	Content     string
	ReverseDiff string
	HasDiff     bool
}

// DiffContent 反向补丁（当前版本 -> 上一版本）
type DiffContent struct {
	ReverseDiff string
}

// MetadataContent 仅元数据变更，无内容载荷
type MetadataContent struct{}

func (SnapshotContent) DiffType() DiffType { return DiffTypeSnapshot }
func (DiffContent) DiffType() DiffType     { return DiffTypeDiff }
func (MetadataContent) DiffType() DiffType { return DiffTypeMetadata }

func (SnapshotContent) storedContent() {}
func (DiffContent) storedContent()     {}
func (MetadataContent) storedContent() {}

// AuditContext 调用方请求的审计来源，原样保存
type AuditContext struct {
	Source      string
	AuthType    string
	TokenPrefix string
}

// Column widths of the audit fields in the history table.
// 历史表中审计字段的列宽
const (
	MaxAuditSourceLen      = 64
	MaxAuditAuthTypeLen    = 32
	MaxAuditTokenPrefixLen = 32
)

// Truncated returns a copy whose fields fit the history table columns.
// Truncated 返回截断到历史表列宽的副本
func (a AuditContext) Truncated() AuditContext {
	return AuditContext{
		Source:      truncateRunes(a.Source, MaxAuditSourceLen),
		AuthType:    truncateRunes(a.AuthType, MaxAuditAuthTypeLen),
		TokenPrefix: truncateRunes(a.TokenPrefix, MaxAuditTokenPrefixLen),
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Metadata 某一版本的非内容字段快照
type Metadata map[string]any

// HistoryRecord 历史记录领域模型，创建后不可修改
type HistoryRecord struct {
	ID            int64
	UID           int64
	EntityType    EntityType
	EntityID      int64
	Version       int64
	Action        HistoryAction
	Stored        StoredContent
	Metadata      Metadata
	ChangedFields []string
	Audit         AuditContext
	CreatedAt     time.Time
}

// DiffType 返回记录的存储方式
func (r *HistoryRecord) DiffType() DiffType {
	if r.Stored == nil {
		return DiffTypeMetadata
	}
	return r.Stored.DiffType()
}

// Snapshot returns the full content when the record holds one.
// Snapshot 若记录含完整快照则返回
func (r *HistoryRecord) Snapshot() (string, bool) {
	if s, ok := r.Stored.(SnapshotContent); ok {
		return s.Content, true
	}
	return "", false
}

// ReverseDiff returns the serialized patch turning this version into the previous one.
// ReverseDiff 返回将本版本还原为上一版本的补丁文本
func (r *HistoryRecord) ReverseDiff() (string, bool) {
	switch s := r.Stored.(type) {
	case DiffContent:
		return s.ReverseDiff, true
	case SnapshotContent:
		return s.ReverseDiff, s.HasDiff
	}
	return "", false
}

// EntityKey identifies one entity's history stream.
// EntityKey 标识一个实体的历史序列
type EntityKey struct {
	UID        int64
	EntityType EntityType
	EntityID   int64
}

// ReconstructionResult 历史内容重建结果
type ReconstructionResult struct {
	Found    bool
	Content  *string
	Warnings []string
}
