// Package dto Defines data transfer objects (request parameters and response structs)
// Package dto 定义数据传输对象（请求参数和响应结构体）
package dto

import (
	"github.com/haierkeys/fast-content-service/pkg/timex"
)

// HistoryRecordDTO History record without stored content
// HistoryRecordDTO 不包含存储内容的历史记录
type HistoryRecordDTO struct {
	ID            int64          `json:"id"`
	EntityType    string         `json:"entityType"`
	EntityID      int64          `json:"entityId"`
	Version       int64          `json:"version"`
	Action        string         `json:"action"`
	DiffType      string         `json:"diffType"`
	HasSnapshot   bool           `json:"hasSnapshot"`
	HasDiff       bool           `json:"hasDiff"`
	Metadata      map[string]any `json:"metadata"`
	ChangedFields []string       `json:"changedFields"` // null for audit-only actions // 审计类操作为 null
	Source        string         `json:"source"`
	AuthType      string         `json:"authType"`
	TokenPrefix   string         `json:"tokenPrefix"`
	CreatedAt     timex.Time     `json:"createdAt"`
}

// HistoryContentDTO Content reconstructed at a version
// HistoryContentDTO 指定版本重建后的内容
type HistoryContentDTO struct {
	EntityType string   `json:"entityType"`
	EntityID   int64    `json:"entityId"`
	Version    int64    `json:"version"`
	Found      bool     `json:"found"`
	Content    *string  `json:"content"`
	Warnings   []string `json:"warnings,omitempty"`
}

// HistoryListRequest Request parameters for one entity's history
// HistoryListRequest 获取单个实体历史的请求参数
type HistoryListRequest struct {
	EntityType string `json:"entityType" form:"entityType" binding:"required,oneof=bookmark note prompt"`
	EntityID   int64  `json:"entityId" form:"entityId" binding:"required,gt=0"`
}

// UserHistoryRequest Request parameters for the user's history feed
// UserHistoryRequest 获取用户历史动态的请求参数
type UserHistoryRequest struct {
	EntityType string `json:"entityType" form:"entityType" binding:"omitempty,oneof=bookmark note prompt"`
}

// HistoryContentRequest Request parameters for content at a version
// HistoryContentRequest 获取指定版本内容的请求参数
type HistoryContentRequest struct {
	EntityType string `json:"entityType" form:"entityType" binding:"required,oneof=bookmark note prompt"`
	EntityID   int64  `json:"entityId" form:"entityId" binding:"required,gt=0"`
	Version    int64  `json:"version" form:"version" binding:"required,gt=0"`
}

// HistoryRestoreRequest Request parameters for restoring a version
// HistoryRestoreRequest 恢复历史版本的请求参数
type HistoryRestoreRequest struct {
	EntityType string `json:"entityType" form:"entityType" binding:"required,oneof=bookmark note prompt"`
	EntityID   int64  `json:"entityId" form:"entityId" binding:"required,gt=0"`
	Version    int64  `json:"version" form:"version" binding:"required,gt=0"`
}

// HistoryVerifyDTO Integrity findings for one entity
// HistoryVerifyDTO 单个实体的完整性检查结果
type HistoryVerifyDTO struct {
	UID        int64    `json:"uid"`
	EntityType string   `json:"entityType"`
	EntityID   int64    `json:"entityId"`
	Issues     []string `json:"issues"`
}

// HistoryRestoreDTO Result of restoring a version
// HistoryRestoreDTO 恢复历史版本的结果
type HistoryRestoreDTO struct {
	Content  *ContentDTO `json:"content"`
	Warnings []string    `json:"warnings,omitempty"`
}
