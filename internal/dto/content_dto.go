package dto

import (
	"github.com/haierkeys/fast-content-service/pkg/timex"
)

// TagDTO 标签
type TagDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RelationshipDTO 关联
type RelationshipDTO struct {
	TargetType       string `json:"targetType"`
	TargetID         int64  `json:"targetId"`
	RelationshipType string `json:"relationshipType"`
	Description      string `json:"description"`
}

// PromptArgumentDTO 提示词参数
type PromptArgumentDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ContentDTO Bookmark, note or prompt
// ContentDTO 书签、笔记或提示词
type ContentDTO struct {
	ID            int64               `json:"id"`
	Type          string              `json:"type"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Content       string              `json:"content"`
	URL           string              `json:"url,omitempty"`
	Name          string              `json:"name,omitempty"`
	Arguments     []PromptArgumentDTO `json:"arguments,omitempty"`
	Tags          []TagDTO            `json:"tags"`
	Relationships []RelationshipDTO   `json:"relationships"`
	Archived      bool                `json:"archived"`
	Deleted       bool                `json:"deleted"`
	CreatedAt     timex.Time          `json:"createdAt"`
	UpdatedAt     timex.Time          `json:"updatedAt"`
}

// ContentCreateRequest Request parameters for creating content
// ContentCreateRequest 创建内容的请求参数
type ContentCreateRequest struct {
	Type          string              `json:"type" form:"type" binding:"required,oneof=bookmark note prompt"`
	Title         string              `json:"title" form:"title" binding:"max=500"`
	Description   string              `json:"description" form:"description"`
	Content       string              `json:"content" form:"content"`
	URL           string              `json:"url" form:"url" binding:"omitempty,url"`
	Name          string              `json:"name" form:"name"`
	Arguments     []PromptArgumentDTO `json:"arguments" form:"arguments"`
	Tags          []TagDTO            `json:"tags" form:"tags"`
	Relationships []RelationshipDTO   `json:"relationships" form:"relationships"`
}

// ContentUpdateRequest Request parameters for updating content
// ContentUpdateRequest 更新内容的请求参数
type ContentUpdateRequest struct {
	ID int64 `json:"id" form:"id" binding:"required,gt=0"`
	ContentCreateRequest
}

// ContentRefRequest Identifies one entity
// ContentRefRequest 定位单个实体
type ContentRefRequest struct {
	Type      string `json:"type" form:"type" binding:"required,oneof=bookmark note prompt"`
	ID        int64  `json:"id" form:"id" binding:"required,gt=0"`
	Permanent bool   `json:"permanent" form:"permanent"`
}
