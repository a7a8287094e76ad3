package domain

import "time"

// Tag 标签
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Relationship 指向其他实体的关联
type Relationship struct {
	TargetType       EntityType `json:"target_type"`
	TargetID         int64      `json:"target_id"`
	RelationshipType string     `json:"relationship_type"`
	Description      string     `json:"description"`
}

// PromptArgument 提示词模板参数
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Content is a live bookmark, note or prompt. URL is bookmark-only,
// Name and Arguments are prompt-only.
// Content 书签、笔记或提示词的当前状态；URL 仅书签使用，Name 与 Arguments 仅提示词使用
type Content struct {
	ID            int64
	UID           int64
	Type          EntityType
	Title         string
	Description   string
	Content       string
	URL           string
	Name          string
	Arguments     []PromptArgument
	Tags          []Tag
	Relationships []Relationship
	ArchivedAt    *time.Time
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsDeleted 判断是否已软删除
func (c *Content) IsDeleted() bool {
	return c.DeletedAt != nil
}

// IsArchived 判断是否已归档
func (c *Content) IsArchived() bool {
	return c.ArchivedAt != nil
}

// User 用户领域模型
type User struct {
	UID       int64
	Username  string
	CreatedAt time.Time
}
