package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	TableNameBookmark = "bookmark"
	TableNameNote     = "note"
	TableNamePrompt   = "prompt"
)

// ContentBase holds the columns shared by bookmark, note and prompt.
// Tags, Relationships and Arguments are JSON text.
// ContentBase 书签/笔记/提示词共用的列；Tags、Relationships、Arguments 为 JSON 文本
type ContentBase struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UID           int64          `gorm:"column:uid;not null;index" json:"uid"`
	Title         string         `gorm:"column:title;size:500;not null;default:''" json:"title"`
	Description   string         `gorm:"column:description" json:"description"`
	Content       string         `gorm:"column:content" json:"content"`
	Tags          string         `gorm:"column:tags" json:"tags"`
	Relationships string         `gorm:"column:relationships" json:"relationships"`
	ArchivedAt    *time.Time     `gorm:"column:archived_at" json:"archivedAt"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `gorm:"column:deleted_at;index" json:"deletedAt"`
}

// ContentModel is implemented by every live entity table.
// ContentModel 所有实体表模型实现的接口
type ContentModel interface {
	Base() *ContentBase
	TableName() string
}

// Bookmark mapped from table <bookmark>
type Bookmark struct {
	ContentBase
	URL string `gorm:"column:url;size:2048;not null;default:''" json:"url"`
}

// Note mapped from table <note>
type Note struct {
	ContentBase
}

// Prompt mapped from table <prompt>
type Prompt struct {
	ContentBase
	Name      string `gorm:"column:name;size:255;not null;default:''" json:"name"`
	Arguments string `gorm:"column:arguments" json:"arguments"`
}

func (m *Bookmark) Base() *ContentBase { return &m.ContentBase }
func (m *Note) Base() *ContentBase     { return &m.ContentBase }
func (m *Prompt) Base() *ContentBase   { return &m.ContentBase }

func (*Bookmark) TableName() string { return TableNameBookmark }
func (*Note) TableName() string     { return TableNameNote }
func (*Prompt) TableName() string   { return TableNamePrompt }

// NewContentModel returns an empty model for the entity type name.
// NewContentModel 根据实体类型名返回空模型
func NewContentModel(entityType string) (ContentModel, error) {
	switch entityType {
	case TableNameBookmark:
		return &Bookmark{}, nil
	case TableNameNote:
		return &Note{}, nil
	case TableNamePrompt:
		return &Prompt{}, nil
	}
	return nil, fmt.Errorf("unknown content type %q", entityType)
}
