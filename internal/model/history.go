package model

import "time"

const TableNameContentHistory = "content_history"

// ContentHistory mapped from table <content_history>
// One row per recorded action, never updated. (uid, entity_type, entity_id, version) is unique.
// ContentHistory 每次操作一行，写入后不再修改；(uid, entity_type, entity_id, version) 唯一
type ContentHistory struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UID              int64     `gorm:"column:uid;not null;uniqueIndex:uk_history_entity_version,priority:1;index:idx_history_user_created,priority:1" json:"uid"`
	EntityType       string    `gorm:"column:entity_type;size:20;not null;uniqueIndex:uk_history_entity_version,priority:2" json:"entityType"`
	EntityID         int64     `gorm:"column:entity_id;not null;uniqueIndex:uk_history_entity_version,priority:3" json:"entityId"`
	Version          int64     `gorm:"column:version;not null;uniqueIndex:uk_history_entity_version,priority:4" json:"version"`
	Action           string    `gorm:"column:action;size:20;not null" json:"action"`
	DiffType         string    `gorm:"column:diff_type;size:20;not null" json:"diffType"`
	ContentSnapshot  *string   `gorm:"column:content_snapshot" json:"contentSnapshot"`
	ContentDiff      *string   `gorm:"column:content_diff" json:"contentDiff"`
	MetadataSnapshot string    `gorm:"column:metadata_snapshot" json:"metadataSnapshot"`
	ChangedFields    *string   `gorm:"column:changed_fields" json:"changedFields"`
	Source           string    `gorm:"column:source;size:64;not null;default:''" json:"source"`
	AuthType         string    `gorm:"column:auth_type;size:32;not null;default:''" json:"authType"`
	TokenPrefix      string    `gorm:"column:token_prefix;size:32;not null;default:''" json:"tokenPrefix"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime;index:idx_history_user_created,priority:2" json:"createdAt"`

	User *User `gorm:"foreignKey:UID;references:UID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName ContentHistory's table name
func (*ContentHistory) TableName() string {
	return TableNameContentHistory
}
