package model

import "time"

const TableNameUser = "user"

// User mapped from table <user>
type User struct {
	UID       int64     `gorm:"column:uid;primaryKey;autoIncrement" json:"uid"`
	Username  string    `gorm:"column:username;size:64;not null;default:''" json:"username"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName User's table name
func (*User) TableName() string {
	return TableNameUser
}
