package model

import (
	"gorm.io/gorm"
)

// AutoMigrate migrates the table group named by key.
// AutoMigrate 迁移 key 对应的数据表
func AutoMigrate(db *gorm.DB, key string) error {
	switch key {
	case "User":
		return db.AutoMigrate(&User{})

	case "Content":
		return db.AutoMigrate(&Bookmark{}, &Note{}, &Prompt{})

	case "ContentHistory":
		return db.AutoMigrate(&ContentHistory{})
	}
	return nil
}

// AutoMigrateAll migrates every table in dependency order.
// AutoMigrateAll 按依赖顺序迁移全部表
func AutoMigrateAll(db *gorm.DB) error {
	for _, key := range []string{"User", "Content", "ContentHistory"} {
		if err := AutoMigrate(db, key); err != nil {
			return err
		}
	}
	return nil
}
