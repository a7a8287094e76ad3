package upgrade

import (
	"context"

	"github.com/haierkeys/fast-content-service/internal/service"
)

// OrphanHistoryMigrate 清理所属用户已被删除的历史记录
// 旧版本 SQLite 库未开启外键，删除用户时不会级联删除历史
type OrphanHistoryMigrate struct{}

func (m *OrphanHistoryMigrate) Version() string {
	return "1.1.0"
}

func (m *OrphanHistoryMigrate) Description() string {
	return "purge history rows whose user no longer exists"
}

func (m *OrphanHistoryMigrate) Up(ctx context.Context, db *service.DBUtils) error {
	_, err := db.PurgeOrphanHistory(ctx)
	return err
}
