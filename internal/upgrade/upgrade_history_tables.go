package upgrade

import (
	"context"

	"github.com/haierkeys/fast-content-service/internal/model"
	"github.com/haierkeys/fast-content-service/internal/service"

	"github.com/pkg/errors"
)

// HistoryTablesMigrate 创建用户、内容与历史表
type HistoryTablesMigrate struct{}

func (m *HistoryTablesMigrate) Version() string {
	return "1.0.0"
}

func (m *HistoryTablesMigrate) Description() string {
	return "create user, content and content_history tables"
}

func (m *HistoryTablesMigrate) Up(ctx context.Context, db *service.DBUtils) error {
	if err := db.ExposeAutoMigrate(ctx); err != nil {
		return err
	}
	if !db.HasTable(ctx, model.TableNameContentHistory) {
		return errors.Errorf("table %s missing after migrate", model.TableNameContentHistory)
	}
	return nil
}
