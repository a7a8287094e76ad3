package task

import (
	"context"
	"sort"
	"sync"

	"github.com/haierkeys/fast-content-service/internal/app"
	"github.com/haierkeys/fast-content-service/internal/dto"
	"github.com/haierkeys/fast-content-service/pkg/logger"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func init() {
	Register(NewHistoryIntegrityTask)
}

// HistoryIntegrityTask 定时检查所有实体历史序列的完整性
type HistoryIntegrityTask struct {
	app      *app.App
	schedule cron.Schedule
}

// NewHistoryIntegrityTask 创建完整性检查任务，配置禁用时返回 nil
func NewHistoryIntegrityTask(appContainer *app.App) (Task, error) {
	cfg := appContainer.Config().History
	if !cfg.IntegrityCheckEnabled {
		return nil, nil
	}
	schedule, err := ParseSchedule(cfg.IntegrityCheckSpec)
	if err != nil {
		return nil, errors.Wrapf(err, "parse integrity check spec %q", cfg.IntegrityCheckSpec)
	}
	return &HistoryIntegrityTask{app: appContainer, schedule: schedule}, nil
}

// Name 返回任务名称
func (t *HistoryIntegrityTask) Name() string {
	return "HistoryIntegrity"
}

// Schedule 返回执行计划
func (t *HistoryIntegrityTask) Schedule() cron.Schedule {
	return t.schedule
}

// IsStartupRun 启动时不执行，避免拖慢启动
func (t *HistoryIntegrityTask) IsStartupRun() bool {
	return false
}

// Run 执行完整性检查并更新指标
func (t *HistoryIntegrityTask) Run(ctx context.Context) error {
	reports, err := VerifyAll(ctx, t.app)

	issues := 0
	for _, r := range reports {
		issues += len(r.Issues)
		for _, issue := range r.Issues {
			t.app.Logger().Warn("history integrity issue",
				zap.String(logger.FieldTask, t.Name()),
				zap.Int64(logger.FieldUID, r.UID),
				zap.String(logger.FieldEntityType, r.EntityType),
				zap.Int64(logger.FieldEntityID, r.EntityID),
				zap.String("issue", issue))
		}
	}
	t.app.HistoryMetrics.IntegrityIssuesGauge.Set(float64(issues))

	return err
}

// VerifyAll 按用户并发检查所有实体历史，只返回存在问题的实体
// 单个用户失败不会中断其他用户，返回第一个错误
func VerifyAll(ctx context.Context, appContainer *app.App) ([]*dto.HistoryVerifyDTO, error) {
	uids, err := appContainer.UserRepo.GetAllUIDs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}

	var (
		mu      sync.Mutex
		reports []*dto.HistoryVerifyDTO
	)

	jobs := make([]func(context.Context) error, 0, len(uids))
	for _, uid := range uids {
		jobs = append(jobs, func(ctx context.Context) error {
			found, err := VerifyUser(ctx, appContainer, uid)
			mu.Lock()
			reports = append(reports, found...)
			mu.Unlock()
			return err
		})
	}

	var firstErr error
	for _, err := range appContainer.RunTasks(ctx, jobs) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	mu.Lock()
	defer mu.Unlock()
	sort.Slice(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		if a.UID != b.UID {
			return a.UID < b.UID
		}
		if a.EntityType != b.EntityType {
			return a.EntityType < b.EntityType
		}
		return a.EntityID < b.EntityID
	})
	return reports, firstErr
}

// VerifyUser 检查单个用户的所有实体历史
func VerifyUser(ctx context.Context, appContainer *app.App, uid int64) ([]*dto.HistoryVerifyDTO, error) {
	keys, err := appContainer.HistoryService.ListEntityKeys(ctx, uid)
	if err != nil {
		return nil, errors.Wrapf(err, "list entities of user %d", uid)
	}

	var reports []*dto.HistoryVerifyDTO
	for _, key := range keys {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		issues, err := appContainer.HistoryService.VerifyEntityHistory(ctx, key)
		if err != nil {
			return reports, errors.Wrapf(err, "verify %s %d", key.EntityType, key.EntityID)
		}
		if len(issues) == 0 {
			continue
		}
		reports = append(reports, &dto.HistoryVerifyDTO{
			UID:        key.UID,
			EntityType: string(key.EntityType),
			EntityID:   key.EntityID,
			Issues:     issues,
		})
	}
	return reports, nil
}
