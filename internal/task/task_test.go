package task

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haierkeys/fast-content-service/internal/app"
	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/internal/dto"
	"github.com/haierkeys/fast-content-service/internal/model"
	"github.com/haierkeys/fast-content-service/pkg/safe_close"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type everySchedule time.Duration

func (e everySchedule) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

type countingTask struct {
	runs     atomic.Int32
	startup  bool
	schedule cron.Schedule
	panics   bool
}

func (t *countingTask) Name() string            { return "counting" }
func (t *countingTask) Schedule() cron.Schedule { return t.schedule }
func (t *countingTask) IsStartupRun() bool      { return t.startup }
func (t *countingTask) Run(ctx context.Context) error {
	t.runs.Add(1)
	if t.panics {
		panic("boom")
	}
	return nil
}

func TestScheduler_StartupAndLoop(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(zap.NewNop(), sc)
	task := &countingTask{startup: true, schedule: everySchedule(5 * time.Millisecond), panics: true}
	s.AddTask(task)
	s.Start()

	assert.Eventually(t, func() bool { return task.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	sc.SendCloseSignal(nil)
	require.NoError(t, sc.WaitClosed())

	stopped := task.runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, task.runs.Load())
}

func TestScheduler_StartupOnly(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(zap.NewNop(), sc)
	task := &countingTask{startup: true}
	s.AddTask(task)
	s.Start()

	sc.SendCloseSignal(nil)
	require.NoError(t, sc.WaitClosed())
	assert.Equal(t, int32(1), task.runs.Load())
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("@every 6h")
	require.NoError(t, err)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(6*time.Hour), s.Next(base))

	s, err = ParseSchedule("0 3 * * *")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Next(base).Hour())

	_, err = ParseSchedule("not a schedule")
	assert.Error(t, err)
}

func newTestApp(t *testing.T, yamlBody string) *app.App {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(yamlBody), 0644))

	cfg, _, err := app.LoadConfig(cfgPath)
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "task.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	a, err := app.NewApp(cfg, zap.NewNop(), db)
	require.NoError(t, err)
	require.NoError(t, a.DBUtils.ExposeAutoMigrate(context.Background()))
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func TestNewHistoryIntegrityTask(t *testing.T) {
	a := newTestApp(t, "history:\n  integrity-check-spec: \"@every 1h\"\n")
	task, err := NewHistoryIntegrityTask(a)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "HistoryIntegrity", task.Name())
	assert.False(t, task.IsStartupRun())
	assert.NotNil(t, task.Schedule())

	a.Config().History.IntegrityCheckSpec = "bogus"
	_, err = NewHistoryIntegrityTask(a)
	assert.Error(t, err)

	a.Config().History.IntegrityCheckEnabled = false
	task, err = NewHistoryIntegrityTask(a)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestManager_RegistersConfiguredTasks(t *testing.T) {
	a := newTestApp(t, "history:\n  integrity-check-enabled: true\n")
	sc := safe_close.NewSafeClose()
	m := NewManager(a, sc)
	require.NoError(t, m.RegisterTasks())
	assert.Len(t, m.scheduler.tasks, len(GetFactories()))
}

func TestHistoryIntegrityTask_ReportsCorruption(t *testing.T) {
	a := newTestApp(t, "")
	ctx := context.Background()

	create := func(uid int64, content string) int64 {
		c, err := a.ContentService.Create(ctx, uid, &dto.ContentCreateRequest{Type: "note", Content: content}, domain.AuditContext{})
		require.NoError(t, err)
		return c.ID
	}
	update := func(uid, id int64, content string) {
		_, err := a.ContentService.Update(ctx, uid, &dto.ContentUpdateRequest{
			ID:                   id,
			ContentCreateRequest: dto.ContentCreateRequest{Type: "note", Content: content},
		}, domain.AuditContext{})
		require.NoError(t, err)
	}

	healthy := create(1, "a")
	update(1, healthy, "ab")

	broken := create(2, "x")
	update(2, broken, "xy")
	update(2, broken, "xyz")

	reports, err := VerifyAll(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, reports)

	require.NoError(t, a.DB.Model(&model.ContentHistory{}).
		Where("uid = ? AND entity_id = ? AND version = ?", 2, broken, 3).
		Update("content_diff", "not a patch").Error)
	require.NoError(t, a.DB.Where("uid = ? AND entity_id = ? AND version = ?", 2, broken, 2).
		Delete(&model.ContentHistory{}).Error)

	task, err := NewHistoryIntegrityTask(a)
	require.NoError(t, err)
	require.NoError(t, task.Run(ctx))

	reports, err = VerifyAll(ctx, a)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, int64(2), reports[0].UID)
	assert.Equal(t, broken, reports[0].EntityID)
	assert.Equal(t, []string{
		"version 3: reverse patch unreadable",
		"versions 2..2 missing",
	}, reports[0].Issues)

	assert.Equal(t, float64(2), testutil.ToFloat64(a.HistoryMetrics.IntegrityIssuesGauge))
}
