package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haierkeys/fast-content-service/internal/dao"
	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/internal/dto"
	"github.com/haierkeys/fast-content-service/internal/model"
	"github.com/haierkeys/fast-content-service/pkg/app"
	"github.com/haierkeys/fast-content-service/pkg/code"
	"github.com/haierkeys/fast-content-service/pkg/diff"
	"github.com/haierkeys/fast-content-service/pkg/writequeue"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUID int64 = 7

var testAudit = domain.AuditContext{Source: "web", AuthType: "jwt", TokenPrefix: ""}

type testEnv struct {
	dao         *dao.Dao
	historyRepo domain.HistoryRepository
	contentRepo domain.ContentRepository
	metrics     *HistoryMetrics
	history     HistoryService
	content     ContentService
}

func newTestEnv(t *testing.T, wrap func(domain.HistoryRepository) domain.HistoryRepository) *testEnv {
	t.Helper()
	db, err := dao.NewDBEngineWithConfig(dao.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "history.sqlite3"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrateAll(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	wq := writequeue.New(writequeue.Config{WaitTimeout: 10 * time.Second}, nil)
	d := dao.New(db, dao.WithWriteQueueManager(wq))

	historyRepo := dao.NewHistoryRepository(d)
	if wrap != nil {
		historyRepo = wrap(historyRepo)
	}
	contentRepo := dao.NewContentRepository(d)
	userRepo := dao.NewUserRepository(d)
	require.NoError(t, userRepo.Ensure(context.Background(), testUID))

	metrics := NewHistoryMetrics(nil)
	historySvc := NewHistoryService(historyRepo, contentRepo, d, diff.New(), metrics, nil, &HistoryServiceConfig{SnapshotInterval: 10, MaxRecordAttempts: 3})
	return &testEnv{
		dao:         d,
		historyRepo: historyRepo,
		contentRepo: contentRepo,
		metrics:     metrics,
		history:     historySvc,
		content:     NewContentService(contentRepo, userRepo, d, historySvc, nil),
	}
}

func (e *testEnv) create(t *testing.T, entityType domain.EntityType, content string) int64 {
	t.Helper()
	out, err := e.content.Create(context.Background(), testUID, &dto.ContentCreateRequest{
		Type:    string(entityType),
		Title:   "title",
		Content: content,
	}, testAudit)
	require.NoError(t, err)
	return out.ID
}

func (e *testEnv) update(t *testing.T, entityType domain.EntityType, id int64, content string) {
	t.Helper()
	_, err := e.content.Update(context.Background(), testUID, &dto.ContentUpdateRequest{
		ID: id,
		ContentCreateRequest: dto.ContentCreateRequest{
			Type:    string(entityType),
			Title:   "title",
			Content: content,
		},
	}, testAudit)
	require.NoError(t, err)
}

func (e *testEnv) reconstruct(t *testing.T, entityType domain.EntityType, id, version int64) *domain.ReconstructionResult {
	t.Helper()
	res, err := e.history.ReconstructContentAtVersion(context.Background(), testUID, entityType, id, version)
	require.NoError(t, err)
	return res
}

func (e *testEnv) versions(t *testing.T, entityType domain.EntityType, id int64) []*domain.HistoryRecord {
	t.Helper()
	latest, err := e.historyRepo.GetLatestVersion(context.Background(), testUID, entityType, id)
	require.NoError(t, err)
	records, err := e.historyRepo.ListVersionRange(context.Background(), testUID, entityType, id, 1, latest)
	require.NoError(t, err)
	return records
}

func assertContent(t *testing.T, res *domain.ReconstructionResult, want string) {
	t.Helper()
	require.True(t, res.Found)
	require.NotNil(t, res.Content)
	assert.Equal(t, want, *res.Content)
	assert.Empty(t, res.Warnings)
}

func TestHistory_ThreeVersionScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, domain.EntityTypeNote, "A")
	env.update(t, domain.EntityTypeNote, id, "AB")
	env.update(t, domain.EntityTypeNote, id, "ABC")

	records := env.versions(t, domain.EntityTypeNote, id)
	require.Len(t, records, 3)
	assert.Equal(t, domain.DiffTypeDiff, records[0].DiffType())
	assert.Equal(t, domain.DiffTypeDiff, records[1].DiffType())
	assert.Equal(t, domain.DiffTypeSnapshot, records[2].DiffType())
	assert.Equal(t, []string{"content"}, records[0].ChangedFields)
	assert.Equal(t, []string{"content", "title"}, records[2].ChangedFields)
	assert.Equal(t, "web", records[0].Audit.Source)

	assertContent(t, env.reconstruct(t, domain.EntityTypeNote, id, 1), "A")
	assertContent(t, env.reconstruct(t, domain.EntityTypeNote, id, 2), "AB")
	assertContent(t, env.reconstruct(t, domain.EntityTypeNote, id, 3), "ABC")

	// 重复重建结果一致且不修改记录
	assertContent(t, env.reconstruct(t, domain.EntityTypeNote, id, 2), "AB")
	assert.Equal(t, records, env.versions(t, domain.EntityTypeNote, id))

	for _, v := range []int64{0, -1, 4} {
		assert.False(t, env.reconstruct(t, domain.EntityTypeNote, id, v).Found, "version %d", v)
	}
}

func TestHistory_SnapshotBoundary(t *testing.T) {
	env := newTestEnv(t, nil)
	contents := []string{"line 1\n"}
	id := env.create(t, domain.EntityTypeBookmark, contents[0])
	for v := 2; v <= 11; v++ {
		next := contents[len(contents)-1] + fmt.Sprintf("line %d\n", v)
		contents = append(contents, next)
		env.update(t, domain.EntityTypeBookmark, id, next)
	}

	records := env.versions(t, domain.EntityTypeBookmark, id)
	require.Len(t, records, 11)
	v10 := records[1]
	require.Equal(t, int64(10), v10.Version)
	snapshot, ok := v10.Snapshot()
	require.True(t, ok)
	assert.Equal(t, contents[9], snapshot)
	_, hasDiff := v10.ReverseDiff()
	assert.True(t, hasDiff)

	// 破坏 v11 的补丁：v10 与 v9 的重建都不应经过它
	require.NoError(t, env.dao.Root().Model(&model.ContentHistory{}).
		Where("entity_id = ? AND version = ?", id, 11).
		Update("content_diff", "not a patch").Error)

	assertContent(t, env.reconstruct(t, domain.EntityTypeBookmark, id, 10), contents[9])
	assertContent(t, env.reconstruct(t, domain.EntityTypeBookmark, id, 9), contents[8])

	// 最新版本直接取当前内容
	assertContent(t, env.reconstruct(t, domain.EntityTypeBookmark, id, 11), contents[10])
}

func TestHistory_RoundTripAcrossSnapshots(t *testing.T) {
	env := newTestEnv(t, nil)
	var contents []string
	text := "The quick brown fox"
	id := env.create(t, domain.EntityTypeNote, text)
	contents = append(contents, text)

	for v := 2; v <= 25; v++ {
		switch v % 3 {
		case 0:
			text = strings.Replace(text, "quick", fmt.Sprintf("quick%d", v), 1)
		case 1:
			text = fmt.Sprintf("%d: %s", v, text)
		default:
			text = text + fmt.Sprintf("\njumps %d times", v)
		}
		contents = append(contents, text)
		env.update(t, domain.EntityTypeNote, id, text)
	}

	for v := int64(1); v <= 25; v++ {
		assertContent(t, env.reconstruct(t, domain.EntityTypeNote, id, v), contents[v-1])
	}

	issues, err := env.history.VerifyEntityHistory(context.Background(), domain.EntityKey{UID: testUID, EntityType: domain.EntityTypeNote, EntityID: id})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestHistory_MetadataOnlyActions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	id := env.create(t, domain.EntityTypePrompt, "Hello {{ name }}")
	env.update(t, domain.EntityTypePrompt, id, "Hi {{ name }}")

	_, err := env.content.Archive(ctx, testUID, domain.EntityTypePrompt, id, testAudit)
	require.NoError(t, err)
	_, err = env.content.Unarchive(ctx, testUID, domain.EntityTypePrompt, id, testAudit)
	require.NoError(t, err)

	records := env.versions(t, domain.EntityTypePrompt, id)
	require.Len(t, records, 4)
	for _, r := range records[:2] {
		assert.Equal(t, domain.DiffTypeMetadata, r.DiffType(), "version %d", r.Version)
		assert.Nil(t, r.ChangedFields)
		_, hasSnapshot := r.Snapshot()
		_, hasDiff := r.ReverseDiff()
		assert.False(t, hasSnapshot)
		assert.False(t, hasDiff)
	}
	assert.Equal(t, domain.HistoryActionUnarchive, records[0].Action)
	assert.Equal(t, domain.HistoryActionArchive, records[1].Action)

	assertContent(t, env.reconstruct(t, domain.EntityTypePrompt, id, 1), "Hello {{ name }}")
	for v := int64(2); v <= 4; v++ {
		assertContent(t, env.reconstruct(t, domain.EntityTypePrompt, id, v), "Hi {{ name }}")
	}
}

func TestHistory_SoftDeleteUndeleteAndRestore(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	id := env.create(t, domain.EntityTypeNote, "first")
	env.update(t, domain.EntityTypeNote, id, "second")

	require.NoError(t, env.content.Delete(ctx, testUID, domain.EntityTypeNote, id, false, testAudit))
	err := env.content.Delete(ctx, testUID, domain.EntityTypeNote, id, false, testAudit)
	assert.Error(t, err)

	records := env.versions(t, domain.EntityTypeNote, id)
	require.Len(t, records, 3)
	deleted := records[0]
	assert.Equal(t, domain.HistoryActionDelete, deleted.Action)
	snapshot, ok := deleted.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "second", snapshot)
	_, hasDiff := deleted.ReverseDiff()
	assert.False(t, hasDiff)
	assert.Nil(t, deleted.ChangedFields)

	// 软删除的实体仍可重建
	assertContent(t, env.reconstruct(t, domain.EntityTypeNote, id, 1), "first")
	assertContent(t, env.reconstruct(t, domain.EntityTypeNote, id, 3), "second")

	_, err = env.content.Undelete(ctx, testUID, domain.EntityTypeNote, id, testAudit)
	require.NoError(t, err)

	restored, warnings, err := env.content.RestoreVersion(ctx, testUID, domain.EntityTypeNote, id, 1, testAudit)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "first", restored.Content)

	records = env.versions(t, domain.EntityTypeNote, id)
	require.Len(t, records, 5)
	assert.Equal(t, domain.HistoryActionRestore, records[0].Action)
	assert.Equal(t, domain.DiffTypeDiff, records[0].DiffType())
	assert.Nil(t, records[0].ChangedFields)
	assert.Equal(t, domain.HistoryActionUndelete, records[1].Action)
	assert.Equal(t, domain.DiffTypeMetadata, records[1].DiffType())

	for v, want := range map[int64]string{1: "first", 2: "second", 3: "second", 4: "second", 5: "first"} {
		assertContent(t, env.reconstruct(t, domain.EntityTypeNote, id, v), want)
	}

	_, _, err = env.content.RestoreVersion(ctx, testUID, domain.EntityTypeNote, id, 99, testAudit)
	assert.Error(t, err)
}

func TestHistory_PermanentDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	id := env.create(t, domain.EntityTypeNote, "A")
	env.update(t, domain.EntityTypeNote, id, "AB")
	other := env.create(t, domain.EntityTypeNote, "keep")

	require.NoError(t, env.content.Delete(ctx, testUID, domain.EntityTypeNote, id, true, testAudit))

	list, total, err := env.history.GetEntityHistory(ctx, testUID, domain.EntityTypeNote, id, &app.Pager{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, list)
	for v := int64(1); v <= 2; v++ {
		assert.False(t, env.reconstruct(t, domain.EntityTypeNote, id, v).Found)
	}

	assertContent(t, env.reconstruct(t, domain.EntityTypeNote, other, 1), "keep")
}

func TestHistory_CorruptDiffBecomesWarning(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, domain.EntityTypeNote, "one")
	env.update(t, domain.EntityTypeNote, id, "one two")
	env.update(t, domain.EntityTypeNote, id, "one two three")

	require.NoError(t, env.dao.Root().Model(&model.ContentHistory{}).
		Where("entity_id = ? AND version = ?", id, 3).
		Update("content_diff", "not a patch").Error)

	// v1 是快照，不经过损坏的补丁
	assertContent(t, env.reconstruct(t, domain.EntityTypeNote, id, 1), "one")

	// v3 的补丁被跳过，内容原样传递
	res := env.reconstruct(t, domain.EntityTypeNote, id, 2)
	require.True(t, res.Found)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "version 3")
	assert.Equal(t, "one two three", *res.Content)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.ReconstructWarnings))

	issues, err := env.history.VerifyEntityHistory(context.Background(), domain.EntityKey{UID: testUID, EntityType: domain.EntityTypeNote, EntityID: id})
	require.NoError(t, err)
	assert.Equal(t, []string{"version 3: reverse patch unreadable"}, issues)
}

func TestHistory_UserFeed(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.create(t, domain.EntityTypeNote, "n")
	env.create(t, domain.EntityTypeBookmark, "b")
	env.create(t, domain.EntityTypePrompt, "p")

	list, total, err := env.history.GetUserHistory(ctx, testUID, "", &app.Pager{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 2)

	list, total, err = env.history.GetUserHistory(ctx, testUID, domain.EntityTypeBookmark, &app.Pager{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "bookmark", list[0].EntityType)
	assert.Equal(t, "create", list[0].Action)
	assert.True(t, list[0].HasSnapshot)

	_, _, err = env.history.GetUserHistory(ctx, testUID, "folder", &app.Pager{Page: 1, PageSize: 10})
	assert.Error(t, err)
}

func TestHistory_ConcurrentUpdatesKeepVersionsContiguous(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, domain.EntityTypeNote, "start")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.content.Update(context.Background(), testUID, &dto.ContentUpdateRequest{
				ID:                   id,
				ContentCreateRequest: dto.ContentCreateRequest{Type: "note", Content: fmt.Sprintf("writer %d", i)},
			}, testAudit)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	records := env.versions(t, domain.EntityTypeNote, id)
	require.Len(t, records, 11)
	for i, r := range records {
		assert.Equal(t, int64(11-i), r.Version)
	}
}

// staleVersionRepo reports an outdated latest version, as a concurrent writer would have seen it.
type staleVersionRepo struct {
	domain.HistoryRepository
	mu        sync.Mutex
	stale     []int64
	calls     int
	createErr error
}

func (r *staleVersionRepo) GetLatestVersion(ctx context.Context, uid int64, entityType domain.EntityType, entityID int64) (int64, error) {
	r.mu.Lock()
	r.calls++
	if len(r.stale) > 0 {
		v := r.stale[0]
		r.stale = r.stale[1:]
		r.mu.Unlock()
		return v, nil
	}
	r.mu.Unlock()
	return r.HistoryRepository.GetLatestVersion(ctx, uid, entityType, entityID)
}

func (r *staleVersionRepo) Create(ctx context.Context, record *domain.HistoryRecord) (*domain.HistoryRecord, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	return r.HistoryRepository.Create(ctx, record)
}

func recordUpdate(t *testing.T, svc HistoryService, ctx context.Context, id int64, prev, cur string) (*domain.HistoryRecord, error) {
	t.Helper()
	return svc.RecordAction(ctx, RecordActionInput{
		UID:        testUID,
		EntityType: domain.EntityTypeNote,
		EntityID:   id,
		Action:     domain.HistoryActionUpdate,
		Current:    cur,
		Previous:   &prev,
		Metadata:   domain.Metadata{"title": "t"},
		Audit:      testAudit,
	})
}

func TestRecordAction_CollisionRetriesWithNextVersion(t *testing.T) {
	stale := &staleVersionRepo{}
	env := newTestEnv(t, func(r domain.HistoryRepository) domain.HistoryRepository {
		stale.HistoryRepository = r
		return stale
	})
	ctx := context.Background()
	id := env.create(t, domain.EntityTypeNote, "v1")
	for v := 2; v <= 5; v++ {
		env.update(t, domain.EntityTypeNote, id, fmt.Sprintf("v%d", v))
	}

	// 另一个写入者读到的最新版本仍是 4，首次插入与已提交的 5 冲突
	stale.stale = []int64{4}
	stale.calls = 0
	rec, err := recordUpdate(t, env.history, ctx, id, "v5", "v6")
	require.NoError(t, err)
	assert.Equal(t, int64(6), rec.Version)
	assert.Equal(t, 2, stale.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.RecordRetries))

	records := env.versions(t, domain.EntityTypeNote, id)
	require.Len(t, records, 6)
	for i, r := range records {
		assert.Equal(t, int64(6-i), r.Version)
	}
}

func TestRecordAction_ExhaustedRetriesRollBackCaller(t *testing.T) {
	stale := &staleVersionRepo{}
	env := newTestEnv(t, func(r domain.HistoryRepository) domain.HistoryRepository {
		stale.HistoryRepository = r
		return stale
	})
	ctx := context.Background()
	id := env.create(t, domain.EntityTypeNote, "v1")

	stale.stale = []int64{0, 0, 0}
	stale.calls = 0
	var created *domain.Content
	err := env.dao.Transaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = env.contentRepo.Create(ctx, &domain.Content{UID: testUID, Type: domain.EntityTypeNote, Content: "x"})
		require.NoError(t, err)
		_, err = recordUpdate(t, env.history, ctx, id, "v1", "v2")
		return err
	})
	require.Error(t, err)
	assert.True(t, dao.IsUniqueViolation(err), "got %v", err)
	assert.Equal(t, 3, stale.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.RecordFailures))

	// 调用方事务整体回滚
	_, err = env.contentRepo.GetByID(ctx, testUID, domain.EntityTypeNote, created.ID, true)
	assert.Error(t, err)
	assert.Len(t, env.versions(t, domain.EntityTypeNote, id), 1)
}

func TestRecordAction_OtherErrorsAreNotRetried(t *testing.T) {
	stale := &staleVersionRepo{}
	env := newTestEnv(t, func(r domain.HistoryRepository) domain.HistoryRepository {
		stale.HistoryRepository = r
		return stale
	})
	id := env.create(t, domain.EntityTypeNote, "v1")

	stale.calls = 0
	stale.createErr = errors.New("disk I/O error")
	_, err := recordUpdate(t, env.history, context.Background(), id, "v1", "v2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Equal(t, 1, stale.calls)
	assert.Equal(t, float64(0), testutil.ToFloat64(env.metrics.RecordRetries))

	// 通过内容服务调用时整体失败，内容不变
	_, err = env.content.Update(context.Background(), testUID, &dto.ContentUpdateRequest{
		ID:                   id,
		ContentCreateRequest: dto.ContentCreateRequest{Type: "note", Content: "v2"},
	}, testAudit)
	require.Error(t, err)
	got, err := env.content.Get(context.Background(), testUID, domain.EntityTypeNote, id)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content)
}

func TestRecordAction_RejectsUnknownValues(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.history.RecordAction(context.Background(), RecordActionInput{UID: testUID, EntityType: "folder", EntityID: 1, Action: domain.HistoryActionCreate})
	assert.Error(t, err)
	_, err = env.history.RecordAction(context.Background(), RecordActionInput{UID: testUID, EntityType: domain.EntityTypeNote, EntityID: 1, Action: "rename"})
	assert.Error(t, err)
}

func TestHistory_PartialHunkFailureBecomesWarning(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.create(t, domain.EntityTypeNote, "the quick brown fox")
	env.update(t, domain.EntityTypeNote, id, "the quick brown fox jumps")
	env.update(t, domain.EntityTypeNote, id, "the quick brown fox jumps over the lazy dog")

	// 锚点内容被外部改写，v3 的反向补丁不再匹配
	require.NoError(t, env.dao.Root().Model(&model.Note{}).
		Where("id = ?", id).
		Update("content", "0123456789 completely different text").Error)

	assertContent(t, env.reconstruct(t, domain.EntityTypeNote, id, 1), "the quick brown fox")

	res := env.reconstruct(t, domain.EntityTypeNote, id, 2)
	require.True(t, res.Found)
	require.NotNil(t, res.Content)
	require.Len(t, res.Warnings, 1)
	assert.Regexp(t, `^version 3: [1-9]\d* of [1-9]\d* patch hunks failed to apply$`, res.Warnings[0])
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.ReconstructWarnings))
}

func TestRecordAction_RejectsInvalidUTF8(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.history.RecordAction(ctx, RecordActionInput{
		UID:        testUID,
		EntityType: domain.EntityTypeNote,
		EntityID:   1,
		Action:     domain.HistoryActionCreate,
		Current:    "hello \xff world",
	})
	assert.ErrorIs(t, err, code.ErrorInvalidParams)

	id := env.create(t, domain.EntityTypeNote, "hello world")
	_, err = env.content.Update(ctx, testUID, &dto.ContentUpdateRequest{
		ID: id,
		ContentCreateRequest: dto.ContentCreateRequest{
			Type:    string(domain.EntityTypeNote),
			Title:   "title",
			Content: "hello \xff world",
		},
	}, testAudit)
	assert.ErrorIs(t, err, code.ErrorHistoryRecordFailed)

	// 更新随历史记录一起回滚
	assert.Len(t, env.versions(t, domain.EntityTypeNote, id), 1)
	live, err := env.content.Get(ctx, testUID, domain.EntityTypeNote, id)
	require.NoError(t, err)
	assert.Equal(t, "hello world", live.Content)
}

func TestRecordAction_TruncatesAuditToColumnWidth(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.content.Create(context.Background(), testUID, &dto.ContentCreateRequest{
		Type:    string(domain.EntityTypeNote),
		Content: "x",
	}, domain.AuditContext{
		Source:      strings.Repeat("s", 200),
		AuthType:    "bearer",
		TokenPrefix: strings.Repeat("界", 50),
	})
	require.NoError(t, err)

	list, _, err := env.history.GetUserHistory(context.Background(), testUID, "", &app.Pager{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, strings.Repeat("s", domain.MaxAuditSourceLen), list[0].Source)
	assert.Equal(t, "bearer", list[0].AuthType)
	assert.Equal(t, strings.Repeat("界", domain.MaxAuditTokenPrefixLen), list[0].TokenPrefix)
}

// gatedHistoryRepo blocks GetLatestVersion once armed until release is closed
type gatedHistoryRepo struct {
	domain.HistoryRepository
	armed   atomic.Bool
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *gatedHistoryRepo) GetLatestVersion(ctx context.Context, uid int64, entityType domain.EntityType, entityID int64) (int64, error) {
	if r.armed.Load() {
		r.once.Do(func() { close(r.entered) })
		<-r.release
	}
	return r.HistoryRepository.GetLatestVersion(ctx, uid, entityType, entityID)
}

func TestReconstruct_CancelledCallerDoesNotFailOthers(t *testing.T) {
	gate := &gatedHistoryRepo{entered: make(chan struct{}), release: make(chan struct{})}
	env := newTestEnv(t, func(inner domain.HistoryRepository) domain.HistoryRepository {
		gate.HistoryRepository = inner
		return gate
	})
	id := env.create(t, domain.EntityTypeNote, "alpha")
	env.update(t, domain.EntityTypeNote, id, "alpha beta")
	gate.armed.Store(true)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := env.history.ReconstructContentAtVersion(ctxA, testUID, domain.EntityTypeNote, id, 1)
		errA <- err
	}()
	<-gate.entered

	type outcome struct {
		res *domain.ReconstructionResult
		err error
	}
	resB := make(chan outcome, 1)
	go func() {
		res, err := env.history.ReconstructContentAtVersion(context.Background(), testUID, domain.EntityTypeNote, id, 1)
		resB <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.Error(t, <-errA)

	close(gate.release)
	b := <-resB
	require.NoError(t, b.err)
	assertContent(t, b.res, "alpha")
}
