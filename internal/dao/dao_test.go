package dao

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/internal/model"

	"github.com/haierkeys/gormTracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testUID int64 = 42

func newTestDao(t *testing.T) *Dao {
	t.Helper()
	db, err := NewDBEngineWithConfig(DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "test.sqlite3"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrateAll(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	d := New(db)
	require.NoError(t, NewUserRepository(d).Ensure(context.Background(), testUID))
	return d
}

func snapshotRecord(entityID, version int64, content string) *domain.HistoryRecord {
	return &domain.HistoryRecord{
		UID:        testUID,
		EntityType: domain.EntityTypeNote,
		EntityID:   entityID,
		Version:    version,
		Action:     domain.HistoryActionCreate,
		Stored:     domain.SnapshotContent{Content: content},
		Metadata:   domain.Metadata{"title": "t"},
	}
}

func TestNewDBEngine_RegistersTracingPlugin(t *testing.T) {
	db, err := NewDBEngineWithConfig(DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "trace.sqlite3"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var found bool
	for _, p := range db.Config.Plugins {
		if _, ok := p.(*gormTracing.OpentracingPlugin); ok {
			found = true
		}
	}
	assert.True(t, found)

	var one int
	require.NoError(t, db.WithContext(context.Background()).Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestHistoryRepository_CreateAndRead(t *testing.T) {
	d := newTestDao(t)
	repo := NewHistoryRepository(d)
	ctx := context.Background()

	latest, err := repo.GetLatestVersion(ctx, testUID, domain.EntityTypeNote, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), latest)

	rec, err := repo.GetLatest(ctx, testUID, domain.EntityTypeNote, 1)
	require.NoError(t, err)
	assert.Nil(t, rec)

	created, err := repo.Create(ctx, snapshotRecord(1, 1, "hello"))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Nil(t, created.ChangedFields)

	_, err = repo.Create(ctx, &domain.HistoryRecord{
		UID:           testUID,
		EntityType:    domain.EntityTypeNote,
		EntityID:      1,
		Version:       2,
		Action:        domain.HistoryActionUpdate,
		Stored:        domain.DiffContent{ReverseDiff: "@@ -1 +1 @@\n"},
		ChangedFields: []string{"content"},
		Audit:         domain.AuditContext{Source: "web", AuthType: "pat", TokenPrefix: "bm_abc"},
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &domain.HistoryRecord{
		UID:           testUID,
		EntityType:    domain.EntityTypeNote,
		EntityID:      1,
		Version:       3,
		Action:        domain.HistoryActionArchive,
		Stored:        domain.MetadataContent{},
		ChangedFields: nil,
	})
	require.NoError(t, err)

	latest, err = repo.GetLatestVersion(ctx, testUID, domain.EntityTypeNote, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest)

	v2, err := repo.GetByVersion(ctx, testUID, domain.EntityTypeNote, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, v2)
	assert.Equal(t, domain.DiffTypeDiff, v2.DiffType())
	assert.Equal(t, []string{"content"}, v2.ChangedFields)
	assert.Equal(t, "pat", v2.Audit.AuthType)
	patch, ok := v2.ReverseDiff()
	assert.True(t, ok)
	assert.Equal(t, "@@ -1 +1 @@\n", patch)

	v1, err := repo.GetByVersion(ctx, testUID, domain.EntityTypeNote, 1, 1)
	require.NoError(t, err)
	snap, ok := v1.Snapshot()
	assert.True(t, ok)
	assert.Equal(t, "hello", snap)
	_, hasDiff := v1.ReverseDiff()
	assert.False(t, hasDiff)
	assert.Equal(t, "t", v1.Metadata["title"])

	missing, err := repo.GetByVersion(ctx, testUID, domain.EntityTypeNote, 1, 9)
	require.NoError(t, err)
	assert.Nil(t, missing)

	rng, err := repo.ListVersionRange(ctx, testUID, domain.EntityTypeNote, 1, 2, 3)
	require.NoError(t, err)
	require.Len(t, rng, 2)
	assert.Equal(t, int64(3), rng[0].Version)
	assert.Equal(t, int64(2), rng[1].Version)
	assert.Equal(t, domain.DiffTypeMetadata, rng[0].DiffType())
}

func TestHistoryRepository_UniqueVersion(t *testing.T) {
	d := newTestDao(t)
	repo := NewHistoryRepository(d)
	ctx := context.Background()

	_, err := repo.Create(ctx, snapshotRecord(7, 1, "a"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, snapshotRecord(7, 1, "b"))
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err), "got %v", err)

	// 同版本号不同实体不冲突
	_, err = repo.Create(ctx, snapshotRecord(8, 1, "c"))
	assert.NoError(t, err)
}

func TestHistoryRepository_Listing(t *testing.T) {
	d := newTestDao(t)
	repo := NewHistoryRepository(d)
	ctx := context.Background()

	for v := int64(1); v <= 5; v++ {
		_, err := repo.Create(ctx, snapshotRecord(1, v, "x"))
		require.NoError(t, err)
	}
	bookmark := snapshotRecord(2, 1, "y")
	bookmark.EntityType = domain.EntityTypeBookmark
	_, err := repo.Create(ctx, bookmark)
	require.NoError(t, err)

	list, total, err := repo.ListByEntity(ctx, testUID, domain.EntityTypeNote, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].Version)
	assert.Equal(t, int64(2), list[1].Version)

	_, total, err = repo.ListByUser(ctx, testUID, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)

	onlyBookmarks, total, err := repo.ListByUser(ctx, testUID, domain.EntityTypeBookmark, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, domain.EntityTypeBookmark, onlyBookmarks[0].EntityType)

	keys, err := repo.ListEntityKeys(ctx, testUID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.EntityKey{
		{UID: testUID, EntityType: domain.EntityTypeNote, EntityID: 1},
		{UID: testUID, EntityType: domain.EntityTypeBookmark, EntityID: 2},
	}, keys)

	n, err := repo.DeleteByEntity(ctx, testUID, domain.EntityTypeNote, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, total, err = repo.ListByEntity(ctx, testUID, domain.EntityTypeNote, 1, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestHistoryRepository_CascadeOnUserDelete(t *testing.T) {
	d := newTestDao(t)
	repo := NewHistoryRepository(d)
	ctx := context.Background()

	_, err := repo.Create(ctx, snapshotRecord(1, 1, "x"))
	require.NoError(t, err)

	require.NoError(t, NewUserRepository(d).Delete(ctx, testUID))

	var count int64
	require.NoError(t, d.DB(ctx).Model(&model.ContentHistory{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestDao_NestedTransactionRollsBackOnlySavepoint(t *testing.T) {
	d := newTestDao(t)
	repo := NewHistoryRepository(d)
	ctx := context.Background()

	err := d.Transaction(ctx, func(ctx context.Context) error {
		if _, err := repo.Create(ctx, snapshotRecord(1, 1, "outer")); err != nil {
			return err
		}
		inner := d.Transaction(ctx, func(ctx context.Context) error {
			if _, err := repo.Create(ctx, snapshotRecord(1, 2, "inner")); err != nil {
				return err
			}
			return errors.New("abort inner")
		})
		assert.EqualError(t, inner, "abort inner")
		return nil
	})
	require.NoError(t, err)

	latest, err := repo.GetLatestVersion(ctx, testUID, domain.EntityTypeNote, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest)
}

func TestDao_ExecuteWriteRollsBack(t *testing.T) {
	d := newTestDao(t)
	repo := NewHistoryRepository(d)
	ctx := context.Background()

	err := d.ExecuteWrite(ctx, testUID, func(ctx context.Context) error {
		assert.True(t, InTransaction(ctx))
		if _, err := repo.Create(ctx, snapshotRecord(1, 1, "x")); err != nil {
			return err
		}
		return errors.New("fail")
	})
	require.Error(t, err)

	latest, err := repo.GetLatestVersion(ctx, testUID, domain.EntityTypeNote, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), latest)
}

func TestContentRepository_Lifecycle(t *testing.T) {
	d := newTestDao(t)
	repo := NewContentRepository(d)
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.Content{
		UID:       testUID,
		Type:      domain.EntityTypePrompt,
		Title:     "Summarize",
		Content:   "Summarize {{ text }}",
		Name:      "summarize",
		Arguments: []domain.PromptArgument{{Name: "text", Required: true}},
		Tags:      []domain.Tag{{ID: 1, Name: "ai"}},
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := repo.GetByID(ctx, testUID, domain.EntityTypePrompt, created.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "summarize", got.Name)
	assert.Equal(t, []domain.PromptArgument{{Name: "text", Required: true}}, got.Arguments)
	assert.Equal(t, []domain.Tag{{ID: 1, Name: "ai"}}, got.Tags)
	assert.Empty(t, got.Relationships)

	got.Content = "Summarize briefly {{ text }}"
	updated, err := repo.Update(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Summarize briefly {{ text }}", updated.Content)

	now := time.Now()
	require.NoError(t, repo.SetArchived(ctx, testUID, domain.EntityTypePrompt, created.ID, &now))
	got, err = repo.GetByID(ctx, testUID, domain.EntityTypePrompt, created.ID, false)
	require.NoError(t, err)
	assert.True(t, got.IsArchived())

	require.NoError(t, repo.SoftDelete(ctx, testUID, domain.EntityTypePrompt, created.ID))
	_, err = repo.GetByID(ctx, testUID, domain.EntityTypePrompt, created.ID, false)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	got, err = repo.GetByID(ctx, testUID, domain.EntityTypePrompt, created.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())

	require.NoError(t, repo.Undelete(ctx, testUID, domain.EntityTypePrompt, created.ID))
	got, err = repo.GetByID(ctx, testUID, domain.EntityTypePrompt, created.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted())

	require.NoError(t, repo.HardDelete(ctx, testUID, domain.EntityTypePrompt, created.ID))
	_, err = repo.GetByID(ctx, testUID, domain.EntityTypePrompt, created.ID, true)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// 其他用户不可见
	_, err = repo.GetByID(ctx, testUID+1, domain.EntityTypeNote, created.ID, true)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "uk_history_entity_version"`)))
	assert.True(t, IsUniqueViolation(errors.New("Error 1062: Duplicate entry '1-note-1-1'")))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
}
