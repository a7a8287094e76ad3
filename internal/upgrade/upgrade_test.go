package upgrade

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/haierkeys/fast-content-service/internal/dao"
	"github.com/haierkeys/fast-content-service/internal/model"
	"github.com/haierkeys/fast-content-service/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDao(t *testing.T) *dao.Dao {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "upgrade.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return dao.New(db)
}

func appliedVersions(t *testing.T, d *dao.Dao) []string {
	t.Helper()
	var rows []SchemaVersion
	require.NoError(t, d.Root().Order("version").Find(&rows).Error)
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Version)
	}
	return out
}

func TestMigrationManager_FreshInstall(t *testing.T) {
	d := newTestDao(t)
	ref := filepath.Join(t.TempDir(), "state", "lastVersion")

	m := NewMigrationManager(d, zap.NewNop(), ref, "1.1.0")
	require.NoError(t, m.Run(context.Background()))

	assert.Equal(t, []string{"v1.0.0", "v1.1.0"}, appliedVersions(t, d))
	assert.True(t, d.Root().Migrator().HasTable(model.TableNameContentHistory))

	saved, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", string(saved))

	// 同一版本再次运行直接跳过
	require.NoError(t, m.Run(context.Background()))
	assert.Len(t, appliedVersions(t, d), 2)
}

func TestMigrationManager_SkipsAlreadyReferencedVersions(t *testing.T) {
	d := newTestDao(t)
	ref := filepath.Join(t.TempDir(), "lastVersion")
	require.NoError(t, os.WriteFile(ref, []byte("1.0.0\n"), 0644))

	m := NewMigrationManager(d, zap.NewNop(), ref, "v1.1.0")
	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, []string{"v1.1.0"}, appliedVersions(t, d))
}

func TestMigrationManager_InvalidReferenceFallsBack(t *testing.T) {
	d := newTestDao(t)
	ref := filepath.Join(t.TempDir(), "lastVersion")
	require.NoError(t, os.WriteFile(ref, []byte("garbage"), 0644))

	m := NewMigrationManager(d, zap.NewNop(), ref, "1.1.0")
	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, []string{"v1.0.0", "v1.1.0"}, appliedVersions(t, d))
}

type failingMigrate struct{}

func (failingMigrate) Version() string     { return "1.2.0" }
func (failingMigrate) Description() string { return "always fails" }
func (failingMigrate) Up(ctx context.Context, db *service.DBUtils) error {
	if err := db.ExecuteSQL(ctx, "INSERT INTO user (uid, username, created_at) VALUES (99, 'x', CURRENT_TIMESTAMP)"); err != nil {
		return err
	}
	return errors.New("boom")
}

func TestMigrationManager_FailedMigrationRollsBack(t *testing.T) {
	d := newTestDao(t)
	ref := filepath.Join(t.TempDir(), "lastVersion")

	m := NewMigrationManager(d, zap.NewNop(), ref, "1.2.0")
	m.migrations = append(m.migrations, failingMigrate{})

	err := m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "v1.2.0")

	assert.Equal(t, []string{"v1.0.0", "v1.1.0"}, appliedVersions(t, d))
	var count int64
	require.NoError(t, d.Root().Model(&model.User{}).Where("uid = ?", 99).Count(&count).Error)
	assert.Zero(t, count)

	_, statErr := os.Stat(ref)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOrphanHistoryMigrate(t *testing.T) {
	d := newTestDao(t)
	ctx := context.Background()
	db := service.NewDBUtils(d)
	require.NoError(t, db.ExposeAutoMigrate(ctx))

	require.NoError(t, d.Root().Create(&model.User{UID: 1, Username: "kept"}).Error)
	snapshot := "x"
	for _, uid := range []int64{1, 2} {
		require.NoError(t, d.Root().Exec("PRAGMA foreign_keys = OFF").Error)
		require.NoError(t, d.Root().Create(&model.ContentHistory{
			UID: uid, EntityType: "note", EntityID: 1, Version: 1,
			Action: "create", DiffType: "snapshot", ContentSnapshot: &snapshot,
			MetadataSnapshot: "{}",
		}).Error)
	}

	require.NoError(t, (&OrphanHistoryMigrate{}).Up(ctx, db))

	var uids []int64
	require.NoError(t, d.Root().Model(&model.ContentHistory{}).Pluck("uid", &uids).Error)
	assert.Equal(t, []int64{1}, uids)
}
