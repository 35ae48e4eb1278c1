package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	"artvault/internal/config"
	"artvault/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		mode     string
		dialect  string
		destroy  bool
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid dev postgres", "development", "", "postgres", false, true, true, false},
		{"hybrid prod postgres", "production", "hybrid", "postgres", false, true, false, false},
		{"sql only", "development", "sql", "postgres", false, true, false, false},
		{"auto refused in prod", "production", "auto", "postgres", false, false, false, true},
		{"auto allowed in prod with override", "production", "auto", "postgres", true, false, true, false},
		{"sqlite always automigrates", "test", "sql", "sqlite", false, false, true, false},
		{"unknown mode", "development", "yolo", "postgres", false, false, false, true},
		{"unknown mode on sqlite", "development", "yolo", "sqlite", false, false, false, true},
		{"staging counts as deployed", "staging", "", "postgres", false, true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Env: tt.env, DBSchemaMode: tt.mode, DBAutoMigrateAllowDestructive: tt.destroy}
			plan, err := planSchema(cfg, tt.dialect)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, plan.sql)
			assert.Equal(t, tt.wantAuto, plan.auto)
		})
	}
}

func TestEmbeddedMigrationsAreOrderedPairs(t *testing.T) {
	registered := GetMigrations()
	require.NotEmpty(t, registered)
	for i, m := range registered {
		assert.NotEmpty(t, m.UpScript, m.String())
		assert.NotEmpty(t, m.DownScript, m.String())
		if i > 0 {
			assert.Greater(t, m.Version, registered[i-1].Version)
		}
	}
}

func TestLoadMigrations_SkipsBadNames(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_second.up.sql":   {Data: []byte("SELECT 2;")},
		"m/000002_second.down.sql": {Data: []byte("SELECT -2;")},
		"m/000001_first.up.sql":    {Data: []byte("SELECT 1;")},
		"m/000001_first.down.sql":  {Data: []byte("SELECT -1;")},
		"m/noversion.up.sql":       {Data: []byte("SELECT 0;")},
		"m/README.md":              {Data: []byte("docs")},
	}
	out, err := loadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "000001_first", out[0].String())
	assert.Equal(t, 2, out[1].Version)
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))
	err := validateAppliedVersions([]int{1, 7}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000007")
}

func TestApplySchema_SQLiteCreatesTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{Env: "test"}
	require.NoError(t, ApplySchema(context.Background(), db, cfg))

	for _, model := range []interface{}{&models.Post{}, &models.Exhibition{}, &models.Like{}, &models.Save{}, &models.Comment{}} {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.False(t, db.Migrator().HasColumn(&models.Post{}, "liked"))
}

func TestMigrationStore_ApplyAndRevert(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&MigrationLog{}))
	ctx := context.Background()

	store := NewMigrationStore(db)
	m := Migration{
		Version:    42,
		Name:       "artist_index",
		UpScript:   "CREATE TABLE artist_index (artist TEXT PRIMARY KEY)",
		DownScript: "DROP TABLE artist_index",
	}
	require.NoError(t, store.Apply(ctx, m))
	assert.True(t, db.Migrator().HasTable("artist_index"))

	applied, err := store.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{42}, applied)
	assert.Equal(t, []Migration{{Version: 7}}, pending([]Migration{{Version: 7}, {Version: 42}}, applied))

	require.NoError(t, store.Revert(ctx, m))
	assert.False(t, db.Migrator().HasTable("artist_index"))
	applied, err = store.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestMigrationStore_FailedApplyLeavesNoLog(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&MigrationLog{}))
	ctx := context.Background()

	store := NewMigrationStore(db)
	err = store.Apply(ctx, Migration{Version: 3, Name: "broken", UpScript: "CREATE TABLEX nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000003_broken")

	applied, err := store.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestQueryLogger(t *testing.T) {
	var buf bytes.Buffer
	l := &queryLogger{
		log:   slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		level: logger.Warn,
		slow:  slowQuery,
	}
	stmt := func() (string, int64) { return "SELECT * FROM posts", 3 }
	ctx := context.Background()

	l.Trace(ctx, time.Now(), stmt, nil)
	assert.Empty(t, buf.String(), "fast queries are quiet at warn")

	l.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "missing records are not failures")

	l.Trace(ctx, time.Now(), stmt, errors.New("relation does not exist"))
	assert.Contains(t, buf.String(), "sql failed")
	assert.Contains(t, buf.String(), "relation does not exist")

	buf.Reset()
	l.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Contains(t, buf.String(), "sql slow")

	buf.Reset()
	l.LogMode(logger.Silent).Trace(ctx, time.Now(), stmt, errors.New("boom"))
	assert.Empty(t, buf.String())
}
