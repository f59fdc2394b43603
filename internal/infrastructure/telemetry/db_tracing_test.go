package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   int `gorm:"primaryKey"`
	Name string
}

func openTracedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestDBTracingPluginDisabled(t *testing.T) {
	db := openTracedDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: false}, zaptest.NewLogger(t))

	require.NoError(t, plugin.Register(db))
	assert.NotContains(t, db.Config.Plugins, "otelgorm")
}

func TestDBTracingPluginRecordsQueries(t *testing.T) {
	recorder := installRecorder(t)
	db := openTracedDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	plugin := NewDBTracingPlugin(cfg, zaptest.NewLogger(t))
	require.NoError(t, plugin.Register(db))

	ctx, parent := otel.Tracer("test").Start(context.Background(), "parent")
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{ID: 1, Name: "a"}).Error)
	var rows []tracedRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
	parent.End()

	assert.Len(t, rows, 1)
	// parent plus one span per statement
	assert.GreaterOrEqual(t, len(recorder.Ended()), 3)
}

func TestNewDBTracingPluginDefaultsThreshold(t *testing.T) {
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zaptest.NewLogger(t))
	assert.Equal(t, DefaultDBTracingConfig().SlowQueryThresh, plugin.config.SlowQueryThresh)
}
