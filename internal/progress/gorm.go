package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/JonMunkholm/stepimport/internal/core"
)

// ProgressEntry is the GORM model of one counter.
type ProgressEntry struct {
	Key       string `gorm:"column:key;primaryKey;size:191"`
	Value     int64  `gorm:"column:value;not null"`
	UpdatedAt time.Time
}

func (ProgressEntry) TableName() string { return "import_progress" }

var _ core.ProgressStore = (*Gorm)(nil)

// Gorm stores counters through GORM for SQLite and MySQL deployments.
type Gorm struct {
	db *gorm.DB
}

// OpenGorm opens a GORM connection for backend ("sqlite" or "mysql").
func OpenGorm(backend, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s progress backend needs PROGRESS_DSN", backend)
	}

	var dialector gorm.Dialector
	switch strings.ToLower(backend) {
	case BackendSQLite:
		dialector = sqlite.Open(dsn)
	case BackendMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm backend %q", backend)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s progress store: %w", backend, err)
	}
	return db, nil
}

// NewGorm migrates the progress table and returns a store over db.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&ProgressEntry{}); err != nil {
		return nil, fmt.Errorf("migrate progress table: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Get(ctx context.Context, key string, def int64) (int64, error) {
	var entry ProgressEntry
	err := g.db.WithContext(ctx).Where(keyIs(key)).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get progress %s: %w", key, err)
	}
	return entry.Value, nil
}

func (g *Gorm) Set(ctx context.Context, key string, value int64) error {
	entry := ProgressEntry{Key: key, Value: value}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("set progress %s: %w", key, err)
	}
	return nil
}

func (g *Gorm) Delete(ctx context.Context, key string) error {
	err := g.db.WithContext(ctx).Where(keyIs(key)).Delete(&ProgressEntry{}).Error
	if err != nil {
		return fmt.Errorf("delete progress %s: %w", key, err)
	}
	return nil
}

func keyIs(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

// Close closes the underlying connection pool.
func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
