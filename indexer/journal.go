package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"rangestaker/core/events"
	"rangestaker/core/types"
)

// Supported journal drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const defaultListLimit = 100

// EventRecord is the persisted form of an emitted engine event.
type EventRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq         uint64    `gorm:"uniqueIndex;not null"`
	Type        string    `gorm:"index;not null"`
	IncentiveID string    `gorm:"index"`
	TokenID     string    `gorm:"index"`
	Owner       string    `gorm:"index"`
	Attributes  string    `gorm:"type:text"`
	CreatedAt   time.Time
}

// TableName pins the table name independent of gorm's pluralisation rules.
func (EventRecord) TableName() string { return "staker_events" }

// Decoded returns the stored attributes as a map.
func (r EventRecord) Decoded() (map[string]string, error) {
	attrs := map[string]string{}
	if strings.TrimSpace(r.Attributes) == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return attrs, nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type        string
	IncentiveID string
	TokenID     string
	Owner       string
	AfterSeq    uint64
	Limit       int
}

// Journal persists every emitted event and serves them back in emission
// order. It implements events.Emitter.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time

	mu  sync.Mutex
	seq uint64
}

// Open connects to the configured driver and migrates the schema.
func Open(driver, dsn string) (*Journal, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "":
		if strings.TrimSpace(dsn) == "" {
			dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if strings.TrimSpace(dsn) == "" {
			return nil, errors.New("indexer: postgres dsn required")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, errors.New("indexer: nil database")
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	var last struct{ Max uint64 }
	if err := db.Model(&EventRecord{}).Select("COALESCE(MAX(seq), 0) AS max").Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("indexer: load sequence: %w", err)
	}
	return &Journal{db: db, logger: slog.Default(), nowFn: time.Now, seq: last.Max}, nil
}

// SetLogger overrides the logger used to report persistence failures.
func (j *Journal) SetLogger(logger *slog.Logger) {
	if logger != nil {
		j.logger = logger
	}
}

// SetNowFunc overrides the clock used for CreatedAt.
func (j *Journal) SetNowFunc(now func() time.Time) {
	if now != nil {
		j.nowFn = now
	}
}

// Emit implements events.Emitter. Failures are logged and never surface to
// the engine since the state change has already been committed.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil {
		return
	}
	if err := j.Append(context.Background(), evt); err != nil {
		j.logger.Error("journal append failed", slog.String("type", evt.EventType()), slog.Any("error", err))
	}
}

// Append stores a single event.
func (j *Journal) Append(ctx context.Context, evt events.Event) error {
	var attrs map[string]string
	if payload, ok := evt.(types.Payload); ok {
		if raw := payload.Event(); raw != nil {
			attrs = raw.Attributes
		}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	owner := attrs["owner"]
	if owner == "" {
		owner = attrs["newOwner"]
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	record := EventRecord{
		ID:          uuid.New(),
		Seq:         j.seq + 1,
		Type:        evt.EventType(),
		IncentiveID: attrs["incentiveId"],
		TokenID:     attrs["tokenId"],
		Owner:       owner,
		Attributes:  string(encoded),
		CreatedAt:   j.nowFn().UTC(),
	}
	if err := j.db.WithContext(ctx).Create(&record).Error; err != nil {
		return err
	}
	j.seq = record.Seq
	return nil
}

// List returns events matching the filter ordered by sequence.
func (j *Journal) List(ctx context.Context, filter Filter) ([]EventRecord, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}
	query := j.db.WithContext(ctx).Model(&EventRecord{}).Where("seq > ?", filter.AfterSeq)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.IncentiveID != "" {
		query = query.Where("incentive_id = ?", filter.IncentiveID)
	}
	if filter.TokenID != "" {
		query = query.Where("token_id = ?", filter.TokenID)
	}
	if filter.Owner != "" {
		query = query.Where("owner = ?", filter.Owner)
	}
	var records []EventRecord
	if err := query.Order("seq ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
