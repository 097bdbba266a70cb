// Package history persists one row per image generation run using gorm.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Generation statuses.
const (
	StatusSucceeded    = "succeeded"
	StatusUploadFailed = "upload_failed"
	StatusFailed       = "failed"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Generation is one generateImage run.
type Generation struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Prompt      string    `gorm:"type:text;not null" json:"prompt"`
	Model       string    `gorm:"type:varchar(255)" json:"model,omitempty"`
	Filename    string    `gorm:"type:varchar(255)" json:"filename"`
	WorkspaceID int       `gorm:"index" json:"workspace_id,omitempty"`
	Status      string    `gorm:"type:varchar(32);index;not null" json:"status"`
	Attempts    int       `json:"attempts"`
	SizeBytes   int       `json:"size_bytes"`
	Location    string    `gorm:"type:varchar(1024)" json:"location,omitempty"`
	Error       string    `gorm:"type:text" json:"error,omitempty"`
	UploadError string    `gorm:"type:text" json:"upload_error,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (Generation) TableName() string { return "generations" }

// Store reads and writes generation history.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates a history store on db.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.With(zap.String("component", "history"))}
}

// AutoMigrate creates or updates the generations table.
func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Generation{}); err != nil {
		return err
	}
	s.logger.Info("generation history schema ready")
	return nil
}

// Record inserts g, assigning an ID and timestamp when missing.
func (s *Store) Record(ctx context.Context, g *Generation) error {
	if g == nil {
		return errors.New("history: nil generation")
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(g).Error
}

// List returns the most recent generations, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Generation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var out []Generation
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Get returns one generation by ID.
func (s *Store) Get(ctx context.Context, id string) (*Generation, error) {
	var g Generation
	if err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}
