package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marcelojr/awards-night/internal/domain"
	"github.com/marcelojr/awards-night/internal/platform/ids"
)

// liveDocumentName keys the single authoritative row in the documents table.
const liveDocumentName = "current"

// DocumentStore keeps the whole state document as one JSON payload. Save
// replaces the full payload in a single upsert so no partial state is ever
// visible; snapshots live in their own table under backup-* names and are
// never read back as current state.
type DocumentStore struct {
	db  *gorm.DB
	ids *ids.Generator
}

func NewDocumentStore(db *gorm.DB, idsGen *ids.Generator) *DocumentStore {
	if idsGen == nil {
		idsGen = ids.DefaultGenerator()
	}
	return &DocumentStore{db: db, ids: idsGen}
}

type documentModel struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Payload   []byte    `gorm:"column:payload;type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (documentModel) TableName() string {
	return "documents"
}

type snapshotModel struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Payload   []byte    `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (snapshotModel) TableName() string {
	return "document_snapshots"
}

// Load returns the live document, or a fresh not-started document when none
// was persisted yet. Any other failure surfaces so callers can report the
// service as unavailable.
func (s *DocumentStore) Load(ctx context.Context) (domain.Document, error) {
	var model documentModel
	err := s.db.WithContext(ctx).First(&model, "name = ?", liveDocumentName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewDocument(), nil
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("document store: load: %w", err)
	}

	var doc domain.Document
	if err := json.Unmarshal(model.Payload, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("document store: decode payload: %w", err)
	}
	if doc.Service.Status == "" {
		doc.Service.Status = domain.ServiceNotStarted
	}
	return doc, nil
}

func (s *DocumentStore) Save(ctx context.Context, doc domain.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("document store: encode payload: %w", err)
	}

	model := documentModel{Name: liveDocumentName, Payload: payload}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("document store: save: %w", err)
	}
	return nil
}

// Snapshot copies doc into the snapshots table under a backup-<ulid> name so
// it can never be confused with the live row.
func (s *DocumentStore) Snapshot(ctx context.Context, doc domain.Document) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("document store: encode snapshot: %w", err)
	}

	name := "backup-" + s.ids.New()
	model := snapshotModel{Name: name, Payload: payload}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", fmt.Errorf("document store: snapshot: %w", err)
	}
	return name, nil
}

var _ domain.DocumentStore = (*DocumentStore)(nil)
