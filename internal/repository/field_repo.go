package repository

import (
	"context"

	"github.com/lukas/fieldinsights/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FieldRepository handles field data operations.
type FieldRepository struct {
	db *gorm.DB
}

// NewFieldRepository creates a new FieldRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *FieldRepository: repository instance bound to db.
func NewFieldRepository(db *gorm.DB) *FieldRepository {
	return &FieldRepository{db: db}
}

// GetByID retrieves a field by its externally supplied ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: field ID.
// Returns:
//   - *domain.Field: field record if found.
//   - error: gorm.ErrRecordNotFound if absent, other non-nil on store failure.
func (r *FieldRepository) GetByID(ctx context.Context, id int) (*domain.Field, error) {
	var field domain.Field
	if err := r.db.WithContext(ctx).First(&field, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &field, nil
}

// Create inserts a new field record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - field: field record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *FieldRepository) Create(ctx context.Context, field *domain.Field) error {
	return r.db.WithContext(ctx).Create(field).Error
}

// EnsureExists creates the field with a synthesized name if it is not already
// present. Concurrent creators are tolerated: a conflicting insert is a no-op.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: field ID referenced by an incoming reading.
//   - name: display name used only when the field is created.
// Returns:
//   - error: non-nil on store failure.
func (r *FieldRepository) EnsureExists(ctx context.Context, id int, name string) error {
	field := domain.Field{ID: id, Name: name}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&field).Error
}

// Exists checks whether a field with the given ID is present.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: field ID.
// Returns:
//   - bool: true if a record exists.
//   - error: non-nil if the lookup fails.
func (r *FieldRepository) Exists(ctx context.Context, id int) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Field{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List retrieves all fields ordered by ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.Field: all field records.
//   - error: non-nil if the query fails.
func (r *FieldRepository) List(ctx context.Context) ([]domain.Field, error) {
	var fields []domain.Field
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&fields).Error; err != nil {
		return nil, err
	}
	return fields, nil
}
