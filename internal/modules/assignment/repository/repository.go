package assignment

import (
	"context"
	"fmt"

	"anoa.com/homeworktracker/internal/model"
	"anoa.com/homeworktracker/pkg/apperror"
	"anoa.com/homeworktracker/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the single source of truth for which assignments exist.
type Repository interface {
	// Create assigns a fresh ID and the database clock's time, then persists a.
	Create(ctx context.Context, a *model.Assignment) (uuid.UUID, error)
	// Update applies the non-nil fields of update. Unknown ids are a no-op.
	Update(ctx context.Context, id uuid.UUID, update model.AssignmentUpdate) error
	// Delete removes the record and releases its attachment, if any. Unknown
	// ids are a no-op.
	Delete(ctx context.Context, id uuid.UUID) error
	// FindAll returns every record in unspecified order.
	FindAll(ctx context.Context) ([]model.Assignment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	// ListFilePaths returns every attachment locator referenced by a record.
	ListFilePaths(ctx context.Context) ([]string, error)
}

type repository struct {
	db          *gorm.DB
	attachments storage.AttachmentStore
}

func NewRepository(db *gorm.DB, attachments storage.AttachmentStore) Repository {
	return &repository{db: db, attachments: attachments}
}

func (r *repository) Create(ctx context.Context, a *model.Assignment) (uuid.UUID, error) {
	if !a.Status.Valid() {
		return uuid.Nil, fmt.Errorf("unknown status %q: %w", a.Status, apperror.ErrInvalidInput)
	}
	if !a.Priority.Valid() {
		return uuid.Nil, fmt.Errorf("unknown priority %q: %w", a.Priority, apperror.ErrInvalidInput)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to generate assignment id: %w", err)
	}

	a.ID = id
	a.CreatedAt = r.db.NowFunc()
	if a.FilePath != nil && *a.FilePath == "" {
		a.FilePath = nil
	}

	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return uuid.Nil, storageError("create assignment", err)
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, update model.AssignmentUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	cols, err := update.Columns()
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("id = ?", id).
		Updates(cols).Error; err != nil {
		return storageError("update assignment", err)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	var locator string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []model.Assignment
		if err := tx.Select("id", "file_path").
			Where("id = ?", id).
			Limit(1).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		if err := tx.Where("id = ?", id).Delete(&model.Assignment{}).Error; err != nil {
			return err
		}
		if rows[0].FilePath != nil {
			locator = *rows[0].FilePath
		}
		return nil
	})
	if err != nil {
		return storageError("delete assignment", err)
	}

	// Released only once the row is gone, so a record never points at a file
	// that was already removed.
	if locator != "" {
		r.attachments.Release(ctx, locator)
	}
	return nil
}

func (r *repository) FindAll(ctx context.Context) ([]model.Assignment, error) {
	assignments := make([]model.Assignment, 0)
	if err := r.db.WithContext(ctx).Find(&assignments).Error; err != nil {
		return nil, storageError("list assignments", err)
	}
	return assignments, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	var rows []model.Assignment
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, storageError("find assignment", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("assignment %s: %w", id, apperror.ErrNotFound)
	}
	return &rows[0], nil
}

func (r *repository) ListFilePaths(ctx context.Context) ([]string, error) {
	paths := make([]string, 0)
	if err := r.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("file_path IS NOT NULL AND file_path <> ''").
		Pluck("file_path", &paths).Error; err != nil {
		return nil, storageError("list attachment paths", err)
	}
	return paths, nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, apperror.ErrStorageUnavailable, err)
}
