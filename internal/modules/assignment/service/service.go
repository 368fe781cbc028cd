package assignment

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"time"

	"anoa.com/homeworktracker/internal/model"
	assignmentRepo "anoa.com/homeworktracker/internal/modules/assignment/repository"
	"anoa.com/homeworktracker/pkg/metrics"
	"anoa.com/homeworktracker/pkg/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Upload is a file submitted together with a new assignment.
type Upload struct {
	Reader   io.Reader
	Filename string
}

type Service interface {
	CreateAssignment(ctx context.Context, a *model.Assignment, upload *Upload) (uuid.UUID, error)
	GetAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	ListAssignments(ctx context.Context) ([]model.Assignment, error)
	UpdateAssignment(ctx context.Context, id uuid.UUID, update model.AssignmentUpdate) error
	DeleteAssignment(ctx context.Context, id uuid.UUID) error
	ExportCSV(ctx context.Context, w io.Writer) error
	CleanupOrphanAttachments(ctx context.Context, gracePeriod time.Duration) (int, error)
}

type service struct {
	repo   assignmentRepo.Repository
	store  storage.AttachmentStore
	logger *logrus.Logger
	now    func() time.Time
}

func NewService(repo assignmentRepo.Repository, store storage.AttachmentStore, logger *logrus.Logger) Service {
	return &service{
		repo:   repo,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// CreateAssignment stores the upload first and then the record. The two steps
// are not atomic: if the record cannot be written the file is released again,
// and a crash in between leaves an orphan for CleanupOrphanAttachments.
func (s *service) CreateAssignment(ctx context.Context, a *model.Assignment, upload *Upload) (uuid.UUID, error) {
	a.FilePath = nil

	var locator string
	if upload != nil {
		var err error
		locator, err = s.store.Store(ctx, upload.Reader, upload.Filename)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to store attachment: %w", err)
		}
		a.FilePath = &locator
	}

	id, err := s.repo.Create(ctx, a)
	if err != nil {
		if locator != "" {
			s.logger.WithField("locator", locator).WithError(err).
				Warn("record not persisted, releasing its attachment")
			s.store.Release(context.WithoutCancel(ctx), locator)
		}
		return uuid.Nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"assignment_id":  id,
		"has_attachment": locator != "",
	}).Info("assignment created")
	return id, nil
}

func (s *service) GetAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	return s.repo.FindAll(ctx)
}

func (s *service) UpdateAssignment(ctx context.Context, id uuid.UUID, update model.AssignmentUpdate) error {
	return s.repo.Update(ctx, id, update)
}

func (s *service) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("assignment_id", id).Info("assignment deleted")
	return nil
}

var csvHeader = []string{"id", "subject", "title", "due_date", "status", "priority", "notes", "file_path", "created_at"}

// ExportCSV writes the current snapshot ordered by due date, then creation time.
func (s *service) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := s.repo.FindAll(ctx)
	if err != nil {
		return err
	}

	slices.SortStableFunc(records, func(a, b model.Assignment) int {
		if c := time.Time(a.DueDate).Compare(time.Time(b.DueDate)); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.ID.String(),
			r.Subject,
			r.Title,
			model.FormatDate(r.DueDate),
			string(r.Status),
			string(r.Priority),
			deref(r.Notes),
			deref(r.FilePath),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CleanupOrphanAttachments releases stored files that no record references
// and that are older than gracePeriod. The grace period protects uploads whose
// record is still being written.
func (s *service) CleanupOrphanAttachments(ctx context.Context, gracePeriod time.Duration) (int, error) {
	lister, ok := s.store.(storage.Lister)
	if !ok {
		s.logger.Info("attachment store cannot list its contents, skipping orphan cleanup")
		return 0, nil
	}

	objects, err := lister.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list attachments: %w", err)
	}

	paths, err := s.repo.ListFilePaths(ctx)
	if err != nil {
		return 0, err
	}
	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[lister.Key(p)] = struct{}{}
	}

	cutoff := s.now().Add(-gracePeriod)
	released := 0
	for _, obj := range objects {
		if _, ok := referenced[lister.Key(obj.Locator)]; ok {
			continue
		}
		if obj.ModTime.After(cutoff) {
			continue
		}
		s.store.Release(ctx, obj.Locator)
		metrics.OrphansReleased.Inc()
		released++
	}

	s.logger.WithFields(logrus.Fields{
		"scanned":  len(objects),
		"released": released,
	}).Info("orphan attachment cleanup finished")
	return released, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
