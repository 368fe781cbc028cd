package assignment

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"anoa.com/homeworktracker/internal/model"
	"anoa.com/homeworktracker/pkg/apperror"
	"anoa.com/homeworktracker/pkg/database"
	"anoa.com/homeworktracker/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// MockStore records Release calls.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Store(ctx context.Context, r io.Reader, originalName string) (string, error) {
	args := m.Called(ctx, r, originalName)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Release(ctx context.Context, locator string) {
	m.Called(ctx, locator)
}

var _ storage.AttachmentStore = (*MockStore)(nil)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(sqlite.Open(filepath.Join(t.TempDir(), "tracker.db")))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Assignment{}))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func newTestRepo(t *testing.T) (Repository, *MockStore) {
	t.Helper()
	store := new(MockStore)
	return NewRepository(newTestDB(t), store), store
}

func strPtr(s string) *string { return &s }

func mathHomework() *model.Assignment {
	return &model.Assignment{
		Subject:  "Math",
		Title:    "HW1",
		DueDate:  model.NewDate(2024, time.May, 1),
		Status:   model.StatusPending,
		Priority: model.PriorityHigh,
		Notes:    strPtr(""),
	}
}

func TestCreateReturnsDistinctIDs(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 25; i++ {
		id, err := repo.Create(ctx, mathHomework())
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 25)
}

func TestCreateRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	id, err := repo.Create(ctx, mathHomework())
	require.NoError(t, err)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	got := all[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Math", got.Subject)
	assert.Equal(t, "HW1", got.Title)
	assert.Equal(t, "2024-05-01", model.FormatDate(got.DueDate))
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "", *got.Notes)
	assert.Nil(t, got.FilePath)
	assert.True(t, got.CreatedAt.After(before))
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
}

func TestCreateIgnoresClientIDAndTimestamp(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	clientID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	a := mathHomework()
	a.ID = clientID
	a.CreatedAt = time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC)

	id, err := repo.Create(ctx, a)
	require.NoError(t, err)
	assert.NotEqual(t, clientID, id)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
}

func TestCreateNormalizesEmptyFilePath(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	a := mathHomework()
	a.FilePath = strPtr("")
	id, err := repo.Create(ctx, a)
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.FilePath)
}

func TestCreateRejectsUnknownEnums(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	a := mathHomework()
	a.Status = "Done"
	_, err := repo.Create(ctx, a)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	a = mathHomework()
	a.Priority = "Urgent"
	_, err = repo.Create(ctx, a)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateAcceptsUnvalidatedContent(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	a := &model.Assignment{
		DueDate:  model.NewDate(1990, time.January, 1),
		Status:   model.StatusInProgress,
		Priority: model.PriorityLow,
	}
	id, err := repo.Create(ctx, a)
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.Subject)
	assert.Empty(t, got.Title)
	assert.Nil(t, got.Notes)
}

func TestUpdateChangesOnlyGivenFields(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	a := mathHomework()
	a.Notes = strPtr("chapter 4")
	a.FilePath = strPtr("uploads/abc_hw1.pdf")
	id, err := repo.Create(ctx, a)
	require.NoError(t, err)

	original, err := repo.FindByID(ctx, id)
	require.NoError(t, err)

	completed := model.StatusCompleted
	require.NoError(t, repo.Update(ctx, id, model.AssignmentUpdate{Status: &completed}))

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, original.Subject, got.Subject)
	assert.Equal(t, original.Title, got.Title)
	assert.Equal(t, model.FormatDate(original.DueDate), model.FormatDate(got.DueDate))
	assert.Equal(t, original.Priority, got.Priority)
	assert.Equal(t, original.Notes, got.Notes)
	assert.Equal(t, original.FilePath, got.FilePath)
	assert.True(t, original.CreatedAt.Equal(got.CreatedAt))
}

func TestUpdateSeveralFields(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, mathHomework())
	require.NoError(t, err)

	due := model.NewDate(2024, time.June, 15)
	low := model.PriorityLow
	require.NoError(t, repo.Update(ctx, id, model.AssignmentUpdate{
		Title:    strPtr("HW1 (revised)"),
		DueDate:  &due,
		Priority: &low,
		Notes:    strPtr("extension granted"),
	}))

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "HW1 (revised)", got.Title)
	assert.Equal(t, "2024-06-15", model.FormatDate(got.DueDate))
	assert.Equal(t, model.PriorityLow, got.Priority)
	assert.Equal(t, "extension granted", *got.Notes)
	assert.Equal(t, "Math", got.Subject)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestUpdateClearsFilePath(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	a := mathHomework()
	a.FilePath = strPtr("uploads/abc_hw1.pdf")
	id, err := repo.Create(ctx, a)
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, id, model.AssignmentUpdate{FilePath: strPtr("")}))

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.FilePath)
}

func TestUpdateUnknownIDIsNoop(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, mathHomework())
	require.NoError(t, err)

	completed := model.StatusCompleted
	err = repo.Update(ctx, uuid.New(), model.AssignmentUpdate{Status: &completed})
	assert.NoError(t, err)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestUpdateEmptyIsNoop(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, mathHomework())
	require.NoError(t, err)

	assert.NoError(t, repo.Update(ctx, id, model.AssignmentUpdate{}))
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, mathHomework())
	require.NoError(t, err)

	done := model.Status("Done")
	err = repo.Update(ctx, id, model.AssignmentUpdate{Status: &done})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestDeleteRemovesRecordAndIsIdempotent(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	keep, err := repo.Create(ctx, mathHomework())
	require.NoError(t, err)
	gone, err := repo.Create(ctx, mathHomework())
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, gone))
	require.NoError(t, repo.Delete(ctx, gone))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep, all[0].ID)

	_, err = repo.FindByID(ctx, gone)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	store.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestDeleteReleasesAttachment(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	a := mathHomework()
	a.FilePath = strPtr("uploads/abc_hw1.pdf")
	id, err := repo.Create(ctx, a)
	require.NoError(t, err)

	store.On("Release", mock.Anything, "uploads/abc_hw1.pdf").Return().Once()

	require.NoError(t, repo.Delete(ctx, id))
	require.NoError(t, repo.Delete(ctx, id))

	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "Release", 1)
}

func TestDeleteUnknownIDIsNoop(t *testing.T) {
	repo, store := newTestRepo(t)

	assert.NoError(t, repo.Delete(context.Background(), uuid.New()))
	store.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestFindAllEmpty(t *testing.T) {
	repo, _ := newTestRepo(t)

	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestListFilePaths(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	for _, p := range []string{"uploads/a_1.pdf", "uploads/b_2.png"} {
		a := mathHomework()
		a.FilePath = strPtr(p)
		_, err := repo.Create(ctx, a)
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, mathHomework())
	require.NoError(t, err)

	paths, err := repo.ListFilePaths(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"uploads/a_1.pdf", "uploads/b_2.png"}, paths)
}

func TestClosedDatabaseIsStorageUnavailable(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db, new(MockStore))
	require.NoError(t, database.Close(db))

	ctx := context.Background()

	_, err := repo.Create(ctx, mathHomework())
	assert.ErrorIs(t, err, apperror.ErrStorageUnavailable)

	_, err = repo.FindAll(ctx)
	assert.ErrorIs(t, err, apperror.ErrStorageUnavailable)

	err = repo.Delete(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrStorageUnavailable)
}
