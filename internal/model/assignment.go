package model

import (
	"fmt"
	"time"

	"anoa.com/homeworktracker/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ParseStatus rejects anything outside the closed set.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q: %w", s, apperror.ErrInvalidInput)
	}
	return status, nil
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func ParsePriority(s string) (Priority, error) {
	priority := Priority(s)
	if !priority.Valid() {
		return "", fmt.Errorf("unknown priority %q: %w", s, apperror.ErrInvalidInput)
	}
	return priority, nil
}

type Assignment struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Subject   string         `gorm:"type:text" json:"subject"`
	Title     string         `gorm:"type:text" json:"title"`
	DueDate   datatypes.Date `gorm:"type:date" json:"due_date"`
	Status    Status         `gorm:"type:text" json:"status"`
	Priority  Priority       `gorm:"type:text" json:"priority"`
	Notes     *string        `gorm:"type:text" json:"notes,omitempty"`
	FilePath  *string        `gorm:"type:text" json:"file_path,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime:false" json:"created_at"`
}

// AssignmentUpdate lists the mutable fields; nil means "leave unchanged".
// An empty FilePath clears the stored locator.
type AssignmentUpdate struct {
	Subject  *string
	Title    *string
	DueDate  *datatypes.Date
	Status   *Status
	Priority *Priority
	Notes    *string
	FilePath *string
}

func (u AssignmentUpdate) IsEmpty() bool {
	return u.Subject == nil && u.Title == nil && u.DueDate == nil &&
		u.Status == nil && u.Priority == nil && u.Notes == nil && u.FilePath == nil
}

// Columns converts the update into a column map. Unknown enum values are
// rejected.
func (u AssignmentUpdate) Columns() (map[string]interface{}, error) {
	cols := make(map[string]interface{})
	if u.Subject != nil {
		cols["subject"] = *u.Subject
	}
	if u.Title != nil {
		cols["title"] = *u.Title
	}
	if u.DueDate != nil {
		cols["due_date"] = *u.DueDate
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return nil, fmt.Errorf("unknown status %q: %w", *u.Status, apperror.ErrInvalidInput)
		}
		cols["status"] = *u.Status
	}
	if u.Priority != nil {
		if !u.Priority.Valid() {
			return nil, fmt.Errorf("unknown priority %q: %w", *u.Priority, apperror.ErrInvalidInput)
		}
		cols["priority"] = *u.Priority
	}
	if u.Notes != nil {
		cols["notes"] = *u.Notes
	}
	if u.FilePath != nil {
		if *u.FilePath == "" {
			cols["file_path"] = nil
		} else {
			cols["file_path"] = *u.FilePath
		}
	}
	return cols, nil
}

// NewDate builds a calendar date at UTC midnight.
func NewDate(year int, month time.Month, day int) datatypes.Date {
	return datatypes.Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (datatypes.Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return datatypes.Date{}, fmt.Errorf("invalid date %q: %w", s, apperror.ErrInvalidInput)
	}
	return datatypes.Date(t), nil
}

// FormatDate renders d as YYYY-MM-DD.
func FormatDate(d datatypes.Date) string {
	return time.Time(d).Format(time.DateOnly)
}
