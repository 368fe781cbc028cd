package dto

import (
	"time"

	"anoa.com/homeworktracker/internal/model"
	"github.com/google/uuid"
)

// CreateAssignmentRequest is bound from a multipart form; the optional file
// travels in the "file" part.
type CreateAssignmentRequest struct {
	Subject  string `form:"subject"`
	Title    string `form:"title"`
	DueDate  string `form:"due_date" binding:"required,datetime=2006-01-02"`
	Status   string `form:"status" binding:"required,oneof=Pending 'In Progress' Completed"`
	Priority string `form:"priority" binding:"required,oneof=Low Medium High"`
	Notes    string `form:"notes"`
}

type UpdateAssignmentRequest struct {
	Subject  *string `json:"subject"`
	Title    *string `json:"title"`
	DueDate  *string `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Status   *string `json:"status" binding:"omitempty,oneof=Pending 'In Progress' Completed"`
	Priority *string `json:"priority" binding:"omitempty,oneof=Low Medium High"`
	Notes    *string `json:"notes"`
}

type CreateAssignmentResponse struct {
	ID uuid.UUID `json:"id"`
}

type AssignmentResponse struct {
	ID        uuid.UUID `json:"id"`
	Subject   string    `json:"subject"`
	Title     string    `json:"title"`
	DueDate   string    `json:"due_date"`
	Status    string    `json:"status"`
	Priority  string    `json:"priority"`
	Notes     *string   `json:"notes,omitempty"`
	FilePath  *string   `json:"file_path,omitempty"`
	CreatedAt string    `json:"created_at"`
}

type CleanupResponse struct {
	Released int `json:"released"`
}

func ToAssignmentResponse(a model.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:        a.ID,
		Subject:   a.Subject,
		Title:     a.Title,
		DueDate:   model.FormatDate(a.DueDate),
		Status:    string(a.Status),
		Priority:  string(a.Priority),
		Notes:     a.Notes,
		FilePath:  a.FilePath,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
