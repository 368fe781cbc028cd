package dto

import "anoa.com/homeworktracker/internal/model"

type SummaryResponse struct {
	Total               int                  `json:"total"`
	ByStatus            map[model.Status]int `json:"by_status"`
	IncompleteBySubject map[string]int       `json:"incomplete_by_subject"`
}
