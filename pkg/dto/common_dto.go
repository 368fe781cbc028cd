package dto

// ListResponse wraps collection payloads.
type ListResponse[T any] struct {
	Data []T `json:"data"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
