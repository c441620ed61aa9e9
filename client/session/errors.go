package session

import (
	"errors"
	"fmt"
)

var (
	ErrBusy           = errors.New("another login or logout is in progress")
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// Error is a non-2xx answer from the API, carrying the message the server meant to be displayed.
type Error struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}
