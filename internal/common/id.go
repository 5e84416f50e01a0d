package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job identifier
func NewJobID() string {
	return uuid.New().String()
}
