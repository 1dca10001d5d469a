package entity

import (
	"time"

	"github.com/google/uuid"
)

// Artifact is one persisted spreadsheet produced by a successful extraction.
// Created once, never mutated; deletion is left to external retention policy.
type Artifact struct {
	ID        uuid.UUID `json:"id"`
	Owner     string    `json:"-"`
	Location  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
