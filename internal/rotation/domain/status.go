// Package domain defines the state of a master secret rotation.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Phase is a step of the rotation state machine:
//
//	Idle -> Preparing -> Counting -> KeySwapped -> ReEncrypting -> Validating -> Completed
//
// Any failure after Preparing ends in RolledBack.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhasePreparing    Phase = "preparing"
	PhaseCounting     Phase = "counting"
	PhaseKeySwapped   Phase = "key_swapped"
	PhaseReEncrypting Phase = "re_encrypting"
	PhaseValidating   Phase = "validating"
	PhaseCompleted    Phase = "completed"
	PhaseRolledBack   Phase = "rolled_back"
)

// Terminal reports whether the phase ends a rotation.
func (p Phase) Terminal() bool {
	return p == PhaseIdle || p == PhaseCompleted || p == PhaseRolledBack
}

// Progress counts records across every target of a rotation.
type Progress struct {
	Total     int64 `json:"total"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// BatchError records one failed batch.
type BatchError struct {
	EntityType string `json:"entity_type"`
	Field      string `json:"field"`
	Batch      int    `json:"batch"`
	Message    string `json:"error"`
}

// RotationStatus is a snapshot of the current or last rotation.
type RotationStatus struct {
	ID          uuid.UUID    `json:"id"`
	Phase       Phase        `json:"phase"`
	InProgress  bool         `json:"in_progress"`
	FromKeyID   string       `json:"from_key_id,omitempty"`
	ToKeyID     string       `json:"to_key_id,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Progress    Progress     `json:"progress"`
	Errors      []BatchError `json:"errors,omitempty"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *RotationStatus) Clone() RotationStatus {
	out := *s
	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		out.CompletedAt = &completed
	}
	if s.Errors != nil {
		out.Errors = append([]BatchError(nil), s.Errors...)
	}
	return out
}

// StoredValue is one encrypted column value read from a record store.
type StoredValue struct {
	ID    string
	Value string
}
