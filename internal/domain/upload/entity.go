// Package upload tracks a single submission of recipe source material
// through the extraction pipeline.
package upload

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies what the client submitted
type SourceKind string

const (
	SourceKindText  SourceKind = "text"
	SourceKindURL   SourceKind = "url"
	SourceKindPDF   SourceKind = "pdf"
	SourceKindImage SourceKind = "image"
)

// IsValid reports whether the kind is supported
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceKindText, SourceKindURL, SourceKindPDF, SourceKindImage:
		return true
	}
	return false
}

// Status of an upload
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MaxErrorMessageLength bounds the stored diagnostic message, in runes
const MaxErrorMessageLength = 500

var (
	ErrInvalidSourceKind = errors.New("unsupported upload source kind")
	ErrUploadTerminal    = errors.New("upload has already reached a terminal status")
	ErrMissingRecipeID   = errors.New("completed upload requires a recipe id")
	ErrUploadNotFound    = errors.New("upload not found")
)

// Upload is one submission of recipe source content
type Upload struct {
	id            uuid.UUID
	sourceKind    SourceKind
	rawContentRef string
	status        Status
	errorMessage  string
	recipeID      *uuid.UUID
	createdAt     time.Time
	completedAt   *time.Time
}

// NewUpload starts a new upload in the processing state
func NewUpload(kind SourceKind, now time.Time) (*Upload, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidSourceKind
	}
	return &Upload{
		id:         uuid.New(),
		sourceKind: kind,
		status:     StatusProcessing,
		createdAt:  now,
	}, nil
}

// State is the persisted form of an upload
type State struct {
	ID            uuid.UUID
	SourceKind    SourceKind
	RawContentRef string
	Status        Status
	ErrorMessage  string
	RecipeID      *uuid.UUID
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// Restore rebuilds an upload from storage
func Restore(s State) *Upload {
	return &Upload{
		id:            s.ID,
		sourceKind:    s.SourceKind,
		rawContentRef: s.RawContentRef,
		status:        s.Status,
		errorMessage:  s.ErrorMessage,
		recipeID:      s.RecipeID,
		createdAt:     s.CreatedAt,
		completedAt:   s.CompletedAt,
	}
}

// State returns the persisted form of the upload
func (u *Upload) State() State {
	return State{
		ID:            u.id,
		SourceKind:    u.sourceKind,
		RawContentRef: u.rawContentRef,
		Status:        u.status,
		ErrorMessage:  u.errorMessage,
		RecipeID:      u.recipeID,
		CreatedAt:     u.createdAt,
		CompletedAt:   u.completedAt,
	}
}

// AttachRawContent records where the archived source lives
func (u *Upload) AttachRawContent(ref string) error {
	if u.status.IsTerminal() {
		return ErrUploadTerminal
	}
	u.rawContentRef = ref
	return nil
}

// Complete links the upload to the recipe it produced
func (u *Upload) Complete(recipeID uuid.UUID, now time.Time) error {
	if u.status.IsTerminal() {
		return ErrUploadTerminal
	}
	if recipeID == uuid.Nil {
		return ErrMissingRecipeID
	}
	u.status = StatusCompleted
	u.recipeID = &recipeID
	u.completedAt = &now
	return nil
}

// Fail records a diagnostic message and ends the upload
func (u *Upload) Fail(message string, now time.Time) error {
	if u.status.IsTerminal() {
		return ErrUploadTerminal
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "extraction failed"
	}
	u.status = StatusFailed
	u.errorMessage = TruncateMessage(message, MaxErrorMessageLength)
	u.completedAt = &now
	return nil
}

// TruncateMessage cuts a message to at most limit runes
func TruncateMessage(message string, limit int) string {
	runes := []rune(message)
	if len(runes) <= limit {
		return message
	}
	return string(runes[:limit])
}

func (u *Upload) ID() uuid.UUID { return u.id }
func (u *Upload) SourceKind() SourceKind { return u.sourceKind }
func (u *Upload) RawContentRef() string { return u.rawContentRef }
func (u *Upload) Status() Status { return u.status }
func (u *Upload) ErrorMessage() string { return u.errorMessage }
func (u *Upload) RecipeID() *uuid.UUID { return u.recipeID }
func (u *Upload) CreatedAt() time.Time { return u.createdAt }
func (u *Upload) CompletedAt() *time.Time { return u.completedAt }
