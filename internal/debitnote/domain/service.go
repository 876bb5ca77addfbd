package domain

import (
	"context"
	"errors"
)

// GenerateDebitNoteRequest selects task records of one task type within one
// job order for billing. ExistingDebitNoteNo, when set, appends unbilled
// records to that note instead of creating a new one.
type GenerateDebitNoteRequest struct {
	JobOrderID          string
	TaskType            string
	TaskRecordIDs       []string
	ExistingDebitNoteNo string
	CustomerID          string
	Currency            string
}

type GetDebitNoteRequest struct {
	JobOrderID  string
	TaskType    string
	DebitNoteID string
}

type DeleteDebitNoteRequest struct {
	JobOrderID  string
	TaskType    string
	DebitNoteID string
}

type Service interface {
	// GenerateOrAttach implements the aggregation flow: partition the
	// selection into billed and unbilled, resolve or create the target note,
	// write one detail per unbilled record and back-fill the billing links,
	// all inside one transaction.
	GenerateOrAttach(context.Context, GenerateDebitNoteRequest) (DebitNoteView, error)
	Get(context.Context, GetDebitNoteRequest) (DebitNoteView, error)
	// Delete removes a note and restores every covered task record to the
	// unbilled state atomically.
	Delete(context.Context, DeleteDebitNoteRequest) error
}

var (
	ErrEmptySelection    = errors.New("empty_selection")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidJobOrder   = errors.New("invalid_job_order")
	ErrInvalidTaskType   = errors.New("invalid_task_type")
	ErrTaskRecordMissing = errors.New("task_record_not_found")
	ErrNotFound          = errors.New("debit_note_not_found")
	ErrVersionConflict   = errors.New("edit_version_conflict")
)
