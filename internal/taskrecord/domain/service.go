package domain

import (
	"context"
	"errors"
	"time"

	"github.com/portflow/portflow/pkg/db/pagination"
)

type CreateTaskRecordRequest struct {
	JobOrderID  string
	TaskType    string
	ServiceDate *time.Time
	Description string
	ChargeID    string
	GLAccountID string
	Quantity    int64
	UnitPrice   int64
	TaxID       string
	TaxAmount   int64
}

type GetTaskRecordRequest struct {
	JobOrderID string
	TaskType   string
	ID         string
}

type ListTaskRecordRequest struct {
	JobOrderID  string
	TaskType    string
	DebitNoteID string
	Unbilled    bool
	PageToken   string
	PageSize    int32
}

type ListTaskRecordResponse struct {
	pagination.PageInfo
	TaskRecords []TaskRecord `json:"task_records"`
}

// UpdateTaskRecordRequest edits business fields only. The billing link is
// exclusively owned by the debit-note services.
type UpdateTaskRecordRequest struct {
	JobOrderID  string
	TaskType    string
	ID          string
	EditVersion int64
	ServiceDate *time.Time
	Description string
	ChargeID    string
	GLAccountID string
	Quantity    int64
	UnitPrice   int64
	TaxID       string
	TaxAmount   int64
}

type DeleteTaskRecordRequest struct {
	JobOrderID string
	TaskType   string
	ID         string
}

type Service interface {
	Create(context.Context, CreateTaskRecordRequest) (TaskRecord, error)
	Get(context.Context, GetTaskRecordRequest) (TaskRecord, error)
	List(context.Context, ListTaskRecordRequest) (ListTaskRecordResponse, error)
	Update(context.Context, UpdateTaskRecordRequest) (TaskRecord, error)
	Delete(context.Context, DeleteTaskRecordRequest) error
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidJobOrder  = errors.New("invalid_job_order")
	ErrInvalidTaskType  = errors.New("invalid_task_type")
	ErrInvalidCharge    = errors.New("invalid_charge")
	ErrInvalidGLAccount = errors.New("invalid_gl_account")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrNotFound         = errors.New("not_found")
	ErrVersionConflict  = errors.New("edit_version_conflict")
	ErrRecordBilled     = errors.New("record_billed")
)
