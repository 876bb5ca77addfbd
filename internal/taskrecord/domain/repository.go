package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/portflow/portflow/pkg/db/pagination"
	"gorm.io/gorm"
)

// BillingLink is the debit-note reference carried by a billed task record.
// A nil Link on UpdateBillingLink clears the reference.
type BillingLink struct {
	DebitNoteID snowflake.ID
	DebitNoteNo string
}

type ListTaskRecordFilter struct {
	DebitNoteID  *snowflake.ID
	UnbilledOnly bool
	DateFrom     *time.Time
	DateTo       *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *TaskRecord) error
	FindByID(ctx context.Context, db *gorm.DB, jobOrderID snowflake.ID, taskType TaskType, id snowflake.ID) (*TaskRecord, error)
	// FindByIDs returns records in input order, unscoped so callers can tell
	// a missing id apart from one belonging to another job order or task
	// type. Ids absent from the store are missing from the result.
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*TaskRecord, error)
	List(ctx context.Context, db *gorm.DB, jobOrderID snowflake.ID, taskType TaskType, filter ListTaskRecordFilter, page pagination.Pagination) ([]*TaskRecord, error)
	ListByDebitNote(ctx context.Context, db *gorm.DB, debitNoteID snowflake.ID) ([]*TaskRecord, error)

	// UpdateFields writes business fields guarded by edit_version; it never
	// touches the billing link. Returns false on a version miss.
	UpdateFields(ctx context.Context, db *gorm.DB, record *TaskRecord, expectedVersion int64) (bool, error)

	// UpdateBillingLink sets or clears the debit-note reference guarded by
	// edit_version, bumping the version. Returns false on a version miss.
	UpdateBillingLink(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, link *BillingLink, editedBy string, now time.Time) (bool, error)

	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
