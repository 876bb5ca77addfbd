// Package domain contains persistence models for debit notes.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	taskrecorddomain "github.com/portflow/portflow/internal/taskrecord/domain"
	"gorm.io/datatypes"
)

// DebitNoteStatus represents debit-note lifecycle states. Only OPEN is reached
// by this service; the wider ERP settles and closes notes elsewhere.
type DebitNoteStatus string

const (
	DebitNoteStatusOpen DebitNoteStatus = "OPEN"
)

// DebitNote is a billing document aggregating task records of one task type
// within one job order. Header totals always equal the sum of its details.
type DebitNote struct {
	ID          snowflake.ID              `gorm:"primaryKey" json:"id"`
	DebitNoteNo string                    `gorm:"type:text;not null;uniqueIndex" json:"debit_note_no"`
	JobOrderID  snowflake.ID              `gorm:"not null;index" json:"job_order_id"`
	TaskType    taskrecorddomain.TaskType `gorm:"type:text;not null;index" json:"task_type"`
	CustomerID  *snowflake.ID             `gorm:"index" json:"customer_id,omitempty"`
	Status      DebitNoteStatus           `gorm:"type:text;not null;default:'OPEN'" json:"status"`
	Currency    string                    `gorm:"type:text;not null;default:'USD'" json:"currency"`

	TotalAmount   int64 `gorm:"not null;default:0" json:"total_amount"`
	TaxAmount     int64 `gorm:"not null;default:0" json:"tax_amount"`
	TotalAfterTax int64 `gorm:"not null;default:0" json:"total_after_tax"`

	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedBy   string            `gorm:"type:text;not null" json:"created_by"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	EditedBy    string            `gorm:"type:text;not null" json:"edited_by"`
	EditedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"edited_at"`
	EditVersion int64             `gorm:"not null;default:1" json:"edit_version"`
}

// TableName sets the database table name.
func (DebitNote) TableName() string { return "debit_notes" }

// DebitNoteDetail is one line on a debit note, 1:1 with the task record whose
// billing link points at the note.
type DebitNoteDetail struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	DebitNoteID snowflake.ID `gorm:"not null;index" json:"debit_note_id"`
	ItemNo      int          `gorm:"not null" json:"item_no"`
	// SourceTaskRecordID identifies the aggregated task record; unique so a
	// record can never be billed twice on the same note.
	SourceTaskRecordID snowflake.ID `gorm:"not null;uniqueIndex" json:"source_task_record_id"`

	Description string        `gorm:"type:text" json:"description"`
	ChargeID    snowflake.ID  `gorm:"not null" json:"charge_id"`
	GLAccountID snowflake.ID  `gorm:"not null" json:"gl_account_id"`
	Quantity    int64         `gorm:"not null;default:1" json:"quantity"`
	UnitPrice   int64         `gorm:"not null;default:0" json:"unit_price"`
	TotalAmount int64         `gorm:"not null;default:0" json:"total_amount"`
	TaxID       *snowflake.ID `gorm:"" json:"tax_id,omitempty"`
	TaxAmount   int64         `gorm:"not null;default:0" json:"tax_amount"`
	TotalAfterTax int64       `gorm:"not null;default:0" json:"total_after_tax"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (DebitNoteDetail) TableName() string { return "debit_note_details" }

// DebitNoteView is the header plus its detail lines, returned to callers so
// they can refresh their task-record lists without a second round trip.
type DebitNoteView struct {
	DebitNote
	Details []DebitNoteDetail `json:"details"`
}
