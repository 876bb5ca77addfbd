// Package domain contains persistence models for billable task records.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TaskType discriminates the billable service category a task record belongs to.
// Debit notes are homogeneous per task type within one job order.
type TaskType string

const (
	TaskTypeEquipmentUsed      TaskType = "EQUIPMENT_USED"
	TaskTypeLaunchService      TaskType = "LAUNCH_SERVICE"
	TaskTypeMedicalAssistance  TaskType = "MEDICAL_ASSISTANCE"
	TaskTypeFreshWater         TaskType = "FRESH_WATER"
	TaskTypeTechnicianSurveyor TaskType = "TECHNICIAN_SURVEYOR"
	TaskTypeCrewChange         TaskType = "CREW_CHANGE"
	TaskTypeShipChandling      TaskType = "SHIP_CHANDLING"
	TaskTypeTransport          TaskType = "TRANSPORT"
	TaskTypeWasteDisposal      TaskType = "WASTE_DISPOSAL"
	TaskTypeCustomsClearance   TaskType = "CUSTOMS_CLEARANCE"
)

var taskTypeCodes = map[TaskType]string{
	TaskTypeEquipmentUsed:      "EQP",
	TaskTypeLaunchService:      "LCH",
	TaskTypeMedicalAssistance:  "MED",
	TaskTypeFreshWater:         "FWT",
	TaskTypeTechnicianSurveyor: "TSV",
	TaskTypeCrewChange:         "CRW",
	TaskTypeShipChandling:      "CHD",
	TaskTypeTransport:          "TRN",
	TaskTypeWasteDisposal:      "WST",
	TaskTypeCustomsClearance:   "CUS",
}

// Valid reports whether the task type is one of the known categories.
func (t TaskType) Valid() bool {
	_, ok := taskTypeCodes[t]
	return ok
}

// Code returns the short code used in document numbers.
func (t TaskType) Code() string {
	return taskTypeCodes[t]
}

// TaskRecord is a single billable service line belonging to one job order and
// one task type. The billing link (DebitNoteID/DebitNoteNo) is written only by
// the debit-note services, never by the generic update path.
type TaskRecord struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	JobOrderID  snowflake.ID `gorm:"not null;index" json:"job_order_id"`
	TaskType    TaskType     `gorm:"type:text;not null;index" json:"task_type"`
	ServiceDate *time.Time   `gorm:"" json:"service_date,omitempty"`
	Description string       `gorm:"type:text" json:"description"`

	ChargeID    snowflake.ID  `gorm:"not null" json:"charge_id"`
	GLAccountID snowflake.ID  `gorm:"not null" json:"gl_account_id"`
	Quantity    int64         `gorm:"not null;default:1" json:"quantity"`
	UnitPrice   int64         `gorm:"not null;default:0" json:"unit_price"`
	TotalAmount int64         `gorm:"not null;default:0" json:"total_amount"`
	TaxID       *snowflake.ID `gorm:"" json:"tax_id,omitempty"`
	TaxAmount   int64         `gorm:"not null;default:0" json:"tax_amount"`
	// TotalAfterTax is TotalAmount + TaxAmount, precomputed by the tax
	// collaborator before the record reaches aggregation.
	TotalAfterTax int64 `gorm:"not null;default:0" json:"total_after_tax"`

	DebitNoteID *snowflake.ID `gorm:"index" json:"debit_note_id,omitempty"`
	DebitNoteNo *string       `gorm:"type:text" json:"debit_note_no,omitempty"`

	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedBy   string            `gorm:"type:text;not null" json:"created_by"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	EditedBy    string            `gorm:"type:text;not null" json:"edited_by"`
	EditedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"edited_at"`
	EditVersion int64             `gorm:"not null;default:1" json:"edit_version"`
}

// TableName sets the database table name.
func (TaskRecord) TableName() string { return "task_records" }

// Billed reports whether the record is currently covered by a debit note.
func (r TaskRecord) Billed() bool {
	return r.DebitNoteID != nil && *r.DebitNoteID != 0
}
