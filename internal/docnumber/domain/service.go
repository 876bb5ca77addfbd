// Package domain defines the document-numbering collaborator consumed by the
// debit-note aggregation service.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	taskrecorddomain "github.com/portflow/portflow/internal/taskrecord/domain"
	"gorm.io/gorm"
)

// DocumentSequence backs number allocation, one row per task type. The counter
// is global rather than per job order because debit-note numbers are unique
// across the whole system.
type DocumentSequence struct {
	TaskType  taskrecorddomain.TaskType `gorm:"primaryKey;type:text"`
	LastNo    int64                     `gorm:"not null;default:0"`
	UpdatedAt time.Time                 `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DocumentSequence) TableName() string { return "document_sequences" }

// Allocator hands out human-readable document numbers. Allocation runs inside
// the caller's transaction so an aborted billing never consumes a number that
// was handed to a committed note.
type Allocator interface {
	AllocateDocumentNumber(ctx context.Context, tx *gorm.DB, jobOrderID snowflake.ID, taskType taskrecorddomain.TaskType) (string, error)
}

var ErrAllocationFailed = errors.New("document_number_allocation_failed")
