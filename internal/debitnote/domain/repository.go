package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	taskrecorddomain "github.com/portflow/portflow/internal/taskrecord/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, note *DebitNote) error
	FindByID(ctx context.Context, db *gorm.DB, jobOrderID snowflake.ID, taskType taskrecorddomain.TaskType, id snowflake.ID) (*DebitNote, error)
	FindByNo(ctx context.Context, db *gorm.DB, jobOrderID snowflake.ID, taskType taskrecorddomain.TaskType, debitNoteNo string) (*DebitNote, error)

	InsertDetail(ctx context.Context, db *gorm.DB, detail *DebitNoteDetail) error
	FindDetails(ctx context.Context, db *gorm.DB, debitNoteID snowflake.ID) ([]DebitNoteDetail, error)
	NextItemNo(ctx context.Context, db *gorm.DB, debitNoteID snowflake.ID) (int, error)

	// RecomputeTotals rewrites the header totals from the sum of detail rows
	// and bumps edit_version.
	RecomputeTotals(ctx context.Context, db *gorm.DB, debitNoteID snowflake.ID, editedBy string, now time.Time) (*DebitNote, error)

	DeleteWithDetails(ctx context.Context, db *gorm.DB, debitNoteID snowflake.ID) error
}
