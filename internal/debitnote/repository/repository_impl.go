package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/portflow/portflow/internal/debitnote/domain"
	taskrecorddomain "github.com/portflow/portflow/internal/taskrecord/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, note *domain.DebitNote) error {
	return db.WithContext(ctx).Create(note).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, jobOrderID snowflake.ID, taskType taskrecorddomain.TaskType, id snowflake.ID) (*domain.DebitNote, error) {
	var note domain.DebitNote
	err := db.WithContext(ctx).
		Where("job_order_id = ? AND task_type = ? AND id = ?", jobOrderID, taskType, id).
		Limit(1).
		Find(&note).Error
	if err != nil {
		return nil, err
	}
	if note.ID == 0 {
		return nil, nil
	}
	return &note, nil
}

func (r *repo) FindByNo(ctx context.Context, db *gorm.DB, jobOrderID snowflake.ID, taskType taskrecorddomain.TaskType, debitNoteNo string) (*domain.DebitNote, error) {
	var note domain.DebitNote
	err := db.WithContext(ctx).
		Where("job_order_id = ? AND task_type = ? AND debit_note_no = ?", jobOrderID, taskType, debitNoteNo).
		Limit(1).
		Find(&note).Error
	if err != nil {
		return nil, err
	}
	if note.ID == 0 {
		return nil, nil
	}
	return &note, nil
}

func (r *repo) InsertDetail(ctx context.Context, db *gorm.DB, detail *domain.DebitNoteDetail) error {
	return db.WithContext(ctx).Create(detail).Error
}

func (r *repo) FindDetails(ctx context.Context, db *gorm.DB, debitNoteID snowflake.ID) ([]domain.DebitNoteDetail, error) {
	var details []domain.DebitNoteDetail
	err := db.WithContext(ctx).
		Where("debit_note_id = ?", debitNoteID).
		Order("item_no asc").
		Find(&details).Error
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (r *repo) NextItemNo(ctx context.Context, db *gorm.DB, debitNoteID snowflake.ID) (int, error) {
	var next int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(item_no), 0) + 1
		 FROM debit_note_details
		 WHERE debit_note_id = ?`,
		debitNoteID,
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *repo) RecomputeTotals(ctx context.Context, db *gorm.DB, debitNoteID snowflake.ID, editedBy string, now time.Time) (*domain.DebitNote, error) {
	err := db.WithContext(ctx).Exec(
		`UPDATE debit_notes
		 SET total_amount = (
		         SELECT COALESCE(SUM(total_amount), 0)
		         FROM debit_note_details WHERE debit_note_id = ?
		     ),
		     tax_amount = (
		         SELECT COALESCE(SUM(tax_amount), 0)
		         FROM debit_note_details WHERE debit_note_id = ?
		     ),
		     total_after_tax = (
		         SELECT COALESCE(SUM(total_after_tax), 0)
		         FROM debit_note_details WHERE debit_note_id = ?
		     ),
		     edited_by = ?, edited_at = ?, edit_version = edit_version + 1
		 WHERE id = ?`,
		debitNoteID,
		debitNoteID,
		debitNoteID,
		editedBy,
		now,
		debitNoteID,
	).Error
	if err != nil {
		return nil, err
	}

	var note domain.DebitNote
	err = db.WithContext(ctx).
		Where("id = ?", debitNoteID).
		Limit(1).
		Find(&note).Error
	if err != nil {
		return nil, err
	}
	if note.ID == 0 {
		return nil, nil
	}
	return &note, nil
}

func (r *repo) DeleteWithDetails(ctx context.Context, db *gorm.DB, debitNoteID snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM debit_note_details WHERE debit_note_id = ?`, debitNoteID,
	).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		`DELETE FROM debit_notes WHERE id = ?`, debitNoteID,
	).Error
}
