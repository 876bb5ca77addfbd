package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/portflow/portflow/internal/taskrecord/domain"
	"github.com/portflow/portflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.TaskRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, jobOrderID snowflake.ID, taskType domain.TaskType, id snowflake.ID) (*domain.TaskRecord, error) {
	var record domain.TaskRecord
	err := db.WithContext(ctx).
		Where("job_order_id = ? AND task_type = ? AND id = ?", jobOrderID, taskType, id).
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.TaskRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var records []*domain.TaskRecord
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[snowflake.ID]*domain.TaskRecord, len(records))
	for _, record := range records {
		byID[record.ID] = record
	}

	ordered := make([]*domain.TaskRecord, 0, len(records))
	for _, id := range ids {
		if record, ok := byID[id]; ok {
			ordered = append(ordered, record)
		}
	}
	return ordered, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, jobOrderID snowflake.ID, taskType domain.TaskType, filter domain.ListTaskRecordFilter, page pagination.Pagination) ([]*domain.TaskRecord, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.TaskRecord{}).
		Where("job_order_id = ? AND task_type = ?", jobOrderID, taskType)

	if filter.DebitNoteID != nil {
		stmt = stmt.Where("debit_note_id = ?", *filter.DebitNoteID)
	}
	if filter.UnbilledOnly {
		stmt = stmt.Where("debit_note_id IS NULL")
	}
	if filter.DateFrom != nil {
		stmt = stmt.Where("service_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		stmt = stmt.Where("service_date <= ?", *filter.DateTo)
	}

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		cursorID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("id > ?", cursorID)
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}

	var records []*domain.TaskRecord
	err := stmt.
		Order("id asc").
		Limit(limit + 1).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) ListByDebitNote(ctx context.Context, db *gorm.DB, debitNoteID snowflake.ID) ([]*domain.TaskRecord, error) {
	var records []*domain.TaskRecord
	err := db.WithContext(ctx).
		Where("debit_note_id = ?", debitNoteID).
		Order("id asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) UpdateFields(ctx context.Context, db *gorm.DB, record *domain.TaskRecord, expectedVersion int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE task_records
		 SET service_date = ?, description = ?, charge_id = ?, gl_account_id = ?,
		     quantity = ?, unit_price = ?, total_amount = ?, tax_id = ?,
		     tax_amount = ?, total_after_tax = ?, edited_by = ?, edited_at = ?,
		     edit_version = edit_version + 1
		 WHERE id = ? AND edit_version = ?`,
		record.ServiceDate,
		record.Description,
		record.ChargeID,
		record.GLAccountID,
		record.Quantity,
		record.UnitPrice,
		record.TotalAmount,
		record.TaxID,
		record.TaxAmount,
		record.TotalAfterTax,
		record.EditedBy,
		record.EditedAt,
		record.ID,
		expectedVersion,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) UpdateBillingLink(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, link *domain.BillingLink, editedBy string, now time.Time) (bool, error) {
	var debitNoteID *snowflake.ID
	var debitNoteNo *string
	if link != nil {
		debitNoteID = &link.DebitNoteID
		debitNoteNo = &link.DebitNoteNo
	}

	result := db.WithContext(ctx).Exec(
		`UPDATE task_records
		 SET debit_note_id = ?, debit_note_no = ?, edited_by = ?, edited_at = ?,
		     edit_version = edit_version + 1
		 WHERE id = ? AND edit_version = ?`,
		debitNoteID,
		debitNoteNo,
		editedBy,
		now,
		id,
		expectedVersion,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM task_records WHERE id = ?`, id).Error
}
