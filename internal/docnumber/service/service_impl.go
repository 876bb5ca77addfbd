package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/portflow/portflow/internal/config"
	"github.com/portflow/portflow/internal/docnumber/domain"
	taskrecorddomain "github.com/portflow/portflow/internal/taskrecord/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Numbering *config.NumberingConfigHolder
}

type Service struct {
	log       *zap.Logger
	numbering *config.NumberingConfigHolder
}

func New(p Params) domain.Allocator {
	return &Service{
		log:       p.Log.Named("docnumber.service"),
		numbering: p.Numbering,
	}
}

// AllocateDocumentNumber bumps the per-task-type counter inside the caller's
// transaction. The counter is not scoped to the job order: debit-note numbers
// are unique system-wide, so two job orders never receive the same number.
func (s *Service) AllocateDocumentNumber(ctx context.Context, tx *gorm.DB, jobOrderID snowflake.ID, taskType taskrecorddomain.TaskType) (string, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE document_sequences
		 SET last_no = last_no + 1, updated_at = ?
		 WHERE task_type = ?`,
		time.Now().UTC(),
		taskType,
	)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO document_sequences (task_type, last_no, updated_at)
			 VALUES (?, 1, ?)`,
			taskType,
			time.Now().UTC(),
		).Error
		if err != nil {
			// A concurrent allocator may have inserted the row first; the
			// unique violation aborts this transaction and the caller retries.
			return "", fmt.Errorf("%w: %v", domain.ErrAllocationFailed, err)
		}
	}

	var lastNo int64
	err := tx.WithContext(ctx).Raw(
		`SELECT last_no FROM document_sequences WHERE task_type = ?`,
		taskType,
	).Scan(&lastNo).Error
	if err != nil {
		return "", err
	}
	if lastNo == 0 {
		return "", domain.ErrAllocationFailed
	}

	number := s.format(taskType, lastNo)
	s.log.Debug("document number allocated",
		zap.String("job_order_id", jobOrderID.String()),
		zap.String("task_type", string(taskType)),
		zap.String("document_no", number),
	)
	return number, nil
}

func (s *Service) format(taskType taskrecorddomain.TaskType, seq int64) string {
	cfg := config.DefaultNumberingConfig()
	if s.numbering != nil {
		cfg = s.numbering.Get()
	}
	return fmt.Sprintf("%s-%s-%0*d", strings.ToUpper(cfg.Prefix), taskType.Code(), cfg.Padding, seq)
}
