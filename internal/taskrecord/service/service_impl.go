package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/portflow/portflow/internal/actorcontext"
	auditdomain "github.com/portflow/portflow/internal/audit/domain"
	"github.com/portflow/portflow/internal/taskrecord/domain"
	"github.com/portflow/portflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("taskrecord.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTaskRecordRequest) (domain.TaskRecord, error) {
	jobOrderID, taskType, err := parseScope(req.JobOrderID, req.TaskType)
	if err != nil {
		return domain.TaskRecord{}, err
	}

	chargeID, err := snowflake.ParseString(strings.TrimSpace(req.ChargeID))
	if err != nil || chargeID == 0 {
		return domain.TaskRecord{}, domain.ErrInvalidCharge
	}
	glAccountID, err := snowflake.ParseString(strings.TrimSpace(req.GLAccountID))
	if err != nil || glAccountID == 0 {
		return domain.TaskRecord{}, domain.ErrInvalidGLAccount
	}
	if req.Quantity <= 0 {
		return domain.TaskRecord{}, domain.ErrInvalidQuantity
	}

	taxID, err := parseOptionalID(req.TaxID)
	if err != nil {
		return domain.TaskRecord{}, domain.ErrInvalidID
	}

	actor := actorcontext.ActorID(ctx)
	now := time.Now().UTC()
	total := req.Quantity * req.UnitPrice
	record := domain.TaskRecord{
		ID:            s.genID.Generate(),
		JobOrderID:    jobOrderID,
		TaskType:      taskType,
		ServiceDate:   req.ServiceDate,
		Description:   strings.TrimSpace(req.Description),
		ChargeID:      chargeID,
		GLAccountID:   glAccountID,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		TotalAmount:   total,
		TaxID:         taxID,
		TaxAmount:     req.TaxAmount,
		TotalAfterTax: total + req.TaxAmount,
		Metadata:      datatypes.JSONMap{},
		CreatedBy:     actor,
		CreatedAt:     now,
		EditedBy:      actor,
		EditedAt:      now,
		EditVersion:   1,
	}

	if err := s.repo.Insert(ctx, s.db, &record); err != nil {
		return domain.TaskRecord{}, err
	}

	s.emitAudit(ctx, "task_record.created", &record, nil)
	return record, nil
}

func (s *Service) Get(ctx context.Context, req domain.GetTaskRecordRequest) (domain.TaskRecord, error) {
	jobOrderID, taskType, err := parseScope(req.JobOrderID, req.TaskType)
	if err != nil {
		return domain.TaskRecord{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.TaskRecord{}, domain.ErrInvalidID
	}

	record, err := s.repo.FindByID(ctx, s.db, jobOrderID, taskType, id)
	if err != nil {
		return domain.TaskRecord{}, err
	}
	if record == nil {
		return domain.TaskRecord{}, domain.ErrNotFound
	}
	return *record, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTaskRecordRequest) (domain.ListTaskRecordResponse, error) {
	jobOrderID, taskType, err := parseScope(req.JobOrderID, req.TaskType)
	if err != nil {
		return domain.ListTaskRecordResponse{}, err
	}

	filter := domain.ListTaskRecordFilter{UnbilledOnly: req.Unbilled}
	if strings.TrimSpace(req.DebitNoteID) != "" {
		debitNoteID, err := snowflake.ParseString(strings.TrimSpace(req.DebitNoteID))
		if err != nil || debitNoteID == 0 {
			return domain.ListTaskRecordResponse{}, domain.ErrInvalidID
		}
		filter.DebitNoteID = &debitNoteID
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, jobOrderID, taskType, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListTaskRecordResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record *domain.TaskRecord) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	records := make([]domain.TaskRecord, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	resp := domain.ListTaskRecordResponse{TaskRecords: records}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateTaskRecordRequest) (domain.TaskRecord, error) {
	jobOrderID, taskType, err := parseScope(req.JobOrderID, req.TaskType)
	if err != nil {
		return domain.TaskRecord{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.TaskRecord{}, domain.ErrInvalidID
	}
	chargeID, err := snowflake.ParseString(strings.TrimSpace(req.ChargeID))
	if err != nil || chargeID == 0 {
		return domain.TaskRecord{}, domain.ErrInvalidCharge
	}
	glAccountID, err := snowflake.ParseString(strings.TrimSpace(req.GLAccountID))
	if err != nil || glAccountID == 0 {
		return domain.TaskRecord{}, domain.ErrInvalidGLAccount
	}
	if req.Quantity <= 0 {
		return domain.TaskRecord{}, domain.ErrInvalidQuantity
	}
	taxID, err := parseOptionalID(req.TaxID)
	if err != nil {
		return domain.TaskRecord{}, domain.ErrInvalidID
	}

	var updated domain.TaskRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, jobOrderID, taskType, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		total := req.Quantity * req.UnitPrice
		next := *current
		next.ServiceDate = req.ServiceDate
		next.Description = strings.TrimSpace(req.Description)
		next.ChargeID = chargeID
		next.GLAccountID = glAccountID
		next.Quantity = req.Quantity
		next.UnitPrice = req.UnitPrice
		next.TotalAmount = total
		next.TaxID = taxID
		next.TaxAmount = req.TaxAmount
		next.TotalAfterTax = total + req.TaxAmount
		next.EditedBy = actorcontext.ActorID(ctx)
		next.EditedAt = time.Now().UTC()

		ok, err := s.repo.UpdateFields(ctx, tx, &next, req.EditVersion)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrVersionConflict
		}

		next.EditVersion = req.EditVersion + 1
		updated = next
		return nil
	})
	if err != nil {
		return domain.TaskRecord{}, err
	}

	s.emitAudit(ctx, "task_record.updated", &updated, nil)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, req domain.DeleteTaskRecordRequest) error {
	jobOrderID, taskType, err := parseScope(req.JobOrderID, req.TaskType)
	if err != nil {
		return err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.ErrInvalidID
	}

	var deleted *domain.TaskRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.FindByID(ctx, tx, jobOrderID, taskType, id)
		if err != nil {
			return err
		}
		if record == nil {
			return domain.ErrNotFound
		}
		// Billed records must be unlinked via debit-note deletion first,
		// otherwise the note would keep a detail for a vanished record.
		if record.Billed() {
			return domain.ErrRecordBilled
		}

		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		deleted = record
		return nil
	})
	if err != nil {
		return err
	}

	s.emitAudit(ctx, "task_record.deleted", deleted, nil)
	return nil
}

func (s *Service) emitAudit(ctx context.Context, action string, record *domain.TaskRecord, extra map[string]any) {
	if s.auditSvc == nil || record == nil {
		return
	}
	metadata := map[string]any{
		"job_order_id": record.JobOrderID.String(),
		"task_type":    string(record.TaskType),
		"edit_version": record.EditVersion,
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	targetID := record.ID.String()
	_ = s.auditSvc.Record(ctx, action, "task_record", &targetID, metadata)
}

func parseScope(jobOrderID, taskType string) (snowflake.ID, domain.TaskType, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(jobOrderID))
	if err != nil || id == 0 {
		return 0, "", domain.ErrInvalidJobOrder
	}
	tt := domain.TaskType(strings.ToUpper(strings.TrimSpace(taskType)))
	if !tt.Valid() {
		return 0, "", domain.ErrInvalidTaskType
	}
	return id, tt, nil
}

func parseOptionalID(value string) (*snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(value)
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}
	return &id, nil
}
