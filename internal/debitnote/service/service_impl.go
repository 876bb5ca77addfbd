package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/portflow/portflow/internal/actorcontext"
	auditdomain "github.com/portflow/portflow/internal/audit/domain"
	"github.com/portflow/portflow/internal/debitnote/domain"
	docnumberdomain "github.com/portflow/portflow/internal/docnumber/domain"
	taskrecorddomain "github.com/portflow/portflow/internal/taskrecord/domain"
	"github.com/portflow/portflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	TaskRecords taskrecorddomain.Repository
	Numbers     docnumberdomain.Allocator
	AuditSvc    auditdomain.Service `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	taskRecords taskrecorddomain.Repository
	numbers     docnumberdomain.Allocator
	auditSvc    auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("debitnote.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		taskRecords: p.TaskRecords,
		numbers:     p.Numbers,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) GenerateOrAttach(ctx context.Context, req domain.GenerateDebitNoteRequest) (domain.DebitNoteView, error) {
	jobOrderID, taskType, err := parseScope(req.JobOrderID, req.TaskType)
	if err != nil {
		return domain.DebitNoteView{}, err
	}

	ids, err := parseSelection(req.TaskRecordIDs)
	if err != nil {
		return domain.DebitNoteView{}, err
	}

	customerID, err := parseOptionalID(req.CustomerID)
	if err != nil {
		return domain.DebitNoteView{}, domain.ErrInvalidID
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	actor := actorcontext.ActorID(ctx)
	var view domain.DebitNoteView
	var action string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		records, err := s.loadSelection(ctx, tx, jobOrderID, taskType, ids)
		if err != nil {
			return err
		}

		billed, unbilled := partition(records)

		// Every selected record already carries a note: idempotent read path.
		if len(unbilled) == 0 {
			note, err := s.resolveBilledNote(ctx, tx, jobOrderID, taskType, billed)
			if err != nil {
				return err
			}
			view, err = s.buildView(ctx, tx, note)
			return err
		}

		note, created, err := s.resolveTargetNote(ctx, tx, jobOrderID, taskType, req.ExistingDebitNoteNo, customerID, currency, actor)
		if err != nil {
			return err
		}

		itemNo, err := s.repo.NextItemNo(ctx, tx, note.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, record := range unbilled {
			detail := domain.DebitNoteDetail{
				ID:                 s.genID.Generate(),
				DebitNoteID:        note.ID,
				ItemNo:             itemNo,
				SourceTaskRecordID: record.ID,
				Description:        record.Description,
				ChargeID:           record.ChargeID,
				GLAccountID:        record.GLAccountID,
				Quantity:           record.Quantity,
				UnitPrice:          record.UnitPrice,
				TotalAmount:        record.TotalAmount,
				TaxID:              record.TaxID,
				TaxAmount:          record.TaxAmount,
				TotalAfterTax:      record.TotalAfterTax,
				CreatedAt:          now,
			}
			if err := s.repo.InsertDetail(ctx, tx, &detail); err != nil {
				// Unique source index: the record was billed by a concurrent
				// transaction between load and insert.
				if db.IsDuplicateKeyErr(err) {
					return domain.ErrVersionConflict
				}
				return err
			}
			itemNo++

			link := &taskrecorddomain.BillingLink{
				DebitNoteID: note.ID,
				DebitNoteNo: note.DebitNoteNo,
			}
			ok, err := s.taskRecords.UpdateBillingLink(ctx, tx, record.ID, record.EditVersion, link, actor, now)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrVersionConflict
			}
		}

		recomputed, err := s.repo.RecomputeTotals(ctx, tx, note.ID, actor, now)
		if err != nil {
			return err
		}
		if recomputed == nil {
			return domain.ErrNotFound
		}

		if created {
			action = "debit_note.generated"
		} else {
			action = "debit_note.attached"
		}
		view, err = s.buildView(ctx, tx, recomputed)
		return err
	})
	if err != nil {
		return domain.DebitNoteView{}, err
	}

	if action != "" {
		s.emitAudit(ctx, action, &view.DebitNote, map[string]any{
			"task_record_count": len(ids),
		})
	}
	return view, nil
}

func (s *Service) Get(ctx context.Context, req domain.GetDebitNoteRequest) (domain.DebitNoteView, error) {
	jobOrderID, taskType, err := parseScope(req.JobOrderID, req.TaskType)
	if err != nil {
		return domain.DebitNoteView{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.DebitNoteID))
	if err != nil || id == 0 {
		return domain.DebitNoteView{}, domain.ErrInvalidID
	}

	note, err := s.repo.FindByID(ctx, s.db, jobOrderID, taskType, id)
	if err != nil {
		return domain.DebitNoteView{}, err
	}
	if note == nil {
		return domain.DebitNoteView{}, domain.ErrNotFound
	}

	return s.buildView(ctx, s.db, note)
}

func (s *Service) Delete(ctx context.Context, req domain.DeleteDebitNoteRequest) error {
	jobOrderID, taskType, err := parseScope(req.JobOrderID, req.TaskType)
	if err != nil {
		return err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.DebitNoteID))
	if err != nil || id == 0 {
		return domain.ErrInvalidID
	}

	actor := actorcontext.ActorID(ctx)
	var deleted *domain.DebitNote
	var unlinked int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		note, err := s.repo.FindByID(ctx, tx, jobOrderID, taskType, id)
		if err != nil {
			return err
		}
		if note == nil {
			return domain.ErrNotFound
		}

		records, err := s.taskRecords.ListByDebitNote(ctx, tx, note.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, record := range records {
			ok, err := s.taskRecords.UpdateBillingLink(ctx, tx, record.ID, record.EditVersion, nil, actor, now)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrVersionConflict
			}
		}

		if err := s.repo.DeleteWithDetails(ctx, tx, note.ID); err != nil {
			return err
		}

		deleted = note
		unlinked = len(records)
		return nil
	})
	if err != nil {
		return err
	}

	s.emitAudit(ctx, "debit_note.deleted", deleted, map[string]any{
		"unlinked_task_records": unlinked,
	})
	return nil
}

// loadSelection loads the selected records and verifies they all exist inside
// the requested job order and task type. Cross-scope ids never silently mix in.
func (s *Service) loadSelection(ctx context.Context, tx *gorm.DB, jobOrderID snowflake.ID, taskType taskrecorddomain.TaskType, ids []snowflake.ID) ([]*taskrecorddomain.TaskRecord, error) {
	records, err := s.taskRecords.FindByIDs(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if len(records) != len(ids) {
		return nil, domain.ErrTaskRecordMissing
	}
	for _, record := range records {
		if record.JobOrderID != jobOrderID {
			return nil, domain.ErrInvalidJobOrder
		}
		if record.TaskType != taskType {
			return nil, domain.ErrInvalidTaskType
		}
	}
	return records, nil
}

func partition(records []*taskrecorddomain.TaskRecord) (billed, unbilled []*taskrecorddomain.TaskRecord) {
	for _, record := range records {
		if record.Billed() {
			billed = append(billed, record)
		} else {
			unbilled = append(unbilled, record)
		}
	}
	return billed, unbilled
}

// resolveBilledNote handles the all-billed case. When the selection points at
// several different notes the legacy data is inconsistent; the lowest note id
// is returned and a warning logged instead of failing the whole operation.
func (s *Service) resolveBilledNote(ctx context.Context, tx *gorm.DB, jobOrderID snowflake.ID, taskType taskrecorddomain.TaskType, billed []*taskrecorddomain.TaskRecord) (*domain.DebitNote, error) {
	distinct := make(map[snowflake.ID]struct{}, 1)
	first := snowflake.ID(0)
	for _, record := range billed {
		noteID := *record.DebitNoteID
		distinct[noteID] = struct{}{}
		if first == 0 || noteID < first {
			first = noteID
		}
	}

	if len(distinct) > 1 {
		s.log.Warn("selected records are billed to different debit notes",
			zap.String("job_order_id", jobOrderID.String()),
			zap.String("task_type", string(taskType)),
			zap.Int("distinct_notes", len(distinct)),
			zap.String("resolved_note_id", first.String()),
		)
	}

	note, err := s.repo.FindByID(ctx, tx, jobOrderID, taskType, first)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, domain.ErrNotFound
	}
	return note, nil
}

// resolveTargetNote returns the note new details are appended to, creating a
// header when no existing note number resolves. Creation and the first detail
// commit together; a header never exists without its lines.
func (s *Service) resolveTargetNote(ctx context.Context, tx *gorm.DB, jobOrderID snowflake.ID, taskType taskrecorddomain.TaskType, existingNo string, customerID *snowflake.ID, currency, actor string) (*domain.DebitNote, bool, error) {
	if no := strings.TrimSpace(existingNo); no != "" {
		note, err := s.repo.FindByNo(ctx, tx, jobOrderID, taskType, no)
		if err != nil {
			return nil, false, err
		}
		if note != nil {
			return note, false, nil
		}
	}

	debitNoteNo, err := s.numbers.AllocateDocumentNumber(ctx, tx, jobOrderID, taskType)
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	note := domain.DebitNote{
		ID:          s.genID.Generate(),
		DebitNoteNo: debitNoteNo,
		JobOrderID:  jobOrderID,
		TaskType:    taskType,
		CustomerID:  customerID,
		Status:      domain.DebitNoteStatusOpen,
		Currency:    currency,
		Metadata:    datatypes.JSONMap{},
		CreatedBy:   actor,
		CreatedAt:   now,
		EditedBy:    actor,
		EditedAt:    now,
		EditVersion: 1,
	}
	if err := s.repo.Insert(ctx, tx, &note); err != nil {
		// Unique number index: a concurrent transaction took the same
		// allocated number. The caller retries with a fresh allocation.
		if db.IsDuplicateKeyErr(err) {
			return nil, false, domain.ErrVersionConflict
		}
		return nil, false, err
	}
	return &note, true, nil
}

func (s *Service) buildView(ctx context.Context, db *gorm.DB, note *domain.DebitNote) (domain.DebitNoteView, error) {
	details, err := s.repo.FindDetails(ctx, db, note.ID)
	if err != nil {
		return domain.DebitNoteView{}, err
	}
	return domain.DebitNoteView{
		DebitNote: *note,
		Details:   details,
	}, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, note *domain.DebitNote, extra map[string]any) {
	if s.auditSvc == nil || note == nil {
		return
	}
	metadata := map[string]any{
		"debit_note_no":   note.DebitNoteNo,
		"job_order_id":    note.JobOrderID.String(),
		"task_type":       string(note.TaskType),
		"total_after_tax": note.TotalAfterTax,
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	targetID := note.ID.String()
	_ = s.auditSvc.Record(ctx, action, "debit_note", &targetID, metadata)
}

func parseScope(jobOrderID, taskType string) (snowflake.ID, taskrecorddomain.TaskType, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(jobOrderID))
	if err != nil || id == 0 {
		return 0, "", domain.ErrInvalidJobOrder
	}
	tt := taskrecorddomain.TaskType(strings.ToUpper(strings.TrimSpace(taskType)))
	if !tt.Valid() {
		return 0, "", domain.ErrInvalidTaskType
	}
	return id, tt, nil
}

func parseSelection(raw []string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(raw))
	seen := make(map[snowflake.ID]struct{}, len(raw))
	for _, value := range raw {
		id, err := snowflake.ParseString(strings.TrimSpace(value))
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidID
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, domain.ErrEmptySelection
	}
	return ids, nil
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
