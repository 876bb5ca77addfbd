package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/portflow/portflow/internal/debitnote/domain"
	debitnoterepo "github.com/portflow/portflow/internal/debitnote/repository"
	docnumberdomain "github.com/portflow/portflow/internal/docnumber/domain"
	docnumbersvc "github.com/portflow/portflow/internal/docnumber/service"
	taskrecorddomain "github.com/portflow/portflow/internal/taskrecord/domain"
	taskrecordrepo "github.com/portflow/portflow/internal/taskrecord/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, domain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&taskrecorddomain.TaskRecord{},
		&domain.DebitNote{},
		&domain.DebitNoteDetail{},
		&docnumberdomain.DocumentSequence{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        debitnoterepo.Provide(),
		TaskRecords: taskrecordrepo.Provide(),
		Numbers: docnumbersvc.New(docnumbersvc.Params{
			Log: zap.NewNop(),
		}),
	})

	return db, svc, node
}

func seedTaskRecord(t *testing.T, db *gorm.DB, node *snowflake.Node, jobOrderID snowflake.ID, taskType taskrecorddomain.TaskType, total, tax int64) taskrecorddomain.TaskRecord {
	t.Helper()

	now := time.Now().UTC()
	record := taskrecorddomain.TaskRecord{
		ID:            node.Generate(),
		JobOrderID:    jobOrderID,
		TaskType:      taskType,
		Description:   "launch boat hire",
		ChargeID:      node.Generate(),
		GLAccountID:   node.Generate(),
		Quantity:      1,
		UnitPrice:     total,
		TotalAmount:   total,
		TaxAmount:     tax,
		TotalAfterTax: total + tax,
		Metadata:      datatypes.JSONMap{},
		CreatedBy:     "tester",
		CreatedAt:     now,
		EditedBy:      "tester",
		EditedAt:      now,
		EditVersion:   1,
	}
	require.NoError(t, db.Create(&record).Error)
	return record
}

func reloadRecord(t *testing.T, db *gorm.DB, id snowflake.ID) taskrecorddomain.TaskRecord {
	t.Helper()

	var record taskrecorddomain.TaskRecord
	require.NoError(t, db.Where("id = ?", id).First(&record).Error)
	return record
}

func TestGenerateDebitNote_CreatesNoteAndLinksRecords(t *testing.T) {
	db, svc, node := newTestService(t)
	jobOrderID := node.Generate()
	taskType := taskrecorddomain.TaskTypeLaunchService

	r1 := seedTaskRecord(t, db, node, jobOrderID, taskType, 1000, 100)
	r2 := seedTaskRecord(t, db, node, jobOrderID, taskType, 2500, 250)
	r3 := seedTaskRecord(t, db, node, jobOrderID, taskType, 400, 0)

	view, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{r1.ID.String(), r2.ID.String(), r3.ID.String()},
	})
	require.NoError(t, err)

	assert.Equal(t, "DN-LCH-000001", view.DebitNoteNo)
	assert.Equal(t, domain.DebitNoteStatusOpen, view.Status)
	require.Len(t, view.Details, 3)
	assert.Equal(t, 1, view.Details[0].ItemNo)
	assert.Equal(t, 2, view.Details[1].ItemNo)
	assert.Equal(t, 3, view.Details[2].ItemNo)

	assert.Equal(t, int64(3900), view.TotalAmount)
	assert.Equal(t, int64(350), view.TaxAmount)
	assert.Equal(t, int64(4250), view.TotalAfterTax)

	for _, seeded := range []taskrecorddomain.TaskRecord{r1, r2, r3} {
		record := reloadRecord(t, db, seeded.ID)
		require.NotNil(t, record.DebitNoteID)
		assert.Equal(t, view.ID, *record.DebitNoteID)
		require.NotNil(t, record.DebitNoteNo)
		assert.Equal(t, view.DebitNoteNo, *record.DebitNoteNo)
		assert.Equal(t, seeded.EditVersion+1, record.EditVersion)
	}
}

func TestGenerateDebitNote_NumbersUniqueAcrossJobOrders(t *testing.T) {
	db, svc, node := newTestService(t)
	taskType := taskrecorddomain.TaskTypeLaunchService
	jobA := node.Generate()
	jobB := node.Generate()

	recordA := seedTaskRecord(t, db, node, jobA, taskType, 1000, 100)
	recordB := seedTaskRecord(t, db, node, jobB, taskType, 500, 50)

	viewA, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobA.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{recordA.ID.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, "DN-LCH-000001", viewA.DebitNoteNo)

	// The same task type on a second job order must bill successfully and
	// receive a fresh number: debit_note_no is unique system-wide.
	viewB, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobB.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{recordB.ID.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, "DN-LCH-000002", viewB.DebitNoteNo)
	assert.NotEqual(t, viewA.ID, viewB.ID)

	var count int64
	require.NoError(t, db.Model(&domain.DebitNote{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestGenerateDebitNote_HeaderTotalsAlwaysMatchDetails(t *testing.T) {
	db, svc, node := newTestService(t)
	jobOrderID := node.Generate()
	taskType := taskrecorddomain.TaskTypeFreshWater

	r1 := seedTaskRecord(t, db, node, jobOrderID, taskType, 730, 73)
	r2 := seedTaskRecord(t, db, node, jobOrderID, taskType, 111, 0)

	view, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{r1.ID.String(), r2.ID.String()},
	})
	require.NoError(t, err)

	var sumTotal, sumTax, sumAfterTax int64
	for _, detail := range view.Details {
		sumTotal += detail.TotalAmount
		sumTax += detail.TaxAmount
		sumAfterTax += detail.TotalAfterTax
	}
	assert.Equal(t, sumTotal, view.TotalAmount)
	assert.Equal(t, sumTax, view.TaxAmount)
	assert.Equal(t, sumAfterTax, view.TotalAfterTax)
}

func TestGenerateDebitNote_IdempotentWhenAllBilled(t *testing.T) {
	db, svc, node := newTestService(t)
	jobOrderID := node.Generate()
	taskType := taskrecorddomain.TaskTypeCrewChange

	r1 := seedTaskRecord(t, db, node, jobOrderID, taskType, 500, 50)
	r2 := seedTaskRecord(t, db, node, jobOrderID, taskType, 700, 70)
	selection := []string{r1.ID.String(), r2.ID.String()}

	first, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: selection,
	})
	require.NoError(t, err)

	second, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: selection,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.DebitNoteNo, second.DebitNoteNo)
	assert.Len(t, second.Details, 2)
	assert.Equal(t, first.TotalAfterTax, second.TotalAfterTax)

	var noteCount int64
	require.NoError(t, db.Model(&domain.DebitNote{}).Count(&noteCount).Error)
	assert.Equal(t, int64(1), noteCount)

	var detailCount int64
	require.NoError(t, db.Model(&domain.DebitNoteDetail{}).Count(&detailCount).Error)
	assert.Equal(t, int64(2), detailCount)
}

func TestGenerateDebitNote_AppendsUnbilledToExistingNote(t *testing.T) {
	db, svc, node := newTestService(t)
	jobOrderID := node.Generate()
	taskType := taskrecorddomain.TaskTypeEquipmentUsed

	r1 := seedTaskRecord(t, db, node, jobOrderID, taskType, 100, 10)
	first, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{r1.ID.String()},
	})
	require.NoError(t, err)

	r2 := seedTaskRecord(t, db, node, jobOrderID, taskType, 200, 20)
	r3 := seedTaskRecord(t, db, node, jobOrderID, taskType, 300, 30)

	// Mixed selection: r1 already billed, the note it points at absorbs the rest.
	second, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{r1.ID.String(), r2.ID.String(), r3.ID.String()},
		ExistingDebitNoteNo: first.DebitNoteNo,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.Len(t, second.Details, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{second.Details[0].ItemNo, second.Details[1].ItemNo, second.Details[2].ItemNo})
	assert.Equal(t, int64(600), second.TotalAmount)
	assert.Equal(t, int64(60), second.TaxAmount)
	assert.Equal(t, int64(660), second.TotalAfterTax)

	for _, id := range []snowflake.ID{r2.ID, r3.ID} {
		record := reloadRecord(t, db, id)
		require.NotNil(t, record.DebitNoteID)
		assert.Equal(t, first.ID, *record.DebitNoteID)
	}
}

func TestGenerateDebitNote_UnknownExistingNoCreatesNewNote(t *testing.T) {
	db, svc, node := newTestService(t)
	jobOrderID := node.Generate()
	taskType := taskrecorddomain.TaskTypeTransport

	r1 := seedTaskRecord(t, db, node, jobOrderID, taskType, 150, 0)

	view, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:          jobOrderID.String(),
		TaskType:            string(taskType),
		TaskRecordIDs:       []string{r1.ID.String()},
		ExistingDebitNoteNo: "DN-TRN-999999",
	})
	require.NoError(t, err)
	assert.Equal(t, "DN-TRN-000001", view.DebitNoteNo)
}

func TestGenerateDebitNote_SelectionValidation(t *testing.T) {
	db, svc, node := newTestService(t)
	jobOrderID := node.Generate()
	taskType := taskrecorddomain.TaskTypeShipChandling

	r1 := seedTaskRecord(t, db, node, jobOrderID, taskType, 100, 0)
	otherJob := seedTaskRecord(t, db, node, node.Generate(), taskType, 100, 0)
	otherType := seedTaskRecord(t, db, node, jobOrderID, taskrecorddomain.TaskTypeTransport, 100, 0)

	cases := []struct {
		name      string
		selection []string
		wantErr   error
	}{
		{
			name:    "empty selection",
			wantErr: domain.ErrEmptySelection,
		},
		{
			name:      "unknown id",
			selection: []string{r1.ID.String(), node.Generate().String()},
			wantErr:   domain.ErrTaskRecordMissing,
		},
		{
			name:      "record from another job order",
			selection: []string{r1.ID.String(), otherJob.ID.String()},
			wantErr:   domain.ErrInvalidJobOrder,
		},
		{
			name:      "record of another task type",
			selection: []string{r1.ID.String(), otherType.ID.String()},
			wantErr:   domain.ErrInvalidTaskType,
		},
		{
			name:      "malformed id",
			selection: []string{"not-a-number"},
			wantErr:   domain.ErrInvalidID,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
				JobOrderID:    jobOrderID.String(),
				TaskType:      string(taskType),
				TaskRecordIDs: tc.selection,
			})
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	// Failed selections never leave a note behind.
	var noteCount int64
	require.NoError(t, db.Model(&domain.DebitNote{}).Count(&noteCount).Error)
	assert.Equal(t, int64(0), noteCount)
}

func TestGenerateDebitNote_BilledToDifferentNotesReturnsFirst(t *testing.T) {
	db, svc, node := newTestService(t)
	jobOrderID := node.Generate()
	taskType := taskrecorddomain.TaskTypeWasteDisposal

	r1 := seedTaskRecord(t, db, node, jobOrderID, taskType, 100, 0)
	r2 := seedTaskRecord(t, db, node, jobOrderID, taskType, 200, 0)

	first, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{r1.ID.String()},
	})
	require.NoError(t, err)

	_, err = svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{r2.ID.String()},
	})
	require.NoError(t, err)

	// Legacy data shape: one selection spanning two notes resolves to the
	// lowest note id instead of failing.
	view, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{r1.ID.String(), r2.ID.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, view.ID)

	var noteCount int64
	require.NoError(t, db.Model(&domain.DebitNote{}).Count(&noteCount).Error)
	assert.Equal(t, int64(2), noteCount)
}

func TestGenerateDebitNote_RollsBackOnDetailFailure(t *testing.T) {
	db, svc, node := newTestService(t)
	jobOrderID := node.Generate()
	taskType := taskrecorddomain.TaskTypeCustomsClearance

	r1 := seedTaskRecord(t, db, node, jobOrderID, taskType, 100, 0)
	r2 := seedTaskRecord(t, db, node, jobOrderID, taskType, 200, 0)

	// A stray detail already claims r2. The unique source index rejects the
	// second claim mid-transaction and everything must roll back.
	stray := domain.DebitNoteDetail{
		ID:                 node.Generate(),
		DebitNoteID:        node.Generate(),
		ItemNo:             1,
		SourceTaskRecordID: r2.ID,
		ChargeID:           r2.ChargeID,
		GLAccountID:        r2.GLAccountID,
		Quantity:           1,
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, db.Create(&stray).Error)

	_, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{r1.ID.String(), r2.ID.String()},
	})
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	record := reloadRecord(t, db, r1.ID)
	assert.Nil(t, record.DebitNoteID)
	assert.Nil(t, record.DebitNoteNo)
	assert.Equal(t, r1.EditVersion, record.EditVersion)

	var noteCount int64
	require.NoError(t, db.Model(&domain.DebitNote{}).Count(&noteCount).Error)
	assert.Equal(t, int64(0), noteCount)
}

func TestGetDebitNote(t *testing.T) {
	db, svc, node := newTestService(t)
	jobOrderID := node.Generate()
	taskType := taskrecorddomain.TaskTypeMedicalAssistance

	r1 := seedTaskRecord(t, db, node, jobOrderID, taskType, 900, 90)
	created, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{r1.ID.String()},
	})
	require.NoError(t, err)

	view, err := svc.Get(context.Background(), domain.GetDebitNoteRequest{
		JobOrderID:  jobOrderID.String(),
		TaskType:    string(taskType),
		DebitNoteID: created.ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, created.DebitNoteNo, view.DebitNoteNo)
	assert.Len(t, view.Details, 1)

	_, err = svc.Get(context.Background(), domain.GetDebitNoteRequest{
		JobOrderID:  jobOrderID.String(),
		TaskType:    string(taskType),
		DebitNoteID: node.Generate().String(),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A note is invisible outside its job order scope.
	_, err = svc.Get(context.Background(), domain.GetDebitNoteRequest{
		JobOrderID:  node.Generate().String(),
		TaskType:    string(taskType),
		DebitNoteID: created.ID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteDebitNote_UnlinksAllRecords(t *testing.T) {
	db, svc, node := newTestService(t)
	jobOrderID := node.Generate()
	taskType := taskrecorddomain.TaskTypeTechnicianSurveyor

	r1 := seedTaskRecord(t, db, node, jobOrderID, taskType, 100, 10)
	r2 := seedTaskRecord(t, db, node, jobOrderID, taskType, 200, 20)

	view, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{r1.ID.String(), r2.ID.String()},
	})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), domain.DeleteDebitNoteRequest{
		JobOrderID:  jobOrderID.String(),
		TaskType:    string(taskType),
		DebitNoteID: view.ID.String(),
	})
	require.NoError(t, err)

	for _, id := range []snowflake.ID{r1.ID, r2.ID} {
		record := reloadRecord(t, db, id)
		assert.Nil(t, record.DebitNoteID)
		assert.Nil(t, record.DebitNoteNo)
	}

	var noteCount, detailCount int64
	require.NoError(t, db.Model(&domain.DebitNote{}).Count(&noteCount).Error)
	require.NoError(t, db.Model(&domain.DebitNoteDetail{}).Count(&detailCount).Error)
	assert.Equal(t, int64(0), noteCount)
	assert.Equal(t, int64(0), detailCount)

	err = svc.Delete(context.Background(), domain.DeleteDebitNoteRequest{
		JobOrderID:  jobOrderID.String(),
		TaskType:    string(taskType),
		DebitNoteID: view.ID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteThenRegenerateUsesFreshNumber(t *testing.T) {
	db, svc, node := newTestService(t)
	jobOrderID := node.Generate()
	taskType := taskrecorddomain.TaskTypeLaunchService

	r1 := seedTaskRecord(t, db, node, jobOrderID, taskType, 100, 0)

	first, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{r1.ID.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, "DN-LCH-000001", first.DebitNoteNo)

	require.NoError(t, svc.Delete(context.Background(), domain.DeleteDebitNoteRequest{
		JobOrderID:  jobOrderID.String(),
		TaskType:    string(taskType),
		DebitNoteID: first.ID.String(),
	}))

	second, err := svc.GenerateOrAttach(context.Background(), domain.GenerateDebitNoteRequest{
		JobOrderID:    jobOrderID.String(),
		TaskType:      string(taskType),
		TaskRecordIDs: []string{r1.ID.String()},
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	// Numbers are never reused, even after the note that held one is gone.
	assert.Equal(t, "DN-LCH-000002", second.DebitNoteNo)
}
