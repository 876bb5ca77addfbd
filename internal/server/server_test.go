package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/portflow/portflow/internal/config"
	debitnotedomain "github.com/portflow/portflow/internal/debitnote/domain"
	debitnoterepo "github.com/portflow/portflow/internal/debitnote/repository"
	debitnotesvc "github.com/portflow/portflow/internal/debitnote/service"
	docnumberdomain "github.com/portflow/portflow/internal/docnumber/domain"
	docnumbersvc "github.com/portflow/portflow/internal/docnumber/service"
	"github.com/portflow/portflow/internal/observability"
	taskrecorddomain "github.com/portflow/portflow/internal/taskrecord/domain"
	taskrecordrepo "github.com/portflow/portflow/internal/taskrecord/repository"
	taskrecordsvc "github.com/portflow/portflow/internal/taskrecord/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type envelope struct {
	Result  int             `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*gorm.DB, *gin.Engine, *snowflake.Node) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&taskrecorddomain.TaskRecord{},
		&debitnotedomain.DebitNote{},
		&debitnotedomain.DebitNoteDetail{},
		&docnumberdomain.DocumentSequence{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	taskRecordRepo := taskrecordrepo.Provide()
	taskRecordSvc := taskrecordsvc.New(taskrecordsvc.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  taskRecordRepo,
	})
	debitNoteSvc := debitnotesvc.New(debitnotesvc.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Repo:        debitnoterepo.Provide(),
		TaskRecords: taskRecordRepo,
		Numbers:     docnumbersvc.New(docnumbersvc.Params{Log: log}),
	})

	engine := NewEngine(observability.Config{})
	srv := NewServer(ServerParams{
		Gin:           engine,
		Cfg:           config.Config{},
		DB:            db,
		TaskRecordSvc: taskRecordSvc,
		DebitNoteSvc:  debitNoteSvc,
	})
	srv.RegisterBillingRoutes()

	return db, engine, node
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "ops-clerk")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestBillingRoutes_EndToEnd(t *testing.T) {
	_, engine, node := newTestServer(t)
	jobOrderID := node.Generate().String()
	base := fmt.Sprintf("/v1/jobOrders/%s/taskTypes/LAUNCH_SERVICE", jobOrderID)

	// Create two task records.
	var recordIDs []string
	for i := 0; i < 2; i++ {
		w, resp := doJSON(t, engine, http.MethodPost, base+"/taskRecords", map[string]any{
			"description":   "launch run",
			"charge_id":     node.Generate().String(),
			"gl_account_id": node.Generate().String(),
			"quantity":      1,
			"unit_price":    1000,
			"tax_amount":    100,
		})
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, 1, resp.Result)

		var record taskrecorddomain.TaskRecord
		require.NoError(t, json.Unmarshal(resp.Data, &record))
		assert.Equal(t, "ops-clerk", record.CreatedBy)
		recordIDs = append(recordIDs, record.ID.String())
	}

	// Generate a debit note covering both.
	w, resp := doJSON(t, engine, http.MethodPost, base+"/debitNotes", map[string]any{
		"task_record_ids": recordIDs,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, resp.Result)

	var view debitnotedomain.DebitNoteView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, "DN-LCH-000001", view.DebitNoteNo)
	assert.Len(t, view.Details, 2)
	assert.Equal(t, int64(2200), view.TotalAfterTax)

	// Fetch it back.
	w, resp = doJSON(t, engine, http.MethodGet, base+"/debitNotes/"+view.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, resp.Result)

	// Deleting a billed record is rejected.
	w, resp = doJSON(t, engine, http.MethodDelete, base+"/taskRecords/"+recordIDs[0], nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, resp.Result)
	assert.Equal(t, "record_billed", resp.Message)

	// Delete the note, which releases the records.
	w, resp = doJSON(t, engine, http.MethodDelete, base+"/debitNotes/"+view.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, resp.Result)

	w, resp = doJSON(t, engine, http.MethodGet, base+"/debitNotes/"+view.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, resp.Result)
	assert.Equal(t, "debit_note_not_found", resp.Message)
}

func TestGenerateDebitNote_AcceptsLegacyBodyKeys(t *testing.T) {
	db, engine, node := newTestServer(t)
	jobOrderID := node.Generate().String()
	base := fmt.Sprintf("/v1/jobOrders/%s/taskTypes/LAUNCH_SERVICE", jobOrderID)

	var recordIDs []string
	for i := 0; i < 2; i++ {
		w, resp := doJSON(t, engine, http.MethodPost, base+"/taskRecords", map[string]any{
			"description":   "launch run",
			"charge_id":     node.Generate().String(),
			"gl_account_id": node.Generate().String(),
			"quantity":      1,
			"unit_price":    500,
			"tax_amount":    50,
		})
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, 1, resp.Result)

		var record taskrecorddomain.TaskRecord
		require.NoError(t, json.Unmarshal(resp.Data, &record))
		recordIDs = append(recordIDs, record.ID.String())
	}

	// camelCase selection key from pre-redesign clients.
	w, resp := doJSON(t, engine, http.MethodPost, base+"/debitNotes", map[string]any{
		"taskRecordIds": recordIDs[:1],
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, resp.Result)

	var view debitnotedomain.DebitNoteView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	require.Len(t, view.Details, 1)

	// camelCase existing-note key appends instead of creating a second note.
	w, resp = doJSON(t, engine, http.MethodPost, base+"/debitNotes", map[string]any{
		"taskRecordIds": recordIDs[1:],
		"debitNoteNo":   view.DebitNoteNo,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, resp.Result)

	var appended debitnotedomain.DebitNoteView
	require.NoError(t, json.Unmarshal(resp.Data, &appended))
	assert.Equal(t, view.ID, appended.ID)
	assert.Len(t, appended.Details, 2)

	var count int64
	require.NoError(t, db.Model(&debitnotedomain.DebitNote{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestBillingRoutes_ErrorEnvelope(t *testing.T) {
	_, engine, node := newTestServer(t)
	jobOrderID := node.Generate().String()

	w, resp := doJSON(t, engine, http.MethodPost,
		"/v1/jobOrders/"+jobOrderID+"/taskTypes/PARTY_PLANNING/debitNotes",
		map[string]any{"task_record_ids": []string{node.Generate().String()}},
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, resp.Result)
	assert.Equal(t, "invalid_task_type", resp.Message)

	w, resp = doJSON(t, engine, http.MethodPost,
		"/v1/jobOrders/"+jobOrderID+"/taskTypes/TRANSPORT/debitNotes",
		map[string]any{"task_record_ids": []string{}},
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "empty_selection", resp.Message)

	w, resp = doJSON(t, engine, http.MethodPost,
		"/v1/jobOrders/"+jobOrderID+"/taskTypes/TRANSPORT/debitNotes",
		map[string]any{"task_record_ids": []string{node.Generate().String()}},
	)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "task_record_not_found", resp.Message)
}
