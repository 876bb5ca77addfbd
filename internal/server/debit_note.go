package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	debitnotedomain "github.com/portflow/portflow/internal/debitnote/domain"
)

type generateDebitNoteRequest struct {
	TaskRecordIDs       []string `json:"task_record_ids"`
	ExistingDebitNoteNo string   `json:"existing_debit_note_no"`
	CustomerID          string   `json:"customer_id"`
	Currency            string   `json:"currency"`

	// Legacy clients send camelCase keys for the selection and the existing
	// note number. Both spellings are accepted; snake_case wins when present.
	LegacyTaskRecordIDs []string `json:"taskRecordIds"`
	LegacyDebitNoteNo   string   `json:"debitNoteNo"`
}

func (r *generateDebitNoteRequest) taskRecordIDs() []string {
	if len(r.TaskRecordIDs) > 0 {
		return r.TaskRecordIDs
	}
	return r.LegacyTaskRecordIDs
}

func (r *generateDebitNoteRequest) existingDebitNoteNo() string {
	if no := strings.TrimSpace(r.ExistingDebitNoteNo); no != "" {
		return no
	}
	return strings.TrimSpace(r.LegacyDebitNoteNo)
}

func (s *Server) GenerateDebitNote(c *gin.Context) {
	var req generateDebitNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.debitNoteSvc.GenerateOrAttach(c.Request.Context(), debitnotedomain.GenerateDebitNoteRequest{
		JobOrderID:          c.Param("jobOrderId"),
		TaskType:            c.Param("taskType"),
		TaskRecordIDs:       req.taskRecordIDs(),
		ExistingDebitNoteNo: req.existingDebitNoteNo(),
		CustomerID:          strings.TrimSpace(req.CustomerID),
		Currency:            strings.TrimSpace(req.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordDebitNoteGenerated(c.Request.Context(), string(resp.TaskType), int64(len(resp.Details)))
	}

	respondOK(c, resp)
}

func (s *Server) GetDebitNote(c *gin.Context) {
	resp, err := s.debitNoteSvc.Get(c.Request.Context(), debitnotedomain.GetDebitNoteRequest{
		JobOrderID:  c.Param("jobOrderId"),
		TaskType:    c.Param("taskType"),
		DebitNoteID: c.Param("debitNoteId"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) DeleteDebitNote(c *gin.Context) {
	err := s.debitNoteSvc.Delete(c.Request.Context(), debitnotedomain.DeleteDebitNoteRequest{
		JobOrderID:  c.Param("jobOrderId"),
		TaskType:    c.Param("taskType"),
		DebitNoteID: c.Param("debitNoteId"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordDebitNoteDeleted(c.Request.Context(), c.Param("taskType"))
	}

	respondOK(c, nil)
}
