package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	taskrecorddomain "github.com/portflow/portflow/internal/taskrecord/domain"
	"github.com/portflow/portflow/pkg/db/pagination"
)

type taskRecordRequest struct {
	ServiceDate *time.Time `json:"service_date"`
	Description string     `json:"description"`
	ChargeID    string     `json:"charge_id"`
	GLAccountID string     `json:"gl_account_id"`
	Quantity    int64      `json:"quantity"`
	UnitPrice   int64      `json:"unit_price"`
	TaxID       string     `json:"tax_id"`
	TaxAmount   int64      `json:"tax_amount"`
	EditVersion int64      `json:"edit_version"`
}

func (s *Server) CreateTaskRecord(c *gin.Context) {
	var req taskRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.taskRecordSvc.Create(c.Request.Context(), taskrecorddomain.CreateTaskRecordRequest{
		JobOrderID:  c.Param("jobOrderId"),
		TaskType:    c.Param("taskType"),
		ServiceDate: req.ServiceDate,
		Description: strings.TrimSpace(req.Description),
		ChargeID:    strings.TrimSpace(req.ChargeID),
		GLAccountID: strings.TrimSpace(req.GLAccountID),
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		TaxID:       strings.TrimSpace(req.TaxID),
		TaxAmount:   req.TaxAmount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) GetTaskRecord(c *gin.Context) {
	resp, err := s.taskRecordSvc.Get(c.Request.Context(), taskrecorddomain.GetTaskRecordRequest{
		JobOrderID: c.Param("jobOrderId"),
		TaskType:   c.Param("taskType"),
		ID:         c.Param("taskRecordId"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) ListTaskRecords(c *gin.Context) {
	var query struct {
		pagination.Pagination
		DebitNoteID string `form:"debitNoteId"`
		Unbilled    bool   `form:"unbilled"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.taskRecordSvc.List(c.Request.Context(), taskrecorddomain.ListTaskRecordRequest{
		JobOrderID:  c.Param("jobOrderId"),
		TaskType:    c.Param("taskType"),
		DebitNoteID: strings.TrimSpace(query.DebitNoteID),
		Unbilled:    query.Unbilled,
		PageToken:   query.PageToken,
		PageSize:    int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) UpdateTaskRecord(c *gin.Context) {
	var req taskRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.taskRecordSvc.Update(c.Request.Context(), taskrecorddomain.UpdateTaskRecordRequest{
		JobOrderID:  c.Param("jobOrderId"),
		TaskType:    c.Param("taskType"),
		ID:          c.Param("taskRecordId"),
		EditVersion: req.EditVersion,
		ServiceDate: req.ServiceDate,
		Description: strings.TrimSpace(req.Description),
		ChargeID:    strings.TrimSpace(req.ChargeID),
		GLAccountID: strings.TrimSpace(req.GLAccountID),
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		TaxID:       strings.TrimSpace(req.TaxID),
		TaxAmount:   req.TaxAmount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) DeleteTaskRecord(c *gin.Context) {
	err := s.taskRecordSvc.Delete(c.Request.Context(), taskrecorddomain.DeleteTaskRecordRequest{
		JobOrderID: c.Param("jobOrderId"),
		TaskType:   c.Param("taskType"),
		ID:         c.Param("taskRecordId"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, nil)
}
