package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ListAuditLogs returns the audit trail for one billing document or task
// record, newest first.
func (s *Server) ListAuditLogs(c *gin.Context) {
	targetType := strings.TrimSpace(c.Param("targetType"))
	targetID := strings.TrimSpace(c.Param("targetId"))

	entries, err := s.auditSvc.ListByTarget(c.Request.Context(), targetType, targetID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, entries)
}
