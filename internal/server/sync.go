package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/casebridge/internal/bulksync"
)

// BulkSync ingests a whole batch from the system of record. The response is
// always 200: per-item failures are reported in the result body, never as a
// batch-level error.
func (s *Server) BulkSync(c *gin.Context) {
	var batch bulksync.Batch
	if err := c.ShouldBindJSON(&batch); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result := s.orchestrator.Run(c.Request.Context(), batch)
	c.JSON(http.StatusOK, result)
}
