package transport

import (
	"net/http"

	"github.com/ds124wfegd/busbooker/internal/service"

	"github.com/gin-gonic/gin"
)

type HomeHandler struct {
	reportService service.ReportService
}

func NewHomeHandler(reportService service.ReportService) *HomeHandler {
	return &HomeHandler{reportService: reportService}
}

// GetHomeData returns the slot catalog grouped by category
func (h *HomeHandler) GetHomeData(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"slotsData": h.reportService.SlotsData()})
}

func (h *HomeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
