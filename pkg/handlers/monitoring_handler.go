package handlers

import (
	"net/http"
	"strconv"

	"wage-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// MonitoringHandler はモニタリング関連の操作のハンドラです。
type MonitoringHandler struct {
	Service *services.MonitoringService
}

// NewMonitoringHandler は新しいMonitoringHandlerを生成します。
func NewMonitoringHandler(service *services.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{
		Service: service,
	}
}

// GetLogs は集計されたログデータを返します。period (1h/24h/7d) または hours で期間を指定します。
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	hours := 24
	switch c.DefaultQuery("period", "24h") {
	case "1h":
		hours = 1
	case "7d":
		hours = 24 * 7
	}
	if hoursStr := c.Query("hours"); hoursStr != "" {
		if n, err := strconv.Atoi(hoursStr); err == nil && n > 0 && n <= 24*30 {
			hours = n
		}
	}

	c.JSON(http.StatusOK, h.Service.GetDashboardData(hours))
}
