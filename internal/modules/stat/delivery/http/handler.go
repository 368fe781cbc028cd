package http

import (
	"net/http"

	statService "anoa.com/homeworktracker/internal/modules/stat/service"
	"anoa.com/homeworktracker/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type StatHandler struct {
	statService statService.StatService
	logger      *logrus.Logger
}

func NewStatHandler(statService statService.StatService, logger *logrus.Logger) *StatHandler {
	return &StatHandler{
		statService: statService,
		logger:      logger,
	}
}

// GetSummary feeds both dashboard charts. An empty incomplete_by_subject
// means there is nothing to draw.
func (h *StatHandler) GetSummary(c *gin.Context) {
	summary, err := h.statService.GetSummary(c.Request.Context())
	if err != nil {
		response.ResponseError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
