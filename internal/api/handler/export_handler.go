package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"studioflow/internal/service"
	"studioflow/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportSchedule 导出课表
// GET /api/studios/:studioId/schedule/export?from=&to=
func (h *ExportHandler) ExportSchedule(c *gin.Context) {
	studioID, ok := MustGetParam(c, "studioId")
	if !ok {
		return
	}
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		response.BadRequest(c, 17001, "from、to 不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportSchedule(c.Request.Context(), studioID, from, to)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDate), errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 17001, err.Error())
	case errors.Is(err, service.ErrStudioNotFound):
		response.NotFound(c, 17002, err.Error())
	case errors.Is(err, service.ErrExportNoClasses):
		response.NotFound(c, 17003, err.Error())
	default:
		response.InternalError(c)
	}
}
