package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"studioflow/internal/dto"
	"studioflow/internal/service"
	"studioflow/pkg/response"
)

// GenerateHandler 课程实例生成 HTTP 处理器
type GenerateHandler struct {
	generatorSvc service.GeneratorService
}

// NewGenerateHandler 创建 GenerateHandler
func NewGenerateHandler(generatorSvc service.GeneratorService) *GenerateHandler {
	return &GenerateHandler{generatorSvc: generatorSvc}
}

// AdminGenerate 平台运维触发生成
// POST /api/admin/generate-classes
func (h *GenerateHandler) AdminGenerate(c *gin.Context) {
	var req dto.GenerateClassesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 12001, "参数校验失败")
		return
	}
	if req.StudioID == "" {
		response.BadRequest(c, 12001, service.ErrStudioIDRequired.Error())
		return
	}

	h.generate(c, req.StudioID, req.GetWeeksAhead())
}

// StudioGenerate 工作室所有者触发生成
// POST /api/studios/:studioId/generate-classes
func (h *GenerateHandler) StudioGenerate(c *gin.Context) {
	studioID, ok := MustGetParam(c, "studioId")
	if !ok {
		return
	}

	var req dto.GenerateClassesRequest
	if _, err := BindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, 12001, "参数校验失败")
		return
	}

	h.generate(c, studioID, req.GetWeeksAhead())
}

func (h *GenerateHandler) generate(c *gin.Context, studioID string, weeks int) {
	n, err := h.generatorSvc.Generate(c.Request.Context(), studioID, weeks)
	if err != nil {
		h.handleGenerateError(c, err)
		return
	}
	response.OK(c, dto.GenerateClassesResponse{Generated: n, StudioID: studioID})
}

func (h *GenerateHandler) handleGenerateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStudioIDRequired):
		response.BadRequest(c, 12001, err.Error())
	case errors.Is(err, service.ErrWeeksAheadTooLarge):
		response.BadRequest(c, 12002, err.Error())
	case errors.Is(err, service.ErrStudioNotFound):
		response.NotFound(c, 12003, err.Error())
	default:
		response.InternalError(c)
	}
}
