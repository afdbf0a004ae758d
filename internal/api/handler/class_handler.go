package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"studioflow/internal/dto"
	"studioflow/internal/service"
	"studioflow/pkg/response"
)

// ClassHandler 课程实例 HTTP 处理器（修改、单次课、恢复、课表）
type ClassHandler struct {
	classSvc service.ClassService
}

// NewClassHandler 创建 ClassHandler
func NewClassHandler(classSvc service.ClassService) *ClassHandler {
	return &ClassHandler{classSvc: classSvc}
}

// Update 稀疏更新课程实例
// PUT /api/studios/:studioId/classes/:classId
func (h *ClassHandler) Update(c *gin.Context) {
	studioID, classID, ok := classParams(c)
	if !ok {
		return
	}

	var req dto.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败")
		return
	}

	class, err := h.classSvc.Update(c.Request.Context(), studioID, classID, &req)
	if err != nil {
		h.handleClassError(c, err)
		return
	}
	response.OK(c, class)
}

// Create 创建单次课程
// POST /api/studios/:studioId/classes
func (h *ClassHandler) Create(c *gin.Context) {
	studioID, ok := MustGetParam(c, "studioId")
	if !ok {
		return
	}

	var req dto.CreateOneOffClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13001, "参数校验失败: name、date、start_time、duration_min 为必填项")
		return
	}

	class, err := h.classSvc.CreateOneOff(c.Request.Context(), studioID, &req)
	if err != nil {
		h.handleClassError(c, err)
		return
	}
	response.Created(c, class)
}

// Restore 恢复已取消的课程
// POST /api/studios/:studioId/classes/:classId/restore
func (h *ClassHandler) Restore(c *gin.Context) {
	studioID, classID, ok := classParams(c)
	if !ok {
		return
	}

	class, err := h.classSvc.Restore(c.Request.Context(), studioID, classID)
	if err != nil {
		h.handleClassError(c, err)
		return
	}
	response.OK(c, class)
}

// Get 课程详情
// GET /api/studios/:studioId/classes/:classId
func (h *ClassHandler) Get(c *gin.Context) {
	studioID, classID, ok := classParams(c)
	if !ok {
		return
	}

	class, err := h.classSvc.Get(c.Request.Context(), studioID, classID)
	if err != nil {
		h.handleClassError(c, err)
		return
	}
	response.OK(c, class)
}

// Schedule 日期区间课表
// GET /api/studios/:studioId/schedule?from=&to=&teacher=&template=&day=
func (h *ClassHandler) Schedule(c *gin.Context) {
	studioID, ok := MustGetParam(c, "studioId")
	if !ok {
		return
	}

	var q dto.ScheduleQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 13001, "参数校验失败: from、to 须为 YYYY-MM-DD")
		return
	}

	items, err := h.classSvc.ListSchedule(c.Request.Context(), studioID, &q)
	if err != nil {
		h.handleClassError(c, err)
		return
	}
	response.OK(c, items)
}

func (h *ClassHandler) handleClassError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 13002, err.Error())
	case errors.Is(err, service.ErrStudioNotFound):
		response.NotFound(c, 13003, err.Error())
	case errors.Is(err, service.ErrNoValidFields),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidStartTime),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidDateRange),
		errors.Is(err, service.ErrInvalidDayFilter):
		response.BadRequest(c, 13001, err.Error())
	case errors.Is(err, service.ErrClassNotCancelled):
		response.BadRequest(c, 13004, err.Error())
	case errors.Is(err, service.ErrClassConflict):
		response.Conflict(c, 13005, err.Error())
	default:
		response.InternalError(c)
	}
}

// classParams 读取 :studioId 与 :classId
func classParams(c *gin.Context) (string, string, bool) {
	studioID, ok := MustGetParam(c, "studioId")
	if !ok {
		return "", "", false
	}
	classID, ok := MustGetParam(c, "classId")
	if !ok {
		return "", "", false
	}
	return studioID, classID, true
}
