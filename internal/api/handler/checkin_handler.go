package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"studioflow/internal/dto"
	"studioflow/internal/service"
	"studioflow/pkg/response"
)

// CheckInHandler 签到 HTTP 处理器
type CheckInHandler struct {
	checkInSvc service.CheckInService
}

// NewCheckInHandler 创建 CheckInHandler
func NewCheckInHandler(checkInSvc service.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkInSvc: checkInSvc}
}

// Roster 签到名单
// GET /api/studios/:studioId/classes/:classId/roster
func (h *CheckInHandler) Roster(c *gin.Context) {
	studioID, classID, ok := classParams(c)
	if !ok {
		return
	}

	roster, err := h.checkInSvc.GetRoster(c.Request.Context(), studioID, classID)
	if err != nil {
		h.handleCheckInError(c, err)
		return
	}
	response.OK(c, roster)
}

// SaveAttendance 批量保存签到
// POST /api/studios/:studioId/classes/:classId/attendance
func (h *CheckInHandler) SaveAttendance(c *gin.Context) {
	studioID, classID, ok := classParams(c)
	if !ok {
		return
	}
	staffID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.SaveAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	result, err := h.checkInSvc.SaveAttendance(c.Request.Context(), studioID, classID, staffID, &req)
	if err != nil {
		h.handleCheckInError(c, err)
		return
	}
	response.OK(c, result)
}

// AddWalkIn 现场签到
// POST /api/studios/:studioId/classes/:classId/walk-ins
func (h *CheckInHandler) AddWalkIn(c *gin.Context) {
	studioID, classID, ok := classParams(c)
	if !ok {
		return
	}
	staffID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.WalkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败: email 格式无效")
		return
	}

	roster, err := h.checkInSvc.AddWalkIn(c.Request.Context(), studioID, classID, staffID, &req)
	if err != nil {
		h.handleCheckInError(c, err)
		return
	}
	response.OK(c, roster)
}

// Complete 结课
// POST /api/studios/:studioId/classes/:classId/complete
// 请求体可选，携带尚未保存的签到状态
func (h *CheckInHandler) Complete(c *gin.Context) {
	studioID, classID, ok := classParams(c)
	if !ok {
		return
	}
	staffID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req *dto.SaveAttendanceRequest
	body := &dto.SaveAttendanceRequest{}
	present, err := BindOptionalJSON(c, body)
	if err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}
	if present {
		req = body
	}

	result, err := h.checkInSvc.Complete(c.Request.Context(), studioID, classID, staffID, req)
	if err != nil {
		h.handleCheckInError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *CheckInHandler) handleCheckInError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 14002, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 14003, err.Error())
	case errors.Is(err, service.ErrNotOnRoster):
		response.BadRequest(c, 14004, err.Error())
	case errors.Is(err, service.ErrClassNotOpen):
		response.BadRequest(c, 14005, err.Error())
	case errors.Is(err, service.ErrClassAlreadyCompleted):
		response.BadRequest(c, 14006, err.Error())
	case errors.Is(err, service.ErrClassConflict):
		response.Conflict(c, 14007, err.Error())
	default:
		response.InternalError(c)
	}
}
