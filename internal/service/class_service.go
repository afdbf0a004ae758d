package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studioflow/internal/dto"
	"studioflow/internal/model"
	"studioflow/internal/repository"
	apperrors "studioflow/pkg/errors"
	"studioflow/pkg/push"
)

// ── 课表模块业务错误 ──

var (
	ErrClassNotFound     = errors.New("class not found")
	ErrNoValidFields     = errors.New("no valid fields to update")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidStartTime  = errors.New("invalid start_time, expected HH:MM or HH:MM:SS")
	ErrInvalidDate       = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidDateRange  = errors.New("from must not be after to")
	ErrInvalidDayFilter  = errors.New("invalid day filter, expected comma separated 0-6")
	ErrClassNotCancelled = errors.New("class is not cancelled")
	ErrClassConflict     = errors.New("class was modified concurrently, please retry")
)

var validClassStatuses = map[string]bool{
	model.ClassStatusScheduled:  true,
	model.ClassStatusInProgress: true,
	model.ClassStatusCompleted:  true,
	model.ClassStatusCancelled:  true,
}

// ClassService 课表业务接口
type ClassService interface {
	// Update 稀疏更新课程实例；取消与恢复会触发通知副作用
	Update(ctx context.Context, studioID, classID string, req *dto.UpdateClassRequest) (*dto.ClassResponse, error)
	// CreateOneOff 创建单次课程：不活跃的 once 模板 + 对应实例
	CreateOneOff(ctx context.Context, studioID string, req *dto.CreateOneOffClassRequest) (*dto.ClassResponse, error)
	// Restore 将已取消的实例恢复为 scheduled
	Restore(ctx context.Context, studioID, classID string) (*dto.ClassResponse, error)
	// ListSchedule 日期闭区间课表，附非取消预约数
	ListSchedule(ctx context.Context, studioID string, q *dto.ScheduleQuery) ([]dto.ScheduleItemResponse, error)
	Get(ctx context.Context, studioID, classID string) (*dto.ScheduleItemResponse, error)
}

type classService struct {
	repo     *repository.Repository
	notifier *classNotifier
	logger   *zap.Logger
}

// NewClassService 创建 ClassService 实例
func NewClassService(repo *repository.Repository, publisher push.Publisher, logger *zap.Logger) ClassService {
	return &classService{
		repo:     repo,
		notifier: newClassNotifier(publisher, logger),
		logger:   logger,
	}
}

// ═══════════════════════════════════════════════════════════
// Update — 稀疏更新
// ═══════════════════════════════════════════════════════════
//
// 状态迁移副作用：
//   - 任意状态 → cancelled：通知所有非取消预约持有人（class_cancelled）
//   - cancelled → scheduled：同 Restore（class_restored + 推送）
// 实例更新与通知写入在同一事务内完成，推送在提交后进行。

func (s *classService) Update(ctx context.Context, studioID, classID string, req *dto.UpdateClassRequest) (*dto.ClassResponse, error) {
	// 1. 请求校验
	if req.IsEmpty() {
		return nil, ErrNoValidFields
	}
	if req.Status != nil && !validClassStatuses[*req.Status] {
		return nil, ErrInvalidStatus
	}

	// 2. 查询实例
	inst, err := s.getInstance(ctx, studioID, classID)
	if err != nil {
		return nil, err
	}

	// 3. 构建更新字段
	fields := make(map[string]interface{})
	if req.TeacherID != nil {
		if *req.TeacherID == "" {
			fields["teacher_id"] = nil
		} else {
			fields["teacher_id"] = *req.TeacherID
		}
	}
	if req.MaxCapacity != nil {
		fields["max_capacity"] = *req.MaxCapacity
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if req.StartTime != nil {
		start, err := NormalizeClock(*req.StartTime)
		if err != nil {
			return nil, ErrInvalidStartTime
		}
		duration, err := durationBetween(inst.StartTime, inst.EndTime)
		if err != nil {
			return nil, ErrInvalidStartTime
		}
		end, _ := ComputeEndTime(start, duration)
		fields["start_time"] = start
		fields["end_time"] = end
	}
	prevStatus := inst.Status
	if req.Status != nil {
		fields["status"] = *req.Status
	}

	cancelling := req.Status != nil && *req.Status == model.ClassStatusCancelled && prevStatus != model.ClassStatusCancelled
	restoring := req.Status != nil && *req.Status == model.ClassStatusScheduled && prevStatus == model.ClassStatusCancelled

	// 4. 事务内更新 + 通知
	var pending []model.Notification
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.ClassInstance.Update(ctx, inst.ClassID, inst.Version, fields); err != nil {
			return err
		}
		applyFields(inst, fields)

		switch {
		case cancelling:
			_, err := s.notifier.recordCancelled(ctx, tx, inst)
			return err
		case restoring:
			items, err := s.notifier.recordRestored(ctx, tx, inst)
			pending = items
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.wrapUpdateError("更新课程实例失败", classID, err)
	}

	// 5. 恢复推送（尽力而为）
	if restoring {
		s.notifier.push(ctx, pending)
	}

	s.logger.Info("课程实例已更新",
		zap.String("class_id", classID),
		zap.String("prev_status", prevStatus),
		zap.String("status", inst.Status),
	)
	return toClassResponse(inst), nil
}

// ────────────────────── Restore ──────────────────────

func (s *classService) Restore(ctx context.Context, studioID, classID string) (*dto.ClassResponse, error) {
	inst, err := s.getInstance(ctx, studioID, classID)
	if err != nil {
		return nil, err
	}
	if inst.Status != model.ClassStatusCancelled {
		return nil, ErrClassNotCancelled
	}

	fields := map[string]interface{}{"status": model.ClassStatusScheduled}
	var pending []model.Notification
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.ClassInstance.Update(ctx, inst.ClassID, inst.Version, fields); err != nil {
			return err
		}
		applyFields(inst, fields)

		items, err := s.notifier.recordRestored(ctx, tx, inst)
		pending = items
		return err
	})
	if err != nil {
		return nil, s.wrapUpdateError("恢复课程实例失败", classID, err)
	}

	s.notifier.push(ctx, pending)

	s.logger.Info("课程实例已恢复", zap.String("class_id", classID), zap.Int("notified", len(pending)))
	return toClassResponse(inst), nil
}

// ────────────────────── CreateOneOff ──────────────────────

func (s *classService) CreateOneOff(ctx context.Context, studioID string, req *dto.CreateOneOffClassRequest) (*dto.ClassResponse, error) {
	// 1. 校验
	date, err := parseDate(req.Date)
	if err != nil || !IsValidDate(req.Date) {
		return nil, ErrInvalidDate
	}
	start, err := NormalizeClock(req.StartTime)
	if err != nil {
		return nil, ErrInvalidStartTime
	}
	end, _ := ComputeEndTime(start, req.DurationMin)

	if _, err := s.repo.Studio.GetByID(ctx, studioID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudioNotFound
		}
		s.logger.Error("查询工作室失败", zap.String("studio_id", studioID), zap.Error(err))
		return nil, err
	}

	feedEnabled := true
	if req.FeedEnabled != nil {
		feedEnabled = *req.FeedEnabled
	}
	teacherID := req.TeacherID
	if teacherID != nil && *teacherID == "" {
		teacherID = nil
	}
	dow := int(date.Weekday())

	tpl := &model.ClassTemplate{
		StudioID:    studioID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		TeacherID:   teacherID,
		DayOfWeek:   &dow,
		StartTime:   start,
		DurationMin: req.DurationMin,
		Capacity:    req.Capacity,
		Recurrence:  model.RecurrenceOnce,
		Active:      false,
	}
	inst := &model.ClassInstance{
		StudioID:    studioID,
		TeacherID:   teacherID,
		Date:        req.Date,
		StartTime:   start,
		EndTime:     end,
		MaxCapacity: req.Capacity,
		Status:      model.ClassStatusScheduled,
		FeedEnabled: feedEnabled,
		Notes:       req.Notes,
	}

	// 2. 模板与实例同事务创建
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.ClassTemplate.Create(ctx, tpl); err != nil {
			return err
		}
		inst.TemplateID = tpl.TemplateID
		return tx.ClassInstance.Create(ctx, inst)
	})
	if err != nil {
		s.logger.Error("创建单次课程失败", zap.String("studio_id", studioID), zap.Error(err))
		return nil, err
	}
	inst.Template = tpl

	s.logger.Info("单次课程已创建", zap.String("class_id", inst.ClassID), zap.String("date", inst.Date))
	return toClassResponse(inst), nil
}

// ────────────────────── ListSchedule ──────────────────────

func (s *classService) ListSchedule(ctx context.Context, studioID string, q *dto.ScheduleQuery) ([]dto.ScheduleItemResponse, error) {
	if !IsValidDate(q.From) || !IsValidDate(q.To) {
		return nil, ErrInvalidDate
	}
	if q.From > q.To {
		return nil, ErrInvalidDateRange
	}
	days, err := parseDayFilter(q.Day)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ClassInstance.ListSchedule(ctx, repository.ScheduleFilter{
		StudioID:   studioID,
		From:       q.From,
		To:         q.To,
		TeacherID:  q.Teacher,
		TemplateID: q.Template,
	})
	if err != nil {
		s.logger.Error("查询课表失败", zap.String("studio_id", studioID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ScheduleItemResponse, 0, len(rows))
	for i := range rows {
		// 星期过滤在取数后进行，按日期字符串重新计算 UTC 星期
		if days != nil {
			d, err := parseDate(rows[i].Date)
			if err != nil || !days[int(d.Weekday())] {
				continue
			}
		}
		result = append(result, dto.ScheduleItemResponse{
			ClassResponse: *toClassResponse(&rows[i].ClassInstance),
			BookingCount:  rows[i].BookingCount,
		})
	}
	return result, nil
}

// ────────────────────── Get ──────────────────────

func (s *classService) Get(ctx context.Context, studioID, classID string) (*dto.ScheduleItemResponse, error) {
	inst, err := s.getInstance(ctx, studioID, classID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.repo.Booking.ListByClass(ctx, classID)
	if err != nil {
		s.logger.Error("查询课程预约失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	count := 0
	for i := range bookings {
		if bookings[i].Status != model.BookingStatusCancelled {
			count++
		}
	}
	return &dto.ScheduleItemResponse{
		ClassResponse: *toClassResponse(inst),
		BookingCount:  count,
	}, nil
}

// ── 内部辅助方法 ──

func (s *classService) getInstance(ctx context.Context, studioID, classID string) (*model.ClassInstance, error) {
	inst, err := s.repo.ClassInstance.GetByStudio(ctx, studioID, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询课程实例失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	return inst, nil
}

func (s *classService) wrapUpdateError(msg, classID string, err error) error {
	if errors.Is(err, apperrors.ErrOptimisticLock) {
		return ErrClassConflict
	}
	s.logger.Error(msg, zap.String("class_id", classID), zap.Error(err))
	return err
}

// applyFields 将已持久化的字段同步到内存对象
func applyFields(inst *model.ClassInstance, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "teacher_id":
			inst.Teacher = nil
			if id, ok := v.(string); ok {
				inst.TeacherID = &id
			} else {
				inst.TeacherID = nil
			}
		case "max_capacity":
			c := v.(int)
			inst.MaxCapacity = &c
		case "notes":
			inst.Notes = v.(string)
		case "start_time":
			inst.StartTime = v.(string)
		case "end_time":
			inst.EndTime = v.(string)
		case "status":
			inst.Status = v.(string)
		case "feed_enabled":
			inst.FeedEnabled = v.(bool)
		}
	}
	inst.Version++
}

// parseDayFilter "1,3,5" → {1,3,5}；空字符串返回 nil（不过滤）
func parseDayFilter(raw string) (map[int]bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	days := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 0 || v > 6 {
			return nil, ErrInvalidDayFilter
		}
		days[v] = true
	}
	return days, nil
}

func toClassResponse(inst *model.ClassInstance) *dto.ClassResponse {
	resp := &dto.ClassResponse{
		ID:          inst.ClassID,
		TemplateID:  inst.TemplateID,
		StudioID:    inst.StudioID,
		TeacherID:   inst.TeacherID,
		Date:        inst.Date,
		StartTime:   inst.StartTime,
		EndTime:     inst.EndTime,
		MaxCapacity: inst.MaxCapacity,
		Status:      inst.Status,
		FeedEnabled: inst.FeedEnabled,
		Notes:       inst.Notes,
		Version:     inst.Version,
	}
	if inst.Template != nil {
		resp.Template = &dto.TemplateBrief{
			ID:          inst.Template.TemplateID,
			Name:        inst.Template.Name,
			Description: inst.Template.Description,
			Recurrence:  inst.Template.Recurrence,
			DurationMin: inst.Template.DurationMin,
			Active:      inst.Template.Active,
		}
	}
	if inst.Teacher != nil {
		resp.Teacher = &dto.UserBrief{
			ID:        inst.Teacher.UserID,
			Name:      inst.Teacher.Name,
			AvatarURL: inst.Teacher.AvatarURL,
		}
	}
	return resp
}
