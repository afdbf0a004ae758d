package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studioflow/internal/dto"
	"studioflow/internal/model"
	"studioflow/internal/repository"
	apperrors "studioflow/pkg/errors"
)

// ── 签到模块业务错误 ──

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrClassNotOpen          = errors.New("class is cancelled or already completed")
	ErrClassAlreadyCompleted = errors.New("class is already completed")
)

// CheckInService 签到业务接口
type CheckInService interface {
	GetRoster(ctx context.Context, studioID, classID string) (*dto.RosterResponse, error)
	// SaveAttendance 将请求中的签到状态应用到名单并持久化发生变化的条目
	// 部分失败时返回 Failed 列表，调用方据此判断哪些条目仍未保存
	SaveAttendance(ctx context.Context, studioID, classID, staffID string, req *dto.SaveAttendanceRequest) (*dto.SaveAttendanceResponse, error)
	// AddWalkIn 按邮箱添加现场签到者
	AddWalkIn(ctx context.Context, studioID, classID, staffID string, req *dto.WalkInRequest) (*dto.RosterResponse, error)
	// Complete 结课：保存待提交签到 → 未签到预约置为 no_show → 实例置为 completed
	// req 可为 nil
	Complete(ctx context.Context, studioID, classID, staffID string, req *dto.SaveAttendanceRequest) (*dto.CompleteClassResponse, error)
}

type checkInService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewCheckInService 创建 CheckInService 实例
func NewCheckInService(repo *repository.Repository, logger *zap.Logger) CheckInService {
	return &checkInService{repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── GetRoster ──────────────────────

func (s *checkInService) GetRoster(ctx context.Context, studioID, classID string) (*dto.RosterResponse, error) {
	inst, err := s.getInstance(ctx, s.repo, studioID, classID)
	if err != nil {
		return nil, err
	}
	roster, err := s.loadRoster(ctx, s.repo, classID)
	if err != nil {
		return nil, err
	}
	return toRosterResponse(inst, roster), nil
}

// ────────────────────── SaveAttendance ──────────────────────

func (s *checkInService) SaveAttendance(ctx context.Context, studioID, classID, staffID string, req *dto.SaveAttendanceRequest) (*dto.SaveAttendanceResponse, error) {
	// 1. 实例必须处于可签到状态
	inst, err := s.getOpenInstance(ctx, s.repo, studioID, classID)
	if err != nil {
		return nil, err
	}

	// 2. 加载名单并应用请求（全部校验通过后才写入）
	roster, err := s.loadRoster(ctx, s.repo, classID)
	if err != nil {
		return nil, err
	}
	if err := applyEntries(roster, req); err != nil {
		return nil, err
	}

	// 3. 持久化 dirty 条目，逐条容错
	persisted, failed, err := s.flush(ctx, s.repo, inst, roster, staffID, false)
	if err != nil {
		return nil, err
	}

	return &dto.SaveAttendanceResponse{
		ClassStatus: inst.Status,
		Persisted:   persisted,
		Failed:      failed,
	}, nil
}

// ────────────────────── AddWalkIn ──────────────────────

func (s *checkInService) AddWalkIn(ctx context.Context, studioID, classID, staffID string, req *dto.WalkInRequest) (*dto.RosterResponse, error) {
	inst, err := s.getOpenInstance(ctx, s.repo, studioID, classID)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.User.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("按邮箱查询用户失败", zap.Error(err))
		return nil, err
	}

	roster, err := s.loadRoster(ctx, s.repo, classID)
	if err != nil {
		return nil, err
	}
	roster.AddWalkIn(user)

	if _, _, err := s.flush(ctx, s.repo, inst, roster, staffID, true); err != nil {
		return nil, err
	}

	s.logger.Info("现场签到已添加", zap.String("class_id", classID), zap.String("user_id", user.UserID))
	return toRosterResponse(inst, roster), nil
}

// ═══════════════════════════════════════════════════════════
// Complete — 结课
// ═══════════════════════════════════════════════════════════
//
// 三个步骤在同一事务内执行，任一失败整体回滚：
//   1. 保存待提交的签到状态
//   2. 未签到的 booked/confirmed 预约置为 no_show
//   3. 实例置为 completed，并开启 feed

func (s *checkInService) Complete(ctx context.Context, studioID, classID, staffID string, req *dto.SaveAttendanceRequest) (*dto.CompleteClassResponse, error) {
	var result *dto.CompleteClassResponse

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		inst, err := s.getInstance(ctx, tx, studioID, classID)
		if err != nil {
			return err
		}
		switch inst.Status {
		case model.ClassStatusCompleted:
			return ErrClassAlreadyCompleted
		case model.ClassStatusCancelled:
			return ErrClassNotOpen
		}

		roster, err := s.loadRoster(ctx, tx, classID)
		if err != nil {
			return err
		}
		if req != nil {
			if err := applyEntries(roster, req); err != nil {
				return err
			}
		}

		// 1. 保存签到
		if _, _, err := s.flush(ctx, tx, inst, roster, staffID, true); err != nil {
			return err
		}
		if inst.Status == model.ClassStatusCompleted {
			return ErrClassAlreadyCompleted
		}

		// 2. 推导 no_show
		checkedIn := roster.CheckedInUserIDs()
		noShows, err := tx.Booking.MarkNoShow(ctx, classID, checkedIn)
		if err != nil {
			s.logger.Error("标记未到失败", zap.String("class_id", classID), zap.Error(err))
			return err
		}

		// 3. 结课
		fields := map[string]interface{}{
			"status":       model.ClassStatusCompleted,
			"feed_enabled": true,
		}
		if err := tx.ClassInstance.Update(ctx, inst.ClassID, inst.Version, fields); err != nil {
			return err
		}
		applyFields(inst, fields)

		result = &dto.CompleteClassResponse{
			ClassID:   classID,
			Status:    inst.Status,
			CheckedIn: len(checkedIn),
			NoShows:   noShows,
		}
		return nil
	})
	if err != nil {
		return nil, s.wrapError("结课失败", classID, err)
	}

	s.logger.Info("课程已结课",
		zap.String("class_id", classID),
		zap.Int("checked_in", result.CheckedIn),
		zap.Int64("no_shows", result.NoShows),
	)
	return result, nil
}

// ── 内部辅助方法 ──

// flush 持久化名单中的 dirty 条目
// failFast=false 时单条失败只记录并继续，返回失败用户列表
// 存在已签到者且实例仍为 scheduled 时推进到 in_progress
func (s *checkInService) flush(ctx context.Context, repo *repository.Repository, inst *model.ClassInstance, roster *Roster, staffID string, failFast bool) ([]string, []string, error) {
	persisted := make([]string, 0)
	failed := make([]string, 0)
	now := s.now().UTC()

	for _, e := range roster.Dirty() {
		if e.CheckedIn {
			if e.CheckedInAt == nil {
				stamp, by := now, staffID
				e.CheckedInAt, e.CheckedInBy = &stamp, &by
			}
		} else {
			e.CheckedInAt, e.CheckedInBy = nil, nil
		}

		rec := &model.Attendance{
			ClassID:     roster.ClassID,
			UserID:      e.UserID,
			CheckedIn:   e.CheckedIn,
			WalkIn:      e.WalkIn,
			CheckedInAt: e.CheckedInAt,
			CheckedInBy: e.CheckedInBy,
		}
		rec.UpdatedAt = now

		if err := repo.Attendance.Upsert(ctx, rec); err != nil {
			if failFast {
				s.logger.Error("保存签到失败", zap.String("user_id", e.UserID), zap.Error(err))
				return persisted, failed, err
			}
			s.logger.Warn("保存签到失败，保留待提交状态", zap.String("user_id", e.UserID), zap.Error(err))
			failed = append(failed, e.UserID)
			continue
		}
		e.Dirty = false
		persisted = append(persisted, e.UserID)
	}

	if len(persisted) > 0 && inst.Status == model.ClassStatusScheduled && len(roster.CheckedInUserIDs()) > 0 {
		// 条件推进：并发请求已推进时不算冲突，重新读取实例状态
		advanced, err := repo.ClassInstance.AdvanceStatus(ctx, inst.ClassID,
			model.ClassStatusScheduled, model.ClassStatusInProgress)
		switch {
		case err != nil:
		case advanced:
			inst.Status = model.ClassStatusInProgress
			inst.Version++
		default:
			err = s.reloadInstance(ctx, repo, inst)
		}
		if err != nil {
			if failFast {
				s.logger.Error("推进课程状态失败", zap.String("class_id", inst.ClassID), zap.Error(err))
				return persisted, failed, err
			}
			// 签到行已写入，状态推进失败不影响本次结果
			s.logger.Warn("推进课程状态失败", zap.String("class_id", inst.ClassID), zap.Error(err))
		}
	}
	return persisted, failed, nil
}

func (s *checkInService) reloadInstance(ctx context.Context, repo *repository.Repository, inst *model.ClassInstance) error {
	fresh, err := repo.ClassInstance.GetByStudio(ctx, inst.StudioID, inst.ClassID)
	if err != nil {
		return err
	}
	*inst = *fresh
	return nil
}

func (s *checkInService) loadRoster(ctx context.Context, repo *repository.Repository, classID string) (*Roster, error) {
	bookings, err := repo.Booking.ListByClass(ctx, classID,
		model.BookingStatusBooked, model.BookingStatusConfirmed, model.BookingStatusNoShow)
	if err != nil {
		s.logger.Error("查询预约失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	records, err := repo.Attendance.ListByClass(ctx, classID)
	if err != nil {
		s.logger.Error("查询签到记录失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	return NewRoster(classID, bookings, records), nil
}

func (s *checkInService) getInstance(ctx context.Context, repo *repository.Repository, studioID, classID string) (*model.ClassInstance, error) {
	inst, err := repo.ClassInstance.GetByStudio(ctx, studioID, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询课程实例失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	return inst, nil
}

func (s *checkInService) getOpenInstance(ctx context.Context, repo *repository.Repository, studioID, classID string) (*model.ClassInstance, error) {
	inst, err := s.getInstance(ctx, repo, studioID, classID)
	if err != nil {
		return nil, err
	}
	if inst.Status == model.ClassStatusCancelled || inst.Status == model.ClassStatusCompleted {
		return nil, ErrClassNotOpen
	}
	return inst, nil
}

func (s *checkInService) wrapError(msg, classID string, err error) error {
	switch {
	case errors.Is(err, ErrClassNotFound), errors.Is(err, ErrClassNotOpen),
		errors.Is(err, ErrClassAlreadyCompleted), errors.Is(err, ErrNotOnRoster):
		return err
	case errors.Is(err, apperrors.ErrOptimisticLock):
		return ErrClassConflict
	}
	s.logger.Error(msg, zap.String("class_id", classID), zap.Error(err))
	return err
}

// applyEntries 先整体校验再应用，未知用户时名单保持不变
func applyEntries(roster *Roster, req *dto.SaveAttendanceRequest) error {
	for _, entry := range req.Entries {
		if _, ok := roster.Entry(entry.UserID); !ok {
			return ErrNotOnRoster
		}
	}
	for _, entry := range req.Entries {
		if _, err := roster.Set(entry.UserID, entry.CheckedIn); err != nil {
			return err
		}
	}
	return nil
}

func toRosterResponse(inst *model.ClassInstance, roster *Roster) *dto.RosterResponse {
	entries := make([]dto.RosterEntryResponse, 0, len(roster.Entries()))
	for _, e := range roster.Entries() {
		item := dto.RosterEntryResponse{
			UserID:    e.UserID,
			Name:      e.Name,
			Email:     e.Email,
			CheckedIn: e.CheckedIn,
			WalkIn:    e.WalkIn,
			Dirty:     e.Dirty,
		}
		if e.BookingID != "" {
			id, status := e.BookingID, e.BookingStatus
			item.BookingID, item.BookingStatus = &id, &status
		}
		if e.CheckedInAt != nil {
			at := formatTimestamp(*e.CheckedInAt)
			item.CheckedInAt = &at
		}
		entries = append(entries, item)
	}
	return &dto.RosterResponse{
		ClassID:     inst.ClassID,
		ClassStatus: inst.Status,
		Entries:     entries,
	}
}
