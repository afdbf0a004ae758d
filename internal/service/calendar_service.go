package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studioflow/config"
	"studioflow/internal/model"
	"studioflow/internal/repository"
	"studioflow/pkg/ical"
)

// CalendarService 预约日历（.ics）接口
//
// 同一预约多次生成保持相同 UID；DTSTAMP 为生成时间；
// 预约或课程已取消时输出 METHOD:CANCEL。
type CalendarService interface {
	BookingICS(ctx context.Context, bookingID, userID string) (string, error)
}

type calendarService struct {
	repo    *repository.Repository
	cfg     config.CalendarConfig
	baseURL string
	builder *ical.Builder
	logger  *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, cfg *config.Config, logger *zap.Logger) CalendarService {
	return &calendarService{
		repo:    repo,
		cfg:     cfg.Calendar,
		baseURL: strings.TrimRight(cfg.Server.BaseURL, "/"),
		builder: ical.NewBuilder(cfg.Calendar.ProductID, time.Now),
		logger:  logger,
	}
}

func (s *calendarService) BookingICS(ctx context.Context, bookingID, userID string) (string, error) {
	// 1. 预约仅对持有人可见
	booking, err := s.repo.Booking.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrBookingNotFound
		}
		s.logger.Error("查询预约失败", zap.String("booking_id", bookingID), zap.Error(err))
		return "", err
	}
	if booking.UserID != userID || booking.Class == nil {
		return "", ErrBookingNotFound
	}
	inst := booking.Class

	// 2. 工作室时区
	studio, err := s.repo.Studio.GetByID(ctx, inst.StudioID)
	if err != nil {
		s.logger.Error("查询工作室失败", zap.String("studio_id", inst.StudioID), zap.Error(err))
		return "", err
	}
	loc, tzid := s.location(studio.Timezone)

	// 3. 本地起止时间
	start, end, err := localSpan(inst, loc)
	if err != nil {
		s.logger.Error("课程时间非法", zap.String("class_id", inst.ClassID), zap.Error(err))
		return "", err
	}

	ev := ical.Event{
		UID:       ical.BookingUID(booking.BookingID, s.cfg.UIDDomain),
		Summary:   className(inst),
		Location:  studio.Name,
		Start:     start,
		End:       end,
		TZID:      tzid,
		Sequence:  inst.Version,
		Cancelled: booking.Status == model.BookingStatusCancelled || inst.Status == model.ClassStatusCancelled,
	}
	if inst.Template != nil {
		ev.Description = inst.Template.Description
	}
	if inst.Notes != "" {
		ev.Description = strings.TrimSpace(ev.Description + "\n" + inst.Notes)
	}
	if s.baseURL != "" {
		ev.URL = fmt.Sprintf("%s/studios/%s/classes/%s", s.baseURL, inst.StudioID, inst.ClassID)
	}

	return s.builder.Render(ev)
}

// location 工作室时区无效时回退到默认时区
func (s *calendarService) location(tz string) (*time.Location, string) {
	for _, name := range []string{tz, s.cfg.DefaultTimezone, "UTC"} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc, name
		}
		s.logger.Warn("无法加载时区", zap.String("timezone", name))
	}
	return time.UTC, "UTC"
}

// localSpan 计算实例在工作室时区的起止时间，结束早于开始时视为次日
func localSpan(inst *model.ClassInstance, loc *time.Location) (time.Time, time.Time, error) {
	day, err := parseDate(inst.Date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	startSec, err := parseClock(inst.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endSec, err := parseClock(inst.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	at := func(sec int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), sec/secondsPerHour, sec%secondsPerHour/60, sec%60, 0, loc)
	}
	start, end := at(startSec), at(endSec)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}
