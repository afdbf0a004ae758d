package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studioflow/internal/dto"
	"studioflow/internal/model"
	"studioflow/internal/repository"
)

// ── 预约模块业务错误 ──

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrAlreadyBooked    = errors.New("already booked for this class")
	ErrClassFull        = errors.New("class is full")
	ErrClassNotBookable = errors.New("class is not open for booking")
	ErrBookingNotActive = errors.New("booking is not active")
)

// BookingService 预约业务接口
type BookingService interface {
	Book(ctx context.Context, studioID, classID, userID string) (*dto.BookingResponse, error)
	Cancel(ctx context.Context, studioID, classID, userID string) (*dto.BookingResponse, error)
}

type bookingService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewBookingService 创建 BookingService 实例
func NewBookingService(repo *repository.Repository, logger *zap.Logger) BookingService {
	return &bookingService{repo: repo, logger: logger}
}

// ────────────────────── Book ──────────────────────

func (s *bookingService) Book(ctx context.Context, studioID, classID, userID string) (*dto.BookingResponse, error) {
	var booking *model.Booking

	// 实例行锁串行化同一课程的并发预约，容量检查与写入在同一事务内
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 1. 实例可预约
		inst, err := tx.ClassInstance.GetForUpdate(ctx, studioID, classID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClassNotFound
			}
			s.logger.Error("查询课程实例失败", zap.String("class_id", classID), zap.Error(err))
			return err
		}
		if inst.Status != model.ClassStatusScheduled && inst.Status != model.ClassStatusInProgress {
			return ErrClassNotBookable
		}

		// 2. 已有预约：有效则拒绝，已取消则重新激活
		existing, err := tx.Booking.GetByClassAndUser(ctx, classID, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询预约失败", zap.String("class_id", classID), zap.Error(err))
			return err
		}
		if existing != nil && existing.Status != model.BookingStatusCancelled {
			return ErrAlreadyBooked
		}

		// 3. 容量
		if inst.MaxCapacity != nil {
			active, err := tx.Booking.CountActive(ctx, classID)
			if err != nil {
				s.logger.Error("统计预约数失败", zap.String("class_id", classID), zap.Error(err))
				return err
			}
			if active >= int64(*inst.MaxCapacity) {
				return ErrClassFull
			}
		}

		// 4. 写入
		if existing != nil {
			if err := tx.Booking.UpdateStatus(ctx, existing.BookingID, model.BookingStatusBooked); err != nil {
				s.logger.Error("重新激活预约失败", zap.String("booking_id", existing.BookingID), zap.Error(err))
				return err
			}
			existing.Status = model.BookingStatusBooked
			booking = existing
			return nil
		}

		booking = &model.Booking{ClassID: classID, UserID: userID, Status: model.BookingStatusBooked}
		if err := tx.Booking.Create(ctx, booking); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyBooked
			}
			s.logger.Error("创建预约失败", zap.String("class_id", classID), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("预约成功", zap.String("class_id", classID), zap.String("user_id", userID))
	return toBookingResponse(booking), nil
}

// ────────────────────── Cancel ──────────────────────

func (s *bookingService) Cancel(ctx context.Context, studioID, classID, userID string) (*dto.BookingResponse, error) {
	if _, err := s.repo.ClassInstance.GetByStudio(ctx, studioID, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}

	booking, err := s.repo.Booking.GetByClassAndUser(ctx, classID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		s.logger.Error("查询预约失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	if !booking.IsActive() {
		return nil, ErrBookingNotActive
	}

	if err := s.repo.Booking.UpdateStatus(ctx, booking.BookingID, model.BookingStatusCancelled); err != nil {
		s.logger.Error("取消预约失败", zap.String("booking_id", booking.BookingID), zap.Error(err))
		return nil, err
	}
	booking.Status = model.BookingStatusCancelled
	return toBookingResponse(booking), nil
}

func toBookingResponse(b *model.Booking) *dto.BookingResponse {
	return &dto.BookingResponse{
		ID:        b.BookingID,
		ClassID:   b.ClassID,
		UserID:    b.UserID,
		Status:    b.Status,
		CreatedAt: formatTimestamp(b.CreatedAt),
		UpdatedAt: formatTimestamp(b.UpdatedAt),
	}
}
