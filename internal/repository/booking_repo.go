package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"studioflow/internal/model"
)

// BookingRepository 预约数据访问接口
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetByClassAndUser(ctx context.Context, classID, userID string) (*model.Booking, error)
	// ListByClass statuses 为空时返回全部
	ListByClass(ctx context.Context, classID string, statuses ...string) ([]model.Booking, error)
	CountActive(ctx context.Context, classID string) (int64, error)
	UpdateStatus(ctx context.Context, bookingID, status string) error
	// MarkNoShow 将未签到的 booked/confirmed 预约置为 no_show，返回影响行数
	MarkNoShow(ctx context.Context, classID string, checkedInUserIDs []string) (int64, error)
}

type bookingRepo struct {
	db *gorm.DB
}

// NewBookingRepo 创建 BookingRepository 实例
func NewBookingRepo(db *gorm.DB) BookingRepository {
	return &bookingRepo{db: db}
}

func (r *bookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	err := r.db.WithContext(ctx).Omit("User", "Class").Create(booking).Error
	return translateError(err)
}

func (r *bookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.WithContext(ctx).
		Preload("Class").
		Preload("Class.Template").
		Where("booking_id = ?", id).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepo) GetByClassAndUser(ctx context.Context, classID, userID string) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND user_id = ?", classID, userID).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepo) ListByClass(ctx context.Context, classID string, statuses ...string) ([]model.Booking, error) {
	query := r.db.WithContext(ctx).
		Preload("User").
		Where("class_id = ?", classID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var bookings []model.Booking
	err := query.Order("created_at ASC").Find(&bookings).Error
	return bookings, err
}

func (r *bookingRepo) CountActive(ctx context.Context, classID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("class_id = ? AND status IN ?", classID,
			[]string{model.BookingStatusBooked, model.BookingStatusConfirmed}).
		Count(&count).Error
	return count, err
}

func (r *bookingRepo) UpdateStatus(ctx context.Context, bookingID, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("booking_id = ?", bookingID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *bookingRepo) MarkNoShow(ctx context.Context, classID string, checkedInUserIDs []string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("class_id = ? AND status IN ?", classID,
			[]string{model.BookingStatusBooked, model.BookingStatusConfirmed})
	if len(checkedInUserIDs) > 0 {
		query = query.Where("user_id NOT IN ?", checkedInUserIDs)
	}
	result := query.Updates(map[string]interface{}{
		"status":     model.BookingStatusNoShow,
		"updated_at": time.Now().UTC(),
	})
	return result.RowsAffected, result.Error
}
