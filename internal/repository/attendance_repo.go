package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studioflow/internal/model"
)

// AttendanceRepository 签到记录数据访问接口
type AttendanceRepository interface {
	ListByClass(ctx context.Context, classID string) ([]model.Attendance, error)
	// Upsert 按 (class_id, user_id) 插入或覆盖签到状态
	Upsert(ctx context.Context, record *model.Attendance) error
}

type attendanceRepo struct {
	db *gorm.DB
}

// NewAttendanceRepo 创建 AttendanceRepository 实例
func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

func (r *attendanceRepo) ListByClass(ctx context.Context, classID string) ([]model.Attendance, error) {
	var records []model.Attendance
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("class_id = ?", classID).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

func (r *attendanceRepo) Upsert(ctx context.Context, record *model.Attendance) error {
	return r.db.WithContext(ctx).
		Omit("User").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "class_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"checked_in", "walk_in", "checked_in_at", "checked_in_by", "updated_at",
			}),
		}).
		Create(record).Error
}
