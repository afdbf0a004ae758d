package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studioflow/internal/model"
	apperrors "studioflow/pkg/errors"
)

// ScheduleFilter 课表查询条件（日期闭区间）
type ScheduleFilter struct {
	StudioID   string
	From       string
	To         string
	TeacherID  string
	TemplateID string
}

// ClassInstanceRepository 课程实例数据访问接口
type ClassInstanceRepository interface {
	Create(ctx context.Context, inst *model.ClassInstance) error
	GetByStudio(ctx context.Context, studioID, classID string) (*model.ClassInstance, error)
	// GetForUpdate 行锁读取（SELECT ... FOR UPDATE），须在事务内调用
	GetForUpdate(ctx context.Context, studioID, classID string) (*model.ClassInstance, error)
	// ListExistingKeys 返回窗口内已存在实例的 (template_id, date) 对
	ListExistingKeys(ctx context.Context, studioID string, templateIDs []string, from, to string) ([]model.ClassInstance, error)
	CountByTemplate(ctx context.Context, templateID string) (int64, error)
	// InsertIgnoreConflicts 批量插入，(template_id, date) 冲突的行跳过，返回实际插入行数
	InsertIgnoreConflicts(ctx context.Context, rows []model.ClassInstance) (int64, error)
	// Update 乐观锁更新，version 不匹配返回 ErrOptimisticLock
	Update(ctx context.Context, classID string, version int, fields map[string]interface{}) error
	// AdvanceStatus 仅当当前状态为 from 时切换到 to，不校验 version；返回是否发生切换
	AdvanceStatus(ctx context.Context, classID, from, to string) (bool, error)
	ListSchedule(ctx context.Context, filter ScheduleFilter) ([]model.ClassInstanceWithCount, error)
}

type classInstanceRepo struct {
	db *gorm.DB
}

// NewClassInstanceRepo 创建 ClassInstanceRepository 实例
func NewClassInstanceRepo(db *gorm.DB) ClassInstanceRepository {
	return &classInstanceRepo{db: db}
}

func (r *classInstanceRepo) Create(ctx context.Context, inst *model.ClassInstance) error {
	return r.db.WithContext(ctx).Omit("Template", "Teacher").Create(inst).Error
}

func (r *classInstanceRepo) GetByStudio(ctx context.Context, studioID, classID string) (*model.ClassInstance, error) {
	var inst model.ClassInstance
	err := r.db.WithContext(ctx).
		Preload("Template").
		Preload("Teacher").
		Where("studio_id = ? AND class_id = ?", studioID, classID).
		First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *classInstanceRepo) GetForUpdate(ctx context.Context, studioID, classID string) (*model.ClassInstance, error) {
	var inst model.ClassInstance
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("studio_id = ? AND class_id = ?", studioID, classID).
		First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *classInstanceRepo) ListExistingKeys(ctx context.Context, studioID string, templateIDs []string, from, to string) ([]model.ClassInstance, error) {
	if len(templateIDs) == 0 {
		return nil, nil
	}
	var rows []model.ClassInstance
	err := r.db.WithContext(ctx).
		Select("template_id", "date").
		Where("studio_id = ? AND template_id IN ? AND date >= ? AND date <= ?", studioID, templateIDs, from, to).
		Find(&rows).Error
	return rows, err
}

func (r *classInstanceRepo) CountByTemplate(ctx context.Context, templateID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ClassInstance{}).
		Where("template_id = ?", templateID).
		Count(&count).Error
	return count, err
}

func (r *classInstanceRepo) InsertIgnoreConflicts(ctx context.Context, rows []model.ClassInstance) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Omit("Template", "Teacher").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "template_id"}, {Name: "date"}},
			DoNothing: true,
		}).
		CreateInBatches(rows, 200)
	return result.RowsAffected, result.Error
}

func (r *classInstanceRepo) Update(ctx context.Context, classID string, version int, fields map[string]interface{}) error {
	fields["version"] = gorm.Expr("version + 1")
	fields["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&model.ClassInstance{}).
		Where("class_id = ? AND version = ?", classID, version).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrOptimisticLock
	}
	return nil
}

func (r *classInstanceRepo) AdvanceStatus(ctx context.Context, classID, from, to string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ClassInstance{}).
		Where("class_id = ? AND status = ?", classID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListSchedule 实例 + 模板摘要 + 教师摘要 + 非取消预约计数
func (r *classInstanceRepo) ListSchedule(ctx context.Context, filter ScheduleFilter) ([]model.ClassInstanceWithCount, error) {
	counts := r.db.
		Model(&model.Booking{}).
		Select("class_id, COUNT(*) AS booking_count").
		Where("status <> ?", model.BookingStatusCancelled).
		Group("class_id")

	query := r.db.WithContext(ctx).
		Model(&model.ClassInstance{}).
		Select("class_instances.*, COALESCE(bc.booking_count, 0) AS booking_count").
		Joins("LEFT JOIN (?) AS bc ON bc.class_id = class_instances.class_id", counts).
		Where("class_instances.studio_id = ?", filter.StudioID).
		Where("class_instances.date >= ? AND class_instances.date <= ?", filter.From, filter.To)

	if filter.TeacherID != "" {
		query = query.Where("class_instances.teacher_id = ?", filter.TeacherID)
	}
	if filter.TemplateID != "" {
		query = query.Where("class_instances.template_id = ?", filter.TemplateID)
	}

	var rows []model.ClassInstanceWithCount
	err := query.
		Preload("Template").
		Preload("Teacher").
		Order("class_instances.date ASC, class_instances.start_time ASC").
		Find(&rows).Error
	return rows, err
}
