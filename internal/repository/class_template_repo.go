package repository

import (
	"context"

	"gorm.io/gorm"

	"studioflow/internal/model"
)

// ClassTemplateRepository 课程模板数据访问接口
type ClassTemplateRepository interface {
	Create(ctx context.Context, tpl *model.ClassTemplate) error
	GetByID(ctx context.Context, id string) (*model.ClassTemplate, error)
	ListActiveByStudio(ctx context.Context, studioID string) ([]model.ClassTemplate, error)
}

type classTemplateRepo struct {
	db *gorm.DB
}

// NewClassTemplateRepo 创建 ClassTemplateRepository 实例
func NewClassTemplateRepo(db *gorm.DB) ClassTemplateRepository {
	return &classTemplateRepo{db: db}
}

// Create 创建模板（active 列无 GORM 默认值，false 会被正常写入）
func (r *classTemplateRepo) Create(ctx context.Context, tpl *model.ClassTemplate) error {
	return r.db.WithContext(ctx).Omit("Teacher").Create(tpl).Error
}

func (r *classTemplateRepo) GetByID(ctx context.Context, id string) (*model.ClassTemplate, error) {
	var tpl model.ClassTemplate
	err := r.db.WithContext(ctx).
		Where("template_id = ?", id).
		First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *classTemplateRepo) ListActiveByStudio(ctx context.Context, studioID string) ([]model.ClassTemplate, error) {
	var templates []model.ClassTemplate
	err := r.db.WithContext(ctx).
		Where("studio_id = ? AND active = ?", studioID, true).
		Order("created_at ASC").
		Find(&templates).Error
	return templates, err
}
