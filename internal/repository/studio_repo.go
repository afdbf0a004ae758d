package repository

import (
	"context"

	"gorm.io/gorm"

	"studioflow/internal/model"
)

// StudioRepository 工作室数据访问接口
type StudioRepository interface {
	GetByID(ctx context.Context, id string) (*model.Studio, error)
	ListIDs(ctx context.Context) ([]string, error)
	GetMemberRole(ctx context.Context, studioID, userID string) (string, error)
}

type studioRepo struct {
	db *gorm.DB
}

// NewStudioRepo 创建 StudioRepository 实例
func NewStudioRepo(db *gorm.DB) StudioRepository {
	return &studioRepo{db: db}
}

func (r *studioRepo) GetByID(ctx context.Context, id string) (*model.Studio, error) {
	var studio model.Studio
	err := r.db.WithContext(ctx).
		Where("studio_id = ?", id).
		First(&studio).Error
	if err != nil {
		return nil, err
	}
	return &studio, nil
}

func (r *studioRepo) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Studio{}).
		Order("created_at ASC").
		Pluck("studio_id", &ids).Error
	return ids, err
}

// GetMemberRole 返回用户在工作室中的角色；非成员返回 gorm.ErrRecordNotFound
func (r *studioRepo) GetMemberRole(ctx context.Context, studioID, userID string) (string, error) {
	var member model.StudioMember
	err := r.db.WithContext(ctx).
		Where("studio_id = ? AND user_id = ?", studioID, userID).
		First(&member).Error
	if err != nil {
		return "", err
	}
	return member.Role, nil
}
