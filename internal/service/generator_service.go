package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studioflow/config"
	"studioflow/internal/model"
	"studioflow/internal/repository"
)

// ── 生成模块业务错误 ──

var (
	ErrStudioNotFound     = errors.New("studio not found")
	ErrStudioIDRequired   = errors.New("studioId is required")
	ErrWeeksAheadTooLarge = errors.New("weeksAhead exceeds the allowed maximum")
)

// GenerateSummary 批量生成结果
type GenerateSummary struct {
	Studios   int
	Generated int
	Failed    int
}

// GeneratorService 课程实例生成接口
type GeneratorService interface {
	// Generate 为单个工作室生成未来 weeksAhead 周的实例，返回实际新增数
	// weeksAhead <= 0 时使用默认值
	Generate(ctx context.Context, studioID string, weeksAhead int) (int, error)
	// GenerateAll 遍历所有工作室（定时任务使用），单个失败不影响其余
	GenerateAll(ctx context.Context) (*GenerateSummary, error)
}

type generatorService struct {
	repo   *repository.Repository
	cfg    config.GeneratorConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewGeneratorService 创建 GeneratorService 实例
func NewGeneratorService(repo *repository.Repository, cfg config.GeneratorConfig, logger *zap.Logger) GeneratorService {
	return &generatorService{repo: repo, cfg: cfg, logger: logger, now: time.Now}
}

// ═══════════════════════════════════════════════════════════
// Generate — 展开模板为实例
// ═══════════════════════════════════════════════════════════
//
// 幂等：同一模板集合与窗口重复执行第二次返回 0。
// 内存去重之外，写入使用 ON CONFLICT (template_id, date) DO NOTHING，
// 并发执行时以唯一约束兜底，返回值为实际插入行数。

func (s *generatorService) Generate(ctx context.Context, studioID string, weeksAhead int) (int, error) {
	if studioID == "" {
		return 0, ErrStudioIDRequired
	}
	if weeksAhead <= 0 {
		weeksAhead = s.cfg.DefaultWeeksAhead
	}
	if s.cfg.MaxWeeksAhead > 0 && weeksAhead > s.cfg.MaxWeeksAhead {
		return 0, ErrWeeksAheadTooLarge
	}

	// 1. 停课日期
	studio, err := s.repo.Studio.GetByID(ctx, studioID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrStudioNotFound
		}
		s.logger.Error("查询工作室失败", zap.String("studio_id", studioID), zap.Error(err))
		return 0, err
	}
	closures := NewClosureSet(studio.Settings.Data().ClosureDates)

	// 2. 活跃模板
	templates, err := s.repo.ClassTemplate.ListActiveByStudio(ctx, studioID)
	if err != nil {
		s.logger.Error("查询课程模板失败", zap.String("studio_id", studioID), zap.Error(err))
		return 0, err
	}
	if len(templates) == 0 {
		return 0, nil
	}

	// 3. 窗口
	window := newPlanWindow(s.now(), weeksAhead)

	// 4. 窗口内已存在实例
	templateIDs := make([]string, 0, len(templates))
	for i := range templates {
		templateIDs = append(templateIDs, templates[i].TemplateID)
	}
	existingRows, err := s.repo.ClassInstance.ListExistingKeys(ctx, studioID, templateIDs, window.Start, window.End)
	if err != nil {
		s.logger.Error("查询已存在实例失败", zap.String("studio_id", studioID), zap.Error(err))
		return 0, err
	}
	existing := make(map[string]struct{}, len(existingRows))
	for _, row := range existingRows {
		existing[instanceKey(row.TemplateID, row.Date)] = struct{}{}
	}

	// once 模板按全量存在性判断，不受窗口限制
	onceGenerated := make(map[string]bool)
	for i := range templates {
		if templates[i].Recurrence != model.RecurrenceOnce || templates[i].DayOfWeek == nil {
			continue
		}
		count, err := s.repo.ClassInstance.CountByTemplate(ctx, templates[i].TemplateID)
		if err != nil {
			s.logger.Error("查询模板实例数失败", zap.String("template_id", templates[i].TemplateID), zap.Error(err))
			return 0, err
		}
		onceGenerated[templates[i].TemplateID] = count > 0
	}

	// 5~6. 规划
	rows := planInstances(planInput{
		Templates:     templates,
		Window:        window,
		Closures:      closures,
		Existing:      existing,
		OnceGenerated: onceGenerated,
	})
	if len(rows) == 0 {
		return 0, nil
	}

	// 7~8. 写入
	inserted, err := s.repo.ClassInstance.InsertIgnoreConflicts(ctx, rows)
	if err != nil {
		s.logger.Error("写入课程实例失败", zap.String("studio_id", studioID), zap.Error(err))
		return 0, err
	}

	s.logger.Info("课程实例生成完成",
		zap.String("studio_id", studioID),
		zap.String("window_start", window.Start),
		zap.String("window_end", window.End),
		zap.Int("planned", len(rows)),
		zap.Int64("inserted", inserted),
	)
	return int(inserted), nil
}

// ────────────────────── GenerateAll ──────────────────────

func (s *generatorService) GenerateAll(ctx context.Context) (*GenerateSummary, error) {
	studioIDs, err := s.repo.Studio.ListIDs(ctx)
	if err != nil {
		s.logger.Error("查询工作室列表失败", zap.Error(err))
		return nil, err
	}

	summary := &GenerateSummary{Studios: len(studioIDs)}
	for _, id := range studioIDs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		n, err := s.Generate(ctx, id, 0)
		if err != nil {
			summary.Failed++
			s.logger.Warn("工作室实例生成失败", zap.String("studio_id", id), zap.Error(err))
			continue
		}
		summary.Generated += n
	}
	return summary, nil
}
