// Package job 后台定时任务
package job

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"studioflow/config"
	"studioflow/internal/service"
	apperrors "studioflow/pkg/errors"
	"studioflow/pkg/redis"
)

const generateLockName = "job:generate-classes"

// GenerateJob 定时为所有工作室生成课程实例
//
// 多副本部署时通过 Redis 锁保证同一时刻只有一个副本执行；
// Redis 不可用时直接执行（生成本身幂等）。
type GenerateJob struct {
	cron      *cron.Cron
	generator service.GeneratorService
	rdb       *redis.Client
	cfg       config.GeneratorConfig
	logger    *zap.Logger
}

// NewGenerateJob 创建定时生成任务，cron 表达式带秒字段
func NewGenerateJob(cfg config.GeneratorConfig, generator service.GeneratorService, rdb *redis.Client, logger *zap.Logger) (*GenerateJob, error) {
	j := &GenerateJob{
		cron:      cron.New(cron.WithSeconds()),
		generator: generator,
		rdb:       rdb,
		cfg:       cfg,
		logger:    logger,
	}
	if _, err := j.cron.AddFunc(cfg.CronSpec, func() { j.Run(context.Background()) }); err != nil {
		return nil, err
	}
	return j, nil
}

// Start 启动调度
func (j *GenerateJob) Start() {
	j.cron.Start()
	j.logger.Info("课程生成定时任务已启动", zap.String("spec", j.cfg.CronSpec))
}

// Stop 停止调度并等待执行中的任务结束
func (j *GenerateJob) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
		j.logger.Warn("等待定时任务结束超时")
	}
}

// Run 执行一次全量生成，返回是否实际执行
func (j *GenerateJob) Run(ctx context.Context) bool {
	if j.rdb != nil {
		ttl := j.cfg.LockTTL
		if ttl <= 0 {
			ttl = 30 * time.Minute
		}
		lock, err := j.rdb.AcquireLock(ctx, generateLockName, ttl)
		if err != nil {
			if errors.Is(err, apperrors.ErrLockNotAcquired) {
				j.logger.Info("其他实例正在生成课程，本次跳过")
				return false
			}
			j.logger.Error("获取生成锁失败", zap.Error(err))
			return false
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				j.logger.Warn("释放生成锁失败", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	summary, err := j.generator.GenerateAll(ctx)
	if err != nil {
		j.logger.Error("定时生成课程失败", zap.Error(err))
		return true
	}
	j.logger.Info("定时生成课程完成",
		zap.Int("studios", summary.Studios),
		zap.Int("generated", summary.Generated),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return true
}
