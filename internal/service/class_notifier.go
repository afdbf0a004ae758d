package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studioflow/internal/model"
	"studioflow/internal/repository"
	"studioflow/pkg/push"
)

// classNotifier 课程取消 / 恢复的通知副作用
//
// 通知记录整批写入（单次 BatchCreate），推送为尽力而为：
// 失败只记录日志，不影响主操作结果。
type classNotifier struct {
	publisher push.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func newClassNotifier(publisher push.Publisher, logger *zap.Logger) *classNotifier {
	return &classNotifier{publisher: publisher, logger: logger, now: time.Now}
}

// recordCancelled 为所有非取消预约持有人写入 class_cancelled 通知
func (n *classNotifier) recordCancelled(ctx context.Context, repo *repository.Repository, inst *model.ClassInstance) ([]model.Notification, error) {
	bookings, err := repo.Booking.ListByClass(ctx, inst.ClassID)
	if err != nil {
		return nil, fmt.Errorf("查询课程预约失败: %w", err)
	}
	var holders []string
	for i := range bookings {
		if bookings[i].Status != model.BookingStatusCancelled {
			holders = append(holders, bookings[i].UserID)
		}
	}
	title := fmt.Sprintf("%s on %s has been cancelled", className(inst), inst.Date)
	return n.record(ctx, repo, inst, holders, model.NotificationClassCancelled, title)
}

// recordRestored 为 booked / confirmed / cancelled 预约持有人写入 class_restored 通知
func (n *classNotifier) recordRestored(ctx context.Context, repo *repository.Repository, inst *model.ClassInstance) ([]model.Notification, error) {
	bookings, err := repo.Booking.ListByClass(ctx, inst.ClassID,
		model.BookingStatusBooked, model.BookingStatusConfirmed, model.BookingStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("查询课程预约失败: %w", err)
	}
	holders := make([]string, 0, len(bookings))
	for i := range bookings {
		holders = append(holders, bookings[i].UserID)
	}
	title := fmt.Sprintf("%s on %s is back on the schedule", className(inst), inst.Date)
	return n.record(ctx, repo, inst, holders, model.NotificationClassRestored, title)
}

func (n *classNotifier) record(ctx context.Context, repo *repository.Repository, inst *model.ClassInstance, userIDs []string, kind, title string) ([]model.Notification, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	batchID := uuid.NewString()
	classID := inst.ClassID
	body := fmt.Sprintf("%s %s-%s", inst.Date, trimSeconds(inst.StartTime), trimSeconds(inst.EndTime))

	seen := make(map[string]bool, len(userIDs))
	items := make([]model.Notification, 0, len(userIDs))
	for _, uid := range userIDs {
		if seen[uid] {
			continue
		}
		seen[uid] = true
		items = append(items, model.Notification{
			UserID:   uid,
			StudioID: inst.StudioID,
			ClassID:  &classID,
			BatchID:  &batchID,
			Type:     kind,
			Title:    title,
			Body:     body,
		})
	}

	if err := repo.Notification.BatchCreate(ctx, items); err != nil {
		return nil, fmt.Errorf("写入通知失败: %w", err)
	}
	return items, nil
}

// push 逐条投递推送消息，失败仅记录
func (n *classNotifier) push(ctx context.Context, items []model.Notification) {
	if n.publisher == nil {
		return
	}
	queuedAt := n.now().UTC().Format(time.RFC3339)
	for i := range items {
		msg := push.Message{
			UserID:   items[i].UserID,
			Title:    items[i].Title,
			Body:     items[i].Body,
			Type:     items[i].Type,
			QueuedAt: queuedAt,
		}
		if items[i].ClassID != nil {
			msg.Data = map[string]string{"class_id": *items[i].ClassID, "studio_id": items[i].StudioID}
		}
		if err := n.publisher.Publish(ctx, msg); err != nil {
			n.logger.Warn("推送投递失败（已忽略）",
				zap.String("user_id", items[i].UserID),
				zap.String("type", items[i].Type),
				zap.Error(err),
			)
		}
	}
}

func className(inst *model.ClassInstance) string {
	if inst.Template != nil && inst.Template.Name != "" {
		return inst.Template.Name
	}
	return "Class"
}

// trimSeconds HH:MM:SS → HH:MM
func trimSeconds(clock string) string {
	if len(clock) == 8 {
		return clock[:5]
	}
	return clock
}
