// Package push 将推送消息投递到 RabbitMQ，由外部推送服务消费并发送到设备。
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"studioflow/config"
)

// Message 推送消息载荷
type Message struct {
	UserID   string            `json:"user_id"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Type     string            `json:"type"`
	Data     map[string]string `json:"data,omitempty"`
	QueuedAt string            `json:"queued_at"`
}

// Publisher 推送发布接口
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// ── AMQP 实现 ──

type amqpPublisher struct {
	url    string
	queue  string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher 创建 RabbitMQ 推送发布器并声明持久化队列
func NewAMQPPublisher(cfg *config.PushConfig, logger *zap.Logger) (Publisher, error) {
	p := &amqpPublisher{url: cfg.URL, queue: cfg.Queue, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	logger.Info("推送队列连接成功", zap.String("queue", cfg.Queue))
	return p, nil
}

// connect 建立连接与通道，调用方需持有 mu 或处于初始化阶段
func (p *amqpPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("打开 RabbitMQ 通道失败: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("声明队列失败: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Publish 发布一条持久化消息；连接断开时尝试重连一次
func (p *amqpPublisher) Publish(ctx context.Context, msg Message) error {
	if msg.QueuedAt == "" {
		msg.QueuedAt = time.Now().UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化推送消息失败: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("发布推送消息失败: %w", err)
	}
	return nil
}

// Close 关闭通道与连接
func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// ── 空实现（推送未启用时使用） ──

type nopPublisher struct {
	logger *zap.Logger
}

// NewNopPublisher 创建不做任何投递的发布器
func NewNopPublisher(logger *zap.Logger) Publisher {
	return &nopPublisher{logger: logger}
}

func (p *nopPublisher) Publish(_ context.Context, msg Message) error {
	p.logger.Debug("推送未启用，丢弃消息", zap.String("user_id", msg.UserID), zap.String("type", msg.Type))
	return nil
}

func (p *nopPublisher) Close() error { return nil }
