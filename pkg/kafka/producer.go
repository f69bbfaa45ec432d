// Package kafka 提供了向 Kafka 发布回复事件的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"seekmind-go/internal/config"
	"seekmind-go/internal/model"
	"seekmind-go/pkg/log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter 是 *kafka.Writer 中用到的部分，便于测试替换。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 把每次助手回复结束后的 ReplyEvent 写入 Kafka。
// 零值或 nil 的 Producer 不做任何事，对应未配置 brokers 的情况。
type Producer struct {
	w     messageWriter
	topic string
}

// NewProducer 初始化 Kafka 生产者。cfg.Brokers 为空时返回 nil。
func NewProducer(cfg config.KafkaConfig) *Producer {
	brokers := splitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		log.Info("未配置 Kafka brokers，回复事件不会发布")
		return nil
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	log.Infof("Kafka 生产者初始化成功, topic=%s", cfg.Topic)
	return &Producer{w: w, topic: cfg.Topic}
}

// PublishReply 发送一个回复事件，消息 key 为会话 ID，保证同一会话的事件有序。
func (p *Producer) PublishReply(ctx context.Context, ev model.ReplyEvent) error {
	if p == nil || p.w == nil {
		return nil
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(ev.SessionID), Value: value}); err != nil {
		return fmt.Errorf("failed to publish reply event to %s: %w", p.topic, err)
	}
	return nil
}

// Close 关闭底层 writer。
func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
