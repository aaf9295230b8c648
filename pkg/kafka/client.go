// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"

	"cloudshift-go/internal/config"
	"cloudshift-go/pkg/events"
	"cloudshift-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// Ready 报告生产者是否已初始化。未配置 Kafka 时调用方应跳过事件发送。
func Ready() bool {
	return producer != nil
}

// ProduceChatEvent 发送一条聊天审计事件到 Kafka。
// 以 chat_id 作为消息 key，保证同一聊天的事件落在同一分区内有序。
func ProduceChatEvent(ctx context.Context, event events.ChatEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return producer.WriteMessages(ctx,
		kafka.Message{
			Key:   []byte(event.ChatID),
			Value: eventBytes,
		},
	)
}
