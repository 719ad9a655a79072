// 文件: pkg/fund/publisher.go
// 冷资产模块 - Kafka 事件发布器
//
// JournalEvent / BalanceSnapshot 实现 kafka.Message 接口 (见 model.go)，
// 这里只负责接上通用生产者

package fund

import (
	"brokex.com/pkg/kafka"
)

// EventPublisher 资产事件发布器 (Kafka)
type EventPublisher struct {
	producer *kafka.Producer
}

// NewEventPublisher 创建事件发布器
func NewEventPublisher(brokers []string) (*EventPublisher, error) {
	cfg := kafka.DefaultProducerConfig(brokers)
	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, err
	}
	return &EventPublisher{producer: producer}, nil
}

// PublishJournal 发布流水事件
func (p *EventPublisher) PublishJournal(event *JournalEvent) error {
	return p.producer.Send(event)
}

// PublishBalance 发布余额快照事件
func (p *EventPublisher) PublishBalance(snapshot *BalanceSnapshot) error {
	return p.producer.Send(snapshot)
}

// Stats 获取生产统计
func (p *EventPublisher) Stats() kafka.ProducerStats {
	return p.producer.Stats()
}

// Close 关闭发布器
func (p *EventPublisher) Close() error {
	return p.producer.Close()
}
