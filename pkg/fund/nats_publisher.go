// 文件: pkg/fund/nats_publisher.go
// 冷资产模块 - NATS 事件发布器 (轻量级替代 Kafka)

package fund

import (
	"brokex.com/pkg/nats"
)

// NatsEventPublisher NATS 事件发布器
type NatsEventPublisher struct {
	publisher *nats.Publisher
}

// NewNatsEventPublisher 创建 NATS 事件发布器
func NewNatsEventPublisher(natsURL string) (*NatsEventPublisher, error) {
	publisher, err := nats.NewPublisher(natsURL)
	if err != nil {
		return nil, err
	}
	return &NatsEventPublisher{publisher: publisher}, nil
}

// PublishJournal 发布流水事件
func (p *NatsEventPublisher) PublishJournal(event *JournalEvent) error {
	return p.publisher.Publish(TopicJournalEvents, event)
}

// PublishBalance 发布余额快照事件
func (p *NatsEventPublisher) PublishBalance(snapshot *BalanceSnapshot) error {
	return p.publisher.Publish(TopicBalanceEvents, snapshot)
}

// Close 关闭发布器
func (p *NatsEventPublisher) Close() error {
	p.publisher.Close()
	return nil
}
