// 文件: pkg/fund/nats_writer.go
// 冷资产模块 - NATS 数据库写入器
//
// 与 DBWriter 职责相同，事件来源换成 NATS 队列订阅，
// 本地开发不起 Kafka 时使用

package fund

import (
	"context"
	"encoding/json"

	"brokex.com/pkg/nats"
)

// NatsDBWriter NATS 数据库写入器
type NatsDBWriter struct {
	repo       *BalanceRepo
	subscriber *nats.Subscriber
}

// NewNatsDBWriter 创建 NATS 数据库写入器
func NewNatsDBWriter(repo *BalanceRepo, natsURL string) (*NatsDBWriter, error) {
	w := &NatsDBWriter{repo: repo}

	subscriber, err := nats.NewSubscriber(natsURL, w.handleMessage)
	if err != nil {
		return nil, err
	}
	w.subscriber = subscriber

	return w, nil
}

// Start 启动监听
func (w *NatsDBWriter) Start() error {
	if err := w.subscriber.SubscribeQueue(TopicJournalEvents, "fund-db-writer"); err != nil {
		return err
	}
	return w.subscriber.SubscribeQueue(TopicBalanceEvents, "fund-db-writer")
}

// Stop 停止
func (w *NatsDBWriter) Stop() error {
	return w.subscriber.Close()
}

// handleMessage 处理消息
func (w *NatsDBWriter) handleMessage(subject string, data []byte) error {
	switch subject {
	case TopicJournalEvents:
		var event JournalEvent
		if err := event.FromJSON(data); err != nil {
			return err
		}
		return w.repo.InsertJournal(context.Background(), &event)
	case TopicBalanceEvents:
		var snapshot BalanceSnapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return err
		}
		return w.repo.UpsertBalance(context.Background(), &snapshot)
	}
	return nil
}
