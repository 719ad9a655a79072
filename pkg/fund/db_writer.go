// 文件: pkg/fund/db_writer.go
// 冷资产模块 - Kafka 数据库写入器
//
// 消费流水/快照事件，写入 MySQL 冷存储。
// 写入幂等，事件可以安全重放

package fund

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"brokex.com/pkg/kafka"
)

// DBWriter Kafka 数据库写入器
type DBWriter struct {
	repo     *BalanceRepo
	consumer *kafka.Consumer

	// 统计
	journalCount atomic.Int64
	balanceCount atomic.Int64
	errorCount   atomic.Int64
}

// NewDBWriter 创建数据库写入器
func NewDBWriter(repo *BalanceRepo, brokers []string) (*DBWriter, error) {
	w := &DBWriter{repo: repo}

	cfg := kafka.DefaultConsumerConfig(brokers, "fund-db-writer",
		[]string{TopicJournalEvents, TopicBalanceEvents})
	consumer, err := kafka.NewConsumer(cfg, w.handleMessage)
	if err != nil {
		return nil, err
	}
	w.consumer = consumer

	return w, nil
}

// Start 启动消费
func (w *DBWriter) Start() {
	w.consumer.Start()
}

// Stop 停止
func (w *DBWriter) Stop() error {
	return w.consumer.Stop()
}

// handleMessage 处理消息
func (w *DBWriter) handleMessage(topic string, key, value []byte) error {
	var err error
	switch topic {
	case TopicJournalEvents:
		err = w.handleJournal(value)
	case TopicBalanceEvents:
		err = w.handleBalance(value)
	}
	if err != nil {
		w.errorCount.Add(1)
	}
	return err
}

func (w *DBWriter) handleJournal(data []byte) error {
	var event JournalEvent
	if err := event.FromJSON(data); err != nil {
		return err
	}
	if err := w.repo.InsertJournal(context.Background(), &event); err != nil {
		return err
	}
	w.journalCount.Add(1)
	return nil
}

func (w *DBWriter) handleBalance(data []byte) error {
	var snapshot BalanceSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	if err := w.repo.UpsertBalance(context.Background(), &snapshot); err != nil {
		return err
	}
	w.balanceCount.Add(1)
	return nil
}

// WriterStats 统计信息
type WriterStats struct {
	JournalCount int64
	BalanceCount int64
	ErrorCount   int64
}

// Stats 获取统计
func (w *DBWriter) Stats() WriterStats {
	return WriterStats{
		JournalCount: w.journalCount.Load(),
		BalanceCount: w.balanceCount.Load(),
		ErrorCount:   w.errorCount.Load(),
	}
}
