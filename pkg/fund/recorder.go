// 文件: pkg/fund/recorder.go
// 冷资产模块 - 流水记录器
//
// 实现 ledger.JournalSink: 把台账的余额变更转成流水事件和余额快照，
// 交给事件发布器 (Kafka 或 NATS) 发往冷端

package fund

import (
	"fmt"
	"log"
	"time"

	"brokex.com/pkg/ledger"
)

// JournalPublisher 事件发布器
// Kafka 的 EventPublisher 和 NATS 的 NatsEventPublisher 都满足
type JournalPublisher interface {
	PublishJournal(event *JournalEvent) error
	PublishBalance(snapshot *BalanceSnapshot) error
}

// Recorder 流水记录器
type Recorder struct {
	publisher JournalPublisher
}

// NewRecorder 创建流水记录器
func NewRecorder(publisher JournalPublisher) *Recorder {
	return &Recorder{publisher: publisher}
}

// BalanceChanged 接收台账的余额变更
// 发布失败只记日志: 流水是冷端副本，热端余额已经是事实
func (r *Recorder) BalanceChanged(change ledger.Change) {
	event := NewJournalEvent(change)

	if err := r.publisher.PublishJournal(event); err != nil {
		log.Printf("[Fund] publish journal failed: event=%s err=%v", event.EventID, err)
	}

	snapshot := &BalanceSnapshot{
		EventID:    event.EventID,
		CustomerID: change.CustomerID,
		AssetName:  change.AssetName,
		Available:  change.AvailableAfter,
		Reserved:   change.ReservedAfter,
		UpdatedAt:  event.CreatedAt,
	}
	if err := r.publisher.PublishBalance(snapshot); err != nil {
		log.Printf("[Fund] publish balance failed: event=%s err=%v", event.EventID, err)
	}
}

// NewJournalEvent 从余额变更构建流水事件
func NewJournalEvent(change ledger.Change) *JournalEvent {
	return &JournalEvent{
		EventID:         fmt.Sprintf("%s_%d_%d", change.Type, change.Seq, change.CustomerID),
		Seq:             change.Seq,
		CustomerID:      change.CustomerID,
		AssetName:       change.AssetName,
		ChangeType:      string(change.Type),
		Amount:          change.Amount,
		AvailableBefore: change.AvailableBefore,
		AvailableAfter:  change.AvailableAfter,
		ReservedBefore:  change.ReservedBefore,
		ReservedAfter:   change.ReservedAfter,
		BizRef:          change.Ref,
		CreatedAt:       time.Now(),
	}
}
