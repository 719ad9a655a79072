// 文件: pkg/fund/model.go
// 冷资产模块 - 事件与存储模型
//
// 台账 (热端) 的每次余额变更都会生成流水事件和余额快照，
// 通过 Kafka/NATS 传给 DBWriter 落入 MySQL 冷存储

package fund

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// 常量定义
// =============================================================================

// Kafka Topic / NATS Subject
const (
	TopicJournalEvents = "brokerage_journal_events" // 余额流水
	TopicBalanceEvents = "brokerage_balance_events" // 余额快照
)

// =============================================================================
// 流水事件
// =============================================================================

// JournalEvent 流水事件
// 每次余额变动一条，EventID 作幂等键
type JournalEvent struct {
	// ===== 唯一标识 =====
	EventID string `json:"event_id"` // 幂等键 (格式: {type}_{seq}_{customer})
	Seq     uint64 `json:"seq"`      // 台账序列号

	// ===== 客户信息 =====
	CustomerID int64  `json:"customer_id"`
	AssetName  string `json:"asset_name"`

	// ===== 变更信息 =====
	ChangeType string          `json:"change_type"` // RESERVE/RELEASE/SETTLE_DEBIT/SETTLE_CREDIT/DEPOSIT
	Amount     decimal.Decimal `json:"amount"`      // 变动金额 (正数)

	// ===== 变更前后余额 =====
	AvailableBefore decimal.Decimal `json:"available_before"`
	AvailableAfter  decimal.Decimal `json:"available_after"`
	ReservedBefore  decimal.Decimal `json:"reserved_before"`
	ReservedAfter   decimal.Decimal `json:"reserved_after"`

	// ===== 关联业务 =====
	BizRef string `json:"biz_ref"` // 订单引用 / "deposit"

	// ===== 时间 =====
	CreatedAt time.Time `json:"created_at"`
}

// ToJSON 序列化为 JSON
func (e *JournalEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON 从 JSON 反序列化
func (e *JournalEvent) FromJSON(data []byte) error {
	return json.Unmarshal(data, e)
}

// =============================================================================
// 余额快照事件
// =============================================================================

// BalanceSnapshot 余额快照
// 用于更新 MySQL 余额表
type BalanceSnapshot struct {
	EventID    string          `json:"event_id"` // 关联的流水 EventID
	CustomerID int64           `json:"customer_id"`
	AssetName  string          `json:"asset_name"`
	Available  decimal.Decimal `json:"available"`
	Reserved   decimal.Decimal `json:"reserved"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// =============================================================================
// kafka.Message 接口实现
// =============================================================================

// Topic 返回 Kafka topic
func (e *JournalEvent) Topic() string {
	return TopicJournalEvents
}

// Key 返回分区 key (按客户分区保证顺序)
func (e *JournalEvent) Key() string {
	return strconv.FormatInt(e.CustomerID, 10)
}

// Value 返回序列化后的消息体
func (e *JournalEvent) Value() ([]byte, error) {
	return json.Marshal(e)
}

// Topic 返回 Kafka topic
func (s *BalanceSnapshot) Topic() string {
	return TopicBalanceEvents
}

// Key 返回分区 key
func (s *BalanceSnapshot) Key() string {
	return strconv.FormatInt(s.CustomerID, 10)
}

// Value 返回序列化后的消息体
func (s *BalanceSnapshot) Value() ([]byte, error) {
	return json.Marshal(s)
}

// =============================================================================
// 数据库模型
// =============================================================================

// BalanceRecord MySQL 余额表记录
type BalanceRecord struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	CustomerID int64           `gorm:"column:customer_id;uniqueIndex:uk_customer_asset"`
	AssetName  string          `gorm:"column:asset_name;type:varchar(32);uniqueIndex:uk_customer_asset"`
	Available  decimal.Decimal `gorm:"column:available;type:decimal(32,8)"`
	Reserved   decimal.Decimal `gorm:"column:reserved;type:decimal(32,8)"`
	Version    int             `gorm:"column:version"` // 乐观锁
	UpdatedAt  time.Time       `gorm:"column:updated_at"`
}

func (BalanceRecord) TableName() string {
	return "balances"
}

// JournalRecord MySQL 流水表记录
type JournalRecord struct {
	ID              int64           `gorm:"primaryKey;autoIncrement"`
	EventID         string          `gorm:"column:event_id;uniqueIndex"`
	CustomerID      int64           `gorm:"column:customer_id;index"`
	AssetName       string          `gorm:"column:asset_name;type:varchar(32)"`
	ChangeType      string          `gorm:"column:change_type;type:varchar(16)"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(32,8)"`
	AvailableBefore decimal.Decimal `gorm:"column:available_before;type:decimal(32,8)"`
	AvailableAfter  decimal.Decimal `gorm:"column:available_after;type:decimal(32,8)"`
	ReservedBefore  decimal.Decimal `gorm:"column:reserved_before;type:decimal(32,8)"`
	ReservedAfter   decimal.Decimal `gorm:"column:reserved_after;type:decimal(32,8)"`
	BizRef          string          `gorm:"column:biz_ref;type:varchar(64);index"`
	CreatedAt       time.Time       `gorm:"column:created_at;index"`
}

func (JournalRecord) TableName() string {
	return "journals"
}
