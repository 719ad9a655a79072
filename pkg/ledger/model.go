// 文件: pkg/ledger/model.go
// 资产台账 - 核心数据模型
//
// 设计目标:
// 1. 余额拆分为 Available + Reserved，挂单占用的资金不可重复使用
// 2. 总资产 = Available + Reserved，available <= total 由结构保证
// 3. 金额使用 decimal 精确运算，避免浮点漂移

package ledger

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// 错误定义
// =============================================================================

var (
	ErrBalanceNotFound      = errors.New("balance not found")
	ErrInsufficientBalance  = errors.New("insufficient available balance")
	ErrInsufficientReserved = errors.New("insufficient reserved balance")
	ErrInvalidAmount        = errors.New("invalid amount")
)

// =============================================================================
// Balance - 单个资产余额
// =============================================================================

// Balance 表示客户持有的某一种资产的余额状态
//
// 设计说明:
// - Available: 可用余额，可用于下单
// - Reserved: 预留余额，已被挂单占用，不能重复使用
// - 总资产 = Available + Reserved
type Balance struct {
	Available decimal.Decimal // 可用余额
	Reserved  decimal.Decimal // 预留余额 (挂单占用)
}

// Total 返回总资产 (可用 + 预留)
func (b *Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Reserved)
}

// Clone 创建副本 (用于对外快照)
func (b *Balance) Clone() Balance {
	return Balance{
		Available: b.Available,
		Reserved:  b.Reserved,
	}
}

// =============================================================================
// AssetBalance - 对外余额视图
// =============================================================================

// AssetBalance 余额的只读视图
// 台账对外永远返回视图副本，调用方不可能绕过台账直接改余额
type AssetBalance struct {
	CustomerID int64           `json:"customer_id"`
	AssetName  string          `json:"asset_name"`
	Total      decimal.Decimal `json:"total"`
	Available  decimal.Decimal `json:"available"`
}

// ReservedAmount 返回被挂单占用的部分 (total - available)
func (a *AssetBalance) ReservedAmount() decimal.Decimal {
	return a.Total.Sub(a.Available)
}

// =============================================================================
// Account - 客户账户
// =============================================================================

// Account 表示一个客户的账户，包含多种资产
// 账户内所有余额变更都在 mu 保护下进行，跨客户操作互不竞争
type Account struct {
	CustomerID int64
	Balances   map[string]*Balance // AssetName -> Balance (如 "TRY", "AAPL")
	mu         sync.RWMutex
}

// NewAccount 创建新账户
func NewAccount(customerID int64) *Account {
	return &Account{
		CustomerID: customerID,
		Balances:   make(map[string]*Balance),
	}
}

// =============================================================================
// 余额变更 (供流水记录)
// =============================================================================

// ChangeType 变更类型
type ChangeType string

const (
	ChangeReserve      ChangeType = "RESERVE"       // 预留 (下单)
	ChangeRelease      ChangeType = "RELEASE"       // 解除预留 (撤单)
	ChangeSettleDebit  ChangeType = "SETTLE_DEBIT"  // 结算扣减 (消耗已预留资产)
	ChangeSettleCredit ChangeType = "SETTLE_CREDIT" // 结算入账 (获得新资产)
	ChangeDeposit      ChangeType = "DEPOSIT"       // 初始入金
)

// Change 一次余额变更的完整记录
// 每次成功的台账操作产生一条 Change，交给 JournalSink 落流水
type Change struct {
	Seq        uint64
	CustomerID int64
	AssetName  string
	Type       ChangeType
	Amount     decimal.Decimal

	AvailableBefore decimal.Decimal
	AvailableAfter  decimal.Decimal
	ReservedBefore  decimal.Decimal
	ReservedAfter   decimal.Decimal

	// 关联业务 (订单ID / 入金批次)
	Ref string
}

// JournalSink 流水接收器
// 由上层注入 (如 fund 包的事件发布器)，为 nil 时不记流水
type JournalSink interface {
	BalanceChanged(change Change)
}
