// 文件: pkg/ledger/ledger.go
// 资产台账 - 原子余额操作
//
// 这是资金侧的唯一入口:
// - 订单引擎调用 Reserve/Release/SettleDebit/SettleCredit
// - 入金服务调用 Credit
// - 查询方调用 GetBalance/GetBalances (只读副本)
//
// 并发模型: 每个客户账户一把锁，单客户操作串行，跨客户互不竞争

package ledger

import (
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Ledger - 台账
// =============================================================================

// Ledger 资产台账
// 管理所有客户的余额，提供入金、预留、解除预留、结算等原子操作
type Ledger struct {
	accounts map[int64]*Account
	mu       sync.RWMutex

	// 流水序列号，全局递增
	sequence atomic.Uint64

	// 流水接收器 (可选)
	journal JournalSink
}

// New 创建台账
func New() *Ledger {
	return &Ledger{
		accounts: make(map[int64]*Account),
	}
}

// SetJournalSink 注入流水接收器
// 必须在开始处理业务前调用，运行中不可更换
func (l *Ledger) SetJournalSink(sink JournalSink) {
	l.journal = sink
}

// getAccount 获取客户账户 (不存在则创建)
func (l *Ledger) getAccount(customerID int64) *Account {
	l.mu.RLock()
	acc, ok := l.accounts[customerID]
	l.mu.RUnlock()

	if ok {
		return acc
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Double check
	if acc, ok = l.accounts[customerID]; ok {
		return acc
	}
	acc = NewAccount(customerID)
	l.accounts[customerID] = acc
	return acc
}

// emit 记录一条余额流水
// 在账户锁内调用，保证流水顺序与余额变更顺序一致
func (l *Ledger) emit(acc *Account, assetName string, typ ChangeType, amount decimal.Decimal, before Balance, bal *Balance, ref string) {
	if l.journal == nil {
		return
	}
	l.journal.BalanceChanged(Change{
		Seq:             l.sequence.Add(1),
		CustomerID:      acc.CustomerID,
		AssetName:       assetName,
		Type:            typ,
		Amount:          amount,
		AvailableBefore: before.Available,
		AvailableAfter:  bal.Available,
		ReservedBefore:  before.Reserved,
		ReservedAfter:   bal.Reserved,
		Ref:             ref,
	})
}

// =============================================================================
// 查询
// =============================================================================

// GetBalance 获取指定资产的余额视图
// 从未入金过的 (客户, 资产) 返回 ErrBalanceNotFound
func (l *Ledger) GetBalance(customerID int64, assetName string) (AssetBalance, error) {
	l.mu.RLock()
	acc, ok := l.accounts[customerID]
	l.mu.RUnlock()
	if !ok {
		return AssetBalance{}, ErrBalanceNotFound
	}

	acc.mu.RLock()
	defer acc.mu.RUnlock()

	bal, ok := acc.Balances[assetName]
	if !ok {
		return AssetBalance{}, ErrBalanceNotFound
	}
	return AssetBalance{
		CustomerID: customerID,
		AssetName:  assetName,
		Total:      bal.Total(),
		Available:  bal.Available,
	}, nil
}

// ListFilter 余额列表过滤条件
type ListFilter struct {
	AssetName    string // 为空则不过滤
	OnlyPositive bool   // 只返回总资产 > 0 的余额
}

// GetBalances 获取客户全部余额视图
// 未知客户返回空列表，不视为错误
func (l *Ledger) GetBalances(customerID int64, filter ListFilter) []AssetBalance {
	l.mu.RLock()
	acc, ok := l.accounts[customerID]
	l.mu.RUnlock()
	if !ok {
		return nil
	}

	acc.mu.RLock()
	defer acc.mu.RUnlock()

	result := make([]AssetBalance, 0, len(acc.Balances))
	for name, bal := range acc.Balances {
		if filter.AssetName != "" && filter.AssetName != name {
			continue
		}
		if filter.OnlyPositive && !bal.Total().IsPositive() {
			continue
		}
		result = append(result, AssetBalance{
			CustomerID: customerID,
			AssetName:  name,
			Total:      bal.Total(),
			Available:  bal.Available,
		})
	}
	return result
}

// =============================================================================
// 原子操作
// =============================================================================

// Credit 入金 (增加可用余额)
// 余额行不存在则创建，total 和 available 同时增加
func (l *Ledger) Credit(customerID int64, assetName string, amount decimal.Decimal, ref string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	acc := l.getAccount(customerID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	bal, ok := acc.Balances[assetName]
	if !ok {
		bal = &Balance{}
		acc.Balances[assetName] = bal
	}
	before := bal.Clone()
	bal.Available = bal.Available.Add(amount)

	l.emit(acc, assetName, ChangeDeposit, amount, before, bal, ref)
	return nil
}

// Reserve 预留资产 (可用 -> 预留)
// 下单前调用，available 不足返回 ErrInsufficientBalance
func (l *Ledger) Reserve(customerID int64, assetName string, amount decimal.Decimal, ref string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	acc := l.getAccount(customerID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	bal, ok := acc.Balances[assetName]
	if !ok || bal.Available.LessThan(amount) {
		return ErrInsufficientBalance
	}
	before := bal.Clone()
	bal.Available = bal.Available.Sub(amount)
	bal.Reserved = bal.Reserved.Add(amount)

	l.emit(acc, assetName, ChangeReserve, amount, before, bal, ref)
	return nil
}

// Release 解除预留 (预留 -> 可用)
// 撤单时调用。预留不足说明预留额与订单推导不一致，
// 属于程序性不变量破坏，直接报错，绝不截断补齐
func (l *Ledger) Release(customerID int64, assetName string, amount decimal.Decimal, ref string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	acc := l.getAccount(customerID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	bal, ok := acc.Balances[assetName]
	if !ok || bal.Reserved.LessThan(amount) {
		return ErrInsufficientReserved
	}
	before := bal.Clone()
	bal.Reserved = bal.Reserved.Sub(amount)
	bal.Available = bal.Available.Add(amount)

	l.emit(acc, assetName, ChangeRelease, amount, before, bal, ref)
	return nil
}

// SettleDebit 结算扣减 (消耗已预留资产)
// 订单成交时调用: 预留部分被永久支出，available 在下单时已经扣过，不再重复扣
func (l *Ledger) SettleDebit(customerID int64, assetName string, amount decimal.Decimal, ref string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	acc := l.getAccount(customerID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	bal, ok := acc.Balances[assetName]
	if !ok || bal.Reserved.LessThan(amount) {
		return ErrInsufficientReserved
	}
	before := bal.Clone()
	bal.Reserved = bal.Reserved.Sub(amount)

	l.emit(acc, assetName, ChangeSettleDebit, amount, before, bal, ref)
	return nil
}

// SettleCredit 结算入账 (获得新资产)
// 订单成交时调用: total 和 available 同时增加，余额行不存在则创建
func (l *Ledger) SettleCredit(customerID int64, assetName string, amount decimal.Decimal, ref string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	acc := l.getAccount(customerID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	bal, ok := acc.Balances[assetName]
	if !ok {
		bal = &Balance{}
		acc.Balances[assetName] = bal
	}
	before := bal.Clone()
	bal.Available = bal.Available.Add(amount)

	l.emit(acc, assetName, ChangeSettleCredit, amount, before, bal, ref)
	return nil
}
