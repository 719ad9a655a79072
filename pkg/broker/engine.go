// 文件: pkg/broker/engine.go
// 订单引擎 - 连接订单仓库和资产台账
//
// 核心职责:
// 1. 下单前: 调用台账预留资金/持仓
// 2. 结算后: 调用台账完成资产交割
// 3. 撤单后: 调用台账解除预留
//
// 引擎是两个存储之间唯一的写入方，其他路径只读。
// 每个操作是一个原子业务事务: 预留+建单、撤销+解冻、结算+交割
// 都不允许只落一半
//
// 架构:
//
//   API 层 (外部) → Engine.CreateOrder → ledger.Reserve()
//                        ↓
//                  orders.Create() (PENDING)
//                        ↓
//            MatchOrder / CancelOrder (fetch-and-claim)
//                        ↓
//            ledger.SettleDebit/SettleCredit / ledger.Release

package broker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"brokex.com/pkg/ledger"
	"brokex.com/pkg/order"
)

// =============================================================================
// 错误定义
// =============================================================================

var (
	ErrInvalidSide      = errors.New("invalid order side")
	ErrPermissionDenied = errors.New("no permission to cancel this order")
	ErrOrderNotPending  = errors.New("only pending orders can be canceled")
)

// AdminCustomerID 管理员标记
// 撤单请求带 0 表示管理员操作，跳过归属校验 (权限判定在外层完成)
const AdminCustomerID int64 = 0

// DefaultSettlementAsset 默认结算货币
const DefaultSettlementAsset = "TRY"

// =============================================================================
// Engine - 订单引擎
// =============================================================================

// Config 引擎配置
type Config struct {
	Ledger *ledger.Ledger
	Orders order.Repository

	// SettlementAsset 结算货币符号，为空则用 TRY
	SettlementAsset string

	// Index 查询侧 Redis 索引 (可选，尽力维护)
	Index *order.RedisIndex

	// Now 时钟 (可选，默认 time.Now，测试可注入)
	Now func() time.Time
}

// Engine 订单引擎
type Engine struct {
	ledger     *ledger.Ledger
	orders     order.Repository
	settlement string
	index      *order.RedisIndex
	now        func() time.Time
}

// NewEngine 创建订单引擎
func NewEngine(cfg Config) *Engine {
	if cfg.SettlementAsset == "" {
		cfg.SettlementAsset = DefaultSettlementAsset
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		ledger:     cfg.Ledger,
		orders:     cfg.Orders,
		settlement: cfg.SettlementAsset,
		index:      cfg.Index,
		now:        cfg.Now,
	}
}

// SettlementAsset 返回结算货币符号
func (e *Engine) SettlementAsset() string {
	return e.settlement
}

// orderRef 台账流水里的业务引用
func orderRef(orderID int64) string {
	return "order_" + strconv.FormatInt(orderID, 10)
}

// =============================================================================
// 下单
// =============================================================================

// CreateOrder 创建订单
//
// 流程:
// 1. 参数校验 (size > 0, price > 0)
// 2. 按方向推导预留: BUY 预留 size*price 的结算货币，SELL 预留 size 的标的
// 3. 预留成功后才落单 (PENDING)；落单失败则补偿性解除预留
//
// 预留失败时订单不会被创建，任何失败都回到操作前的状态
func (e *Engine) CreateOrder(ctx context.Context, customerID int64, assetName string, side order.Side, size, price decimal.Decimal) (*order.Order, error) {
	if !side.Valid() {
		return nil, ErrInvalidSide
	}
	if !size.IsPositive() || !price.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	o := order.NewOrder(order.NextOrderID(), customerID, assetName, side, size, price, e.now())

	// 1. 预留
	reserveAsset, reserveAmt := o.Reservation(e.settlement)
	if err := e.ledger.Reserve(customerID, reserveAsset, reserveAmt, orderRef(o.OrderID)); err != nil {
		return nil, err
	}

	// 2. 落单；失败则把预留退回去再报错
	if err := e.orders.Create(ctx, o); err != nil {
		if relErr := e.ledger.Release(customerID, reserveAsset, reserveAmt, orderRef(o.OrderID)); relErr != nil {
			return nil, errors.Join(err, relErr)
		}
		return nil, err
	}

	e.refreshIndex(ctx, o, true)
	log.Printf("[Broker] order created: id=%d customer=%d %s %s size=%s price=%s (reserved %s %s)",
		o.OrderID, customerID, side, assetName, size, price, reserveAmt, reserveAsset)
	return o, nil
}

// =============================================================================
// 撤单
// =============================================================================

// CancelOrder 撤销订单
//
// actingCustomerID 为发起人；AdminCustomerID (0) 表示管理员，跳过归属校验。
// 只有 PENDING 订单可撤。状态迁移是 claim: 与并发的结算恰好一方成功
func (e *Engine) CancelOrder(ctx context.Context, orderID, actingCustomerID int64) (*order.Order, error) {
	o, err := e.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if actingCustomerID != AdminCustomerID && o.CustomerID != actingCustomerID {
		log.Printf("[Broker] cancel denied: order %d belongs to %d, requested by %d",
			orderID, o.CustomerID, actingCustomerID)
		return nil, ErrPermissionDenied
	}

	// 抢占 PENDING -> CANCELED
	if err := e.orders.UpdateStatusFrom(ctx, orderID, order.StatusPending, order.StatusCanceled); err != nil {
		if errors.Is(err, order.ErrInvalidTransition) {
			return nil, ErrOrderNotPending
		}
		return nil, err
	}

	// 抢占成功后解除预留，推导规则与下单完全一致
	releaseAsset, releaseAmt := o.Reservation(e.settlement)
	if err := e.ledger.Release(o.CustomerID, releaseAsset, releaseAmt, orderRef(orderID)); err != nil {
		// 预留对不上订单推导，资金不变量已破坏，带上下文直接上抛
		return nil, errors.Join(fmt.Errorf("release reservation for order %d", orderID), err)
	}

	o.Status = order.StatusCanceled
	e.refreshIndex(ctx, o, false)
	log.Printf("[Broker] order canceled: id=%d, released %s %s", orderID, releaseAmt, releaseAsset)
	return o, nil
}

// =============================================================================
// 结算 (管理员 match)
// =============================================================================

// MatchOrder 结算订单
//
// fetch-and-claim: 先按 (orderID, PENDING) 读取，再做条件状态迁移。
// 并发的两次结算、或结算与撤单竞争，恰好一方观察到 PENDING 并成功，
// 另一方拿到 NotFound
//
// 资产交割:
// - BUY:  获得标的 (total/available 同增)，预留的结算货币被永久支出 (total 减)
// - SELL: 预留的标的被永久支出，结算货币入账
func (e *Engine) MatchOrder(ctx context.Context, orderID int64) (*order.Order, error) {
	o, err := e.orders.GetByOrderIDAndStatus(ctx, orderID, order.StatusPending)
	if err != nil {
		return nil, err
	}

	if err := e.orders.UpdateStatusFrom(ctx, orderID, order.StatusPending, order.StatusMatched); err != nil {
		if errors.Is(err, order.ErrInvalidTransition) {
			// 读和写之间被并发操作抢走了，等同订单已不在 PENDING
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}

	quote := o.Size.Mul(o.Price)
	ref := orderRef(orderID)

	if o.Side == order.SideBuy {
		// 买入: 标的入账，预留的 TRY 出账
		if err := e.ledger.SettleCredit(o.CustomerID, o.AssetName, o.Size, ref); err != nil {
			return nil, errors.Join(fmt.Errorf("settle credit for order %d", orderID), err)
		}
		if err := e.ledger.SettleDebit(o.CustomerID, e.settlement, quote, ref); err != nil {
			return nil, errors.Join(fmt.Errorf("settle debit for order %d", orderID), err)
		}
	} else {
		// 卖出: 预留的标的出账，TRY 入账
		if err := e.ledger.SettleDebit(o.CustomerID, o.AssetName, o.Size, ref); err != nil {
			return nil, errors.Join(fmt.Errorf("settle debit for order %d", orderID), err)
		}
		if err := e.ledger.SettleCredit(o.CustomerID, e.settlement, quote, ref); err != nil {
			return nil, errors.Join(fmt.Errorf("settle credit for order %d", orderID), err)
		}
	}

	o.Status = order.StatusMatched
	e.refreshIndex(ctx, o, false)
	log.Printf("[Broker] order matched: id=%d customer=%d %s %s size=%s quote=%s",
		orderID, o.CustomerID, o.Side, o.AssetName, o.Size, quote)
	return o, nil
}

// =============================================================================
// 入金 (引导/种子数据用)
// =============================================================================

// Deposit 初始入金
// 订单路径之外的资金入口，引导流程为每个新客户调用一次
func (e *Engine) Deposit(customerID int64, assetName string, amount decimal.Decimal) error {
	return e.ledger.Credit(customerID, assetName, amount, "deposit")
}

// =============================================================================
// 查询 (只读)
// =============================================================================

// GetOrders 查询客户在日期区间内的订单 (createdAt 升序)
func (e *Engine) GetOrders(ctx context.Context, customerID int64, start, end time.Time) ([]*order.Order, error) {
	return e.orders.Query(ctx, order.Filter{
		CustomerID: customerID,
		Start:      start,
		End:        end,
	})
}

// ListOrders 带全部过滤条件的订单查询
func (e *Engine) ListOrders(ctx context.Context, filter order.Filter) ([]*order.Order, error) {
	return e.orders.Query(ctx, filter)
}

// GetBalance 查询单个资产余额
func (e *Engine) GetBalance(customerID int64, assetName string) (ledger.AssetBalance, error) {
	return e.ledger.GetBalance(customerID, assetName)
}

// ListBalances 查询客户全部余额
func (e *Engine) ListBalances(customerID int64, filter ledger.ListFilter) []ledger.AssetBalance {
	return e.ledger.GetBalances(customerID, filter)
}

// =============================================================================
// 辅助
// =============================================================================

// refreshIndex 维护查询侧 Redis 索引
// 索引是缓存，失败只记日志，不影响主流程
func (e *Engine) refreshIndex(ctx context.Context, o *order.Order, created bool) {
	if e.index == nil {
		return
	}
	var err error
	if created {
		err = e.index.Index(ctx, o)
	} else {
		err = e.index.Refresh(ctx, o)
	}
	if err != nil {
		log.Printf("[Broker] redis index update failed: order=%d err=%v", o.OrderID, err)
	}
}
