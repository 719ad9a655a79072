// 文件: pkg/broker/engine_test.go
// 订单引擎测试
//
// 测试策略:
// 1. 下单-撤单-结算的余额语义 (买/卖两个方向)
// 2. 失败路径不留半截状态
// 3. 并发结算/撤单的互斥性

package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"brokex.com/pkg/ledger"
	"brokex.com/pkg/order"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// setupEngine 创建测试环境
func setupEngine(t *testing.T) (*Engine, *ledger.Ledger) {
	t.Helper()
	l := ledger.New()
	e := NewEngine(Config{
		Ledger: l,
		Orders: order.NewMemoryRepository(),
	})
	return e, l
}

func requireBalance(t *testing.T, l *ledger.Ledger, customerID int64, asset string, total, available int64) {
	t.Helper()
	bal, err := l.GetBalance(customerID, asset)
	if err != nil {
		t.Fatalf("GetBalance(%d, %s) failed: %v", customerID, asset, err)
	}
	if !bal.Total.Equal(dec(total)) || !bal.Available.Equal(dec(available)) {
		t.Fatalf("%s balance: expected %d/%d, got %s/%s",
			asset, total, available, bal.Total, bal.Available)
	}
}

// TestEngine_CreateBuyOrder 场景 A: 下买单预留结算货币
func TestEngine_CreateBuyOrder(t *testing.T) {
	e, l := setupEngine(t)
	e.Deposit(1, "TRY", dec(10000))

	o, err := e.CreateOrder(context.Background(), 1, "AAPL", order.SideBuy, dec(10), dec(150))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if o.Status != order.StatusPending {
		t.Errorf("new order must be PENDING, got %s", o.Status)
	}

	// TRY: available 8500, total 不变
	requireBalance(t, l, 1, "TRY", 10000, 8500)
}

// TestEngine_CancelBuyOrder 场景 B: 撤单后余额精确恢复
func TestEngine_CancelBuyOrder(t *testing.T) {
	e, l := setupEngine(t)
	e.Deposit(1, "TRY", dec(10000))

	o, _ := e.CreateOrder(context.Background(), 1, "AAPL", order.SideBuy, dec(10), dec(150))

	canceled, err := e.CancelOrder(context.Background(), o.OrderID, 1)
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if canceled.Status != order.StatusCanceled {
		t.Errorf("expected CANCELED, got %s", canceled.Status)
	}

	requireBalance(t, l, 1, "TRY", 10000, 10000)
}

// TestEngine_MatchBuyOrder 场景 C: 结算买单完成交割
func TestEngine_MatchBuyOrder(t *testing.T) {
	e, l := setupEngine(t)
	e.Deposit(1, "TRY", dec(10000))

	o, _ := e.CreateOrder(context.Background(), 1, "AAPL", order.SideBuy, dec(10), dec(150))

	matched, err := e.MatchOrder(context.Background(), o.OrderID)
	if err != nil {
		t.Fatalf("MatchOrder failed: %v", err)
	}
	if matched.Status != order.StatusMatched {
		t.Errorf("expected MATCHED, got %s", matched.Status)
	}

	// TRY total 降到 8500 (available 在下单时已经到 8500)
	requireBalance(t, l, 1, "TRY", 8500, 8500)
	// AAPL total/available 各增 10
	requireBalance(t, l, 1, "AAPL", 10, 10)
}

// TestEngine_InsufficientFunds 场景 D: 余额不足时既不建单也不动余额
func TestEngine_InsufficientFunds(t *testing.T) {
	e, l := setupEngine(t)
	e.Deposit(1, "TRY", dec(100))

	_, err := e.CreateOrder(context.Background(), 1, "AAPL", order.SideBuy, dec(10), dec(150))
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	requireBalance(t, l, 1, "TRY", 100, 100)

	orders, _ := e.GetOrders(context.Background(), 1, time.Time{}, time.Time{})
	if len(orders) != 0 {
		t.Errorf("no order must exist after failed create, got %d", len(orders))
	}
}

// failingCreateRepo 建单必败的仓库，用于验证预留回滚
type failingCreateRepo struct {
	*order.MemoryRepository
	err error
}

func (r *failingCreateRepo) Create(ctx context.Context, o *order.Order) error {
	return r.err
}

// TestEngine_CreateRollbackOnStoreFailure 落单失败时预留必须补偿性解除
func TestEngine_CreateRollbackOnStoreFailure(t *testing.T) {
	l := ledger.New()
	storeErr := errors.New("order store unavailable")
	e := NewEngine(Config{
		Ledger: l,
		Orders: &failingCreateRepo{MemoryRepository: order.NewMemoryRepository(), err: storeErr},
	})
	e.Deposit(1, "TRY", dec(10000))

	_, err := e.CreateOrder(context.Background(), 1, "AAPL", order.SideBuy, dec(10), dec(150))
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error to surface, got %v", err)
	}

	// 余额回到操作前: 预留已退回，没有资金被搁置
	requireBalance(t, l, 1, "TRY", 10000, 10000)

	orders, _ := e.GetOrders(context.Background(), 1, time.Time{}, time.Time{})
	if len(orders) != 0 {
		t.Errorf("no order must exist after failed create, got %d", len(orders))
	}
}

// TestEngine_MatchTwice 场景 E: 已结算的订单再结算报 NotFound，余额不变
func TestEngine_MatchTwice(t *testing.T) {
	e, l := setupEngine(t)
	e.Deposit(1, "TRY", dec(10000))

	o, _ := e.CreateOrder(context.Background(), 1, "AAPL", order.SideBuy, dec(10), dec(150))
	if _, err := e.MatchOrder(context.Background(), o.OrderID); err != nil {
		t.Fatalf("first match failed: %v", err)
	}

	_, err := e.MatchOrder(context.Background(), o.OrderID)
	if !errors.Is(err, order.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on second match, got %v", err)
	}

	requireBalance(t, l, 1, "TRY", 8500, 8500)
	requireBalance(t, l, 1, "AAPL", 10, 10)
}

// TestEngine_SellRoundTrip 卖单: 预留标的，撤单精确恢复
func TestEngine_SellRoundTrip(t *testing.T) {
	e, l := setupEngine(t)
	e.Deposit(1, "AAPL", dec(50))

	o, err := e.CreateOrder(context.Background(), 1, "AAPL", order.SideSell, dec(10), dec(150))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	requireBalance(t, l, 1, "AAPL", 50, 40)

	if _, err := e.CancelOrder(context.Background(), o.OrderID, 1); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	requireBalance(t, l, 1, "AAPL", 50, 50)
}

// TestEngine_MatchSellOrder 卖单结算: 标的出账，TRY 入账
func TestEngine_MatchSellOrder(t *testing.T) {
	e, l := setupEngine(t)
	e.Deposit(1, "AAPL", dec(50))

	o, _ := e.CreateOrder(context.Background(), 1, "AAPL", order.SideSell, dec(10), dec(150))
	if _, err := e.MatchOrder(context.Background(), o.OrderID); err != nil {
		t.Fatalf("MatchOrder failed: %v", err)
	}

	requireBalance(t, l, 1, "AAPL", 40, 40)
	requireBalance(t, l, 1, "TRY", 1500, 1500)
}

// TestEngine_SellInsufficientHolding 持仓不足的卖单直接拒绝
func TestEngine_SellInsufficientHolding(t *testing.T) {
	e, _ := setupEngine(t)
	e.Deposit(1, "AAPL", dec(5))

	_, err := e.CreateOrder(context.Background(), 1, "AAPL", order.SideSell, dec(10), dec(150))
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

// TestEngine_Validation 非法参数
func TestEngine_Validation(t *testing.T) {
	e, _ := setupEngine(t)
	e.Deposit(1, "TRY", dec(10000))
	ctx := context.Background()

	if _, err := e.CreateOrder(ctx, 1, "AAPL", order.SideBuy, dec(0), dec(150)); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("zero size: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := e.CreateOrder(ctx, 1, "AAPL", order.SideBuy, dec(10), dec(-1)); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("negative price: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := e.CreateOrder(ctx, 1, "AAPL", "HOLD", dec(10), dec(150)); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("bad side: expected ErrInvalidSide, got %v", err)
	}
}

// TestEngine_CancelPermission 归属校验与管理员绕过
func TestEngine_CancelPermission(t *testing.T) {
	e, l := setupEngine(t)
	e.Deposit(1, "TRY", dec(10000))
	ctx := context.Background()

	o, _ := e.CreateOrder(ctx, 1, "AAPL", order.SideBuy, dec(10), dec(150))

	// 其他客户不能撤
	if _, err := e.CancelOrder(ctx, o.OrderID, 2); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	requireBalance(t, l, 1, "TRY", 10000, 8500)

	// 管理员 (0) 可以撤任何人的单
	if _, err := e.CancelOrder(ctx, o.OrderID, AdminCustomerID); err != nil {
		t.Fatalf("admin cancel failed: %v", err)
	}
	requireBalance(t, l, 1, "TRY", 10000, 10000)
}

// TestEngine_CancelNonPending 终态订单不可撤
func TestEngine_CancelNonPending(t *testing.T) {
	e, _ := setupEngine(t)
	e.Deposit(1, "TRY", dec(10000))
	ctx := context.Background()

	o, _ := e.CreateOrder(ctx, 1, "AAPL", order.SideBuy, dec(10), dec(150))
	e.MatchOrder(ctx, o.OrderID)

	if _, err := e.CancelOrder(ctx, o.OrderID, 1); !errors.Is(err, ErrOrderNotPending) {
		t.Fatalf("expected ErrOrderNotPending, got %v", err)
	}

	// 未知订单
	if _, err := e.CancelOrder(ctx, 424242, 1); !errors.Is(err, order.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

// TestEngine_DecimalExactness 小数价格的预留-撤单往返不漂移
func TestEngine_DecimalExactness(t *testing.T) {
	e, l := setupEngine(t)
	ctx := context.Background()
	e.Deposit(1, "TRY", decimal.RequireFromString("1000.10"))

	size := decimal.RequireFromString("3.7")
	price := decimal.RequireFromString("27.03")

	for i := 0; i < 100; i++ {
		o, err := e.CreateOrder(ctx, 1, "AAPL", order.SideBuy, size, price)
		if err != nil {
			t.Fatalf("iteration %d: create failed: %v", i, err)
		}
		if _, err := e.CancelOrder(ctx, o.OrderID, 1); err != nil {
			t.Fatalf("iteration %d: cancel failed: %v", i, err)
		}
	}

	bal, _ := l.GetBalance(1, "TRY")
	if !bal.Available.Equal(decimal.RequireFromString("1000.10")) {
		t.Errorf("expected exact 1000.10 after 100 round trips, got %s", bal.Available)
	}
}

// TestEngine_ConcurrentMatch 并发结算同一订单，恰好一次成功
func TestEngine_ConcurrentMatch(t *testing.T) {
	e, l := setupEngine(t)
	e.Deposit(1, "TRY", dec(10000))

	o, _ := e.CreateOrder(context.Background(), 1, "AAPL", order.SideBuy, dec(10), dec(150))

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.MatchOrder(context.Background(), o.OrderID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly 1 successful match, got %d", succeeded)
	}
	requireBalance(t, l, 1, "TRY", 8500, 8500)
	requireBalance(t, l, 1, "AAPL", 10, 10)
}

// TestEngine_ConcurrentCancelAndMatch 撤单与结算竞争，只有一方赢
func TestEngine_ConcurrentCancelAndMatch(t *testing.T) {
	e, l := setupEngine(t)

	for i := 0; i < 50; i++ {
		e.Deposit(1, "TRY", dec(1500))
		o, err := e.CreateOrder(context.Background(), 1, "AAPL", order.SideBuy, dec(10), dec(150))
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		var wg sync.WaitGroup
		var cancelErr, matchErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancelErr = e.CancelOrder(context.Background(), o.OrderID, 1)
		}()
		go func() {
			defer wg.Done()
			_, matchErr = e.MatchOrder(context.Background(), o.OrderID)
		}()
		wg.Wait()

		if (cancelErr == nil) == (matchErr == nil) {
			t.Fatalf("exactly one of cancel/match must win: cancel=%v match=%v", cancelErr, matchErr)
		}

		// 无论哪方赢，TRY 的不变量都成立: 赢家是撤单则全额恢复，是结算则被支出
		bal, _ := l.GetBalance(1, "TRY")
		if bal.Available.GreaterThan(bal.Total) {
			t.Fatalf("available %s exceeds total %s", bal.Available, bal.Total)
		}
		if !bal.Total.Sub(bal.Available).IsZero() {
			t.Fatalf("no reservation may remain after the race, total=%s available=%s", bal.Total, bal.Available)
		}
	}
}

// TestEngine_PendingReservationAccounting 挂单预留与 total-available 一致
func TestEngine_PendingReservationAccounting(t *testing.T) {
	e, l := setupEngine(t)
	e.Deposit(1, "TRY", dec(10000))
	ctx := context.Background()

	e.CreateOrder(ctx, 1, "AAPL", order.SideBuy, dec(10), dec(150)) // 1500
	e.CreateOrder(ctx, 1, "THYAO", order.SideBuy, dec(5), dec(200)) // 1000

	pending, _ := e.ListOrders(ctx, order.Filter{CustomerID: 1, Status: order.StatusPending})
	sum := decimal.Zero
	for _, o := range pending {
		_, amt := o.Reservation(e.SettlementAsset())
		sum = sum.Add(amt)
	}

	bal, _ := l.GetBalance(1, "TRY")
	if !bal.ReservedAmount().Equal(sum) {
		t.Errorf("reserved %s must equal pending reservation sum %s", bal.ReservedAmount(), sum)
	}
	if sum.GreaterThan(bal.Total) {
		t.Errorf("pending reservations %s exceed total %s", sum, bal.Total)
	}
}

// TestEngine_GetOrdersDateRange 日期区间查询升序返回
func TestEngine_GetOrdersDateRange(t *testing.T) {
	l := ledger.New()
	current := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	e := NewEngine(Config{
		Ledger: l,
		Orders: order.NewMemoryRepository(),
		Now:    func() time.Time { return current },
	})
	e.Deposit(1, "TRY", dec(100000))
	ctx := context.Background()

	first, _ := e.CreateOrder(ctx, 1, "AAPL", order.SideBuy, dec(1), dec(100))
	current = current.Add(24 * time.Hour)
	second, _ := e.CreateOrder(ctx, 1, "AAPL", order.SideBuy, dec(1), dec(100))
	current = current.Add(24 * time.Hour)
	e.CreateOrder(ctx, 1, "AAPL", order.SideBuy, dec(1), dec(100))

	got, err := e.GetOrders(ctx, 1,
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 2, 23, 59, 59, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetOrders failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 orders in range, got %d", len(got))
	}
	if got[0].OrderID != first.OrderID || got[1].OrderID != second.OrderID {
		t.Errorf("orders must be ascending by createdAt")
	}
}
