// 文件: pkg/order/memory_repo_test.go
package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestOrder(orderID, customerID int64, asset string, createdAt time.Time) *Order {
	return NewOrder(orderID, customerID, asset, SideBuy,
		decimal.NewFromInt(10), decimal.NewFromInt(150), createdAt)
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	o := newTestOrder(1, 100, "AAPL", time.Now())
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.GetByOrderID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.Equal(t, int64(100), got.CustomerID)

	// 重复 ID 拒绝
	require.ErrorIs(t, repo.Create(ctx, newTestOrder(1, 100, "AAPL", time.Now())), ErrDuplicateOrderID)

	// 未知订单
	_, err = repo.GetByOrderID(ctx, 999)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestOrder(1, 100, "AAPL", time.Now())))

	got, _ := repo.GetByOrderID(ctx, 1)
	got.Status = StatusMatched // 改副本不能影响存储

	again, _ := repo.GetByOrderID(ctx, 1)
	require.Equal(t, StatusPending, again.Status)
}

func TestMemoryRepository_GetByOrderIDAndStatus(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestOrder(1, 100, "AAPL", time.Now())))

	got, err := repo.GetByOrderIDAndStatus(ctx, 1, StatusPending)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.OrderID)

	// 状态不匹配视同不存在
	_, err = repo.GetByOrderIDAndStatus(ctx, 1, StatusMatched)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemoryRepository_UpdateStatusFrom(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestOrder(1, 100, "AAPL", time.Now())))

	// PENDING -> MATCHED 成功
	require.NoError(t, repo.UpdateStatusFrom(ctx, 1, StatusPending, StatusMatched))

	// 终态后任何迁移都失败
	require.ErrorIs(t, repo.UpdateStatusFrom(ctx, 1, StatusPending, StatusCanceled), ErrInvalidTransition)
	require.ErrorIs(t, repo.UpdateStatusFrom(ctx, 1, StatusMatched, StatusCanceled), ErrInvalidTransition)

	// 未知订单
	require.ErrorIs(t, repo.UpdateStatusFrom(ctx, 999, StatusPending, StatusMatched), ErrOrderNotFound)
}

func TestMemoryRepository_Query(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	// 故意乱序创建，验证结果按 createdAt 升序
	require.NoError(t, repo.Create(ctx, newTestOrder(3, 100, "AAPL", base.Add(2*time.Hour))))
	require.NoError(t, repo.Create(ctx, newTestOrder(1, 100, "AAPL", base)))
	require.NoError(t, repo.Create(ctx, newTestOrder(2, 100, "THYAO", base.Add(time.Hour))))
	require.NoError(t, repo.Create(ctx, newTestOrder(4, 200, "AAPL", base))) // 其他客户

	all, err := repo.Query(ctx, Filter{CustomerID: 100})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []int64{1, 2, 3}, []int64{all[0].OrderID, all[1].OrderID, all[2].OrderID})

	// 资产过滤
	thyao, err := repo.Query(ctx, Filter{CustomerID: 100, AssetName: "THYAO"})
	require.NoError(t, err)
	require.Len(t, thyao, 1)

	// 日期区间 (含端点)
	ranged, err := repo.Query(ctx, Filter{
		CustomerID: 100,
		Start:      base,
		End:        base.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, ranged, 2)

	// 状态过滤
	require.NoError(t, repo.UpdateStatusFrom(ctx, 1, StatusPending, StatusCanceled))
	pending, err := repo.Query(ctx, Filter{CustomerID: 100, Status: StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestOrder_Reservation(t *testing.T) {
	buy := NewOrder(1, 100, "AAPL", SideBuy,
		decimal.NewFromInt(10), decimal.RequireFromString("150.5"), time.Now())
	asset, amount := buy.Reservation("TRY")
	require.Equal(t, "TRY", asset)
	require.True(t, amount.Equal(decimal.RequireFromString("1505")))

	sell := NewOrder(2, 100, "AAPL", SideSell,
		decimal.NewFromInt(10), decimal.RequireFromString("150.5"), time.Now())
	asset, amount = sell.Reservation("TRY")
	require.Equal(t, "AAPL", asset)
	require.True(t, amount.Equal(decimal.NewFromInt(10)))
}
