// 文件: pkg/order/repository.go
package order

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateOrderID  = errors.New("duplicate order id")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Filter 订单查询条件
// CustomerID 必填，其余为空则不过滤
type Filter struct {
	CustomerID int64
	Status     Status
	AssetName  string
	Start      time.Time // 含
	End        time.Time // 含
}

type Repository interface {
	// 创建
	Create(ctx context.Context, order *Order) error

	// 查询
	GetByOrderID(ctx context.Context, orderID int64) (*Order, error)
	// GetByOrderIDAndStatus 状态不匹配视同不存在
	// 撤单/结算用它做 fetch-and-claim 读，避免读后写的竞态窗口
	GetByOrderIDAndStatus(ctx context.Context, orderID int64, status Status) (*Order, error)
	// Query 按 createdAt 升序返回，只读
	Query(ctx context.Context, filter Filter) ([]*Order, error)

	// UpdateStatusFrom 条件状态迁移
	// 仅当存储中状态等于 from 时迁移到 to，否则返回 ErrInvalidTransition;
	// 两个并发的迁移恰好一个成功
	UpdateStatusFrom(ctx context.Context, orderID int64, from, to Status) error
}
