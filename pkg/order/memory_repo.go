// 文件: pkg/order/memory_repo.go
// 内存订单仓库
//
// 热端权威存储: 订单引擎直接读写这里，冷端 (MySQL/Redis) 通过事件异步跟进。
// 单把锁即可，订单操作都是短临界区

package order

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepository struct {
	orders map[int64]*Order
	mu     sync.RWMutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders: make(map[int64]*Order),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, order *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.OrderID]; ok {
		return ErrDuplicateOrderID
	}
	r.orders[order.OrderID] = order.Clone()
	return nil
}

func (r *MemoryRepository) GetByOrderID(ctx context.Context, orderID int64) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryRepository) GetByOrderIDAndStatus(ctx context.Context, orderID int64, status Status) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderID]
	if !ok || o.Status != status {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryRepository) Query(ctx context.Context, filter Filter) ([]*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Order, 0, 16)
	for _, o := range r.orders {
		if o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.AssetName != "" && o.AssetName != filter.AssetName {
			continue
		}
		if !filter.Start.IsZero() && o.CreatedAt.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && o.CreatedAt.After(filter.End) {
			continue
		}
		result = append(result, o.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].OrderID < result[j].OrderID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryRepository) UpdateStatusFrom(ctx context.Context, orderID int64, from, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != from || from.IsTerminal() {
		return ErrInvalidTransition
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}
