// 文件: pkg/order/mysql_repo.go
// MySQL 订单仓库 (GORM 实现)
//
// 条件状态迁移用 WHERE status = ? 的条件更新实现，
// RowsAffected = 0 说明抢占失败

package order

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type MySQLRepository struct {
	db *gorm.DB
}

func NewMySQLRepository(db *gorm.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (r *MySQLRepository) Create(ctx context.Context, order *Order) error {
	err := r.db.WithContext(ctx).Create(order).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateOrderID
	}
	return err
}

func (r *MySQLRepository) GetByOrderID(ctx context.Context, orderID int64) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *MySQLRepository) GetByOrderIDAndStatus(ctx context.Context, orderID int64, status Status) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, status).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *MySQLRepository) Query(ctx context.Context, filter Filter) ([]*Order, error) {
	query := r.db.WithContext(ctx).
		Where("customer_id = ?", filter.CustomerID).
		Order("created_at ASC, order_id ASC")

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AssetName != "" {
		query = query.Where("asset_name = ?", filter.AssetName)
	}
	if !filter.Start.IsZero() {
		query = query.Where("created_at >= ?", filter.Start)
	}
	if !filter.End.IsZero() {
		query = query.Where("created_at <= ?", filter.End)
	}

	var orders []*Order
	err := query.Find(&orders).Error
	return orders, err
}

func (r *MySQLRepository) UpdateStatusFrom(ctx context.Context, orderID int64, from, to Status) error {
	if from.IsTerminal() {
		return ErrInvalidTransition
	}

	result := r.db.WithContext(ctx).
		Model(&Order{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// 不存在和状态不匹配要区分开
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&Order{}).
			Where("order_id = ?", orderID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrOrderNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}
