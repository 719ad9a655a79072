// 文件: pkg/order/model.go
// 订单模型与状态机

package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// 订单状态
// =============================================================================

// Status 订单状态
// 状态机单向: PENDING -> MATCHED 或 PENDING -> CANCELED
// MATCHED 和 CANCELED 是终态，不允许再迁移
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusMatched  Status = "MATCHED"
	StatusCanceled Status = "CANCELED"
)

// IsTerminal 是否为终态
func (s Status) IsTerminal() bool {
	return s == StatusMatched || s == StatusCanceled
}

// =============================================================================
// 订单方向
// =============================================================================

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid 方向是否合法
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// =============================================================================
// Order - 订单
// =============================================================================

// Order 订单记录
// OrderID 由雪花算法生成，CreatedAt 创建时写入一次，之后不可变
type Order struct {
	ID      uint  `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID int64 `gorm:"column:order_id;uniqueIndex" json:"order_id"`

	CustomerID int64  `gorm:"column:customer_id;index" json:"customer_id"`
	AssetName  string `gorm:"column:asset_name;type:varchar(32);index" json:"asset_name"`

	Side  Side            `gorm:"column:side;type:varchar(8)" json:"side"`
	Size  decimal.Decimal `gorm:"column:size;type:decimal(32,8)" json:"size"`
	Price decimal.Decimal `gorm:"column:price;type:decimal(32,8)" json:"price"`

	Status Status `gorm:"column:status;type:varchar(16);index" json:"status"`

	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// Clone 创建副本
// 仓库对外只返回副本，调用方改不到存储内的订单
func (o *Order) Clone() *Order {
	cp := *o
	return &cp
}

// Reservation 推导订单占用的资产与金额
//
// BUY:  占用结算货币，金额 = size * price
// SELL: 占用标的资产，金额 = size
//
// 下单、撤单、结算必须都走这一个推导，预留和释放才不会漂移
func (o *Order) Reservation(settlementAsset string) (assetName string, amount decimal.Decimal) {
	if o.Side == SideBuy {
		return settlementAsset, o.Size.Mul(o.Price)
	}
	return o.AssetName, o.Size
}

// NewOrder 创建新订单 (始终 PENDING)
func NewOrder(orderID, customerID int64, assetName string, side Side, size, price decimal.Decimal, now time.Time) *Order {
	return &Order{
		OrderID:    orderID,
		CustomerID: customerID,
		AssetName:  assetName,
		Side:       side,
		Size:       size,
		Price:      price,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
