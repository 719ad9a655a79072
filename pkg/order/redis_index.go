// 文件: pkg/order/redis_index.go
// Redis 订单索引
//
// 查询侧的读缓存: 每个客户一个 ZSET，score 为 createdAt 毫秒值，
// 日期区间查询直接落到 ZRANGEBYSCORE，不用扫订单表。
// 订单详情以 JSON 存在独立的 detail key 下

package order

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type RedisIndex struct {
	client *redis.Client
}

func NewRedisIndex(addr string) *RedisIndex {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisIndex{client: rdb}
}

// luaIndexOrder 写入脚本
// KEYS[1]: detailKey (order:detail:{orderID})
// KEYS[2]: indexKey (orders:cust:{customerID})
// ARGV[1]: orderID
// ARGV[2]: score (createdAt 毫秒)
// ARGV[3]: orderJSON
const luaIndexOrder = `
	redis.call('SET', KEYS[1], ARGV[3])
	redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
	return 1
`

// Index 写入订单索引 (创建时调用)
func (r *RedisIndex) Index(ctx context.Context, o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	detailKey := "order:detail:" + strconv.FormatInt(o.OrderID, 10)
	indexKey := "orders:cust:" + strconv.FormatInt(o.CustomerID, 10)
	return r.client.Eval(ctx, luaIndexOrder, []string{detailKey, indexKey},
		o.OrderID, o.CreatedAt.UnixMilli(), data).Err()
}

// Refresh 刷新订单详情 (状态迁移后调用)
// createdAt 不可变，score 不需要动
func (r *RedisIndex) Refresh(ctx context.Context, o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	detailKey := "order:detail:" + strconv.FormatInt(o.OrderID, 10)
	return r.client.Set(ctx, detailKey, data, 0).Err()
}

// QueryRange 按日期区间查询客户订单 (createdAt 升序)
// filter 的 Status/AssetName 在取回详情后过滤
func (r *RedisIndex) QueryRange(ctx context.Context, filter Filter) ([]*Order, error) {
	indexKey := "orders:cust:" + strconv.FormatInt(filter.CustomerID, 10)

	min, max := "-inf", "+inf"
	if !filter.Start.IsZero() {
		min = strconv.FormatInt(filter.Start.UnixMilli(), 10)
	}
	if !filter.End.IsZero() {
		max = strconv.FormatInt(filter.End.UnixMilli(), 10)
	}

	ids, err := r.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "order:detail:" + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	orders := make([]*Order, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// 详情已过期/被删，索引项跳过
			continue
		}
		var o Order
		if err := json.Unmarshal([]byte(s), &o); err != nil {
			return nil, err
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.AssetName != "" && o.AssetName != filter.AssetName {
			continue
		}
		orders = append(orders, &o)
	}
	return orders, nil
}

// Close 关闭连接
func (r *RedisIndex) Close() error {
	return r.client.Close()
}
