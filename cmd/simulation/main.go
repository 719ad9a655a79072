// 文件: cmd/simulation/main.go
// 经纪核心全流程演示
//
// 内存台账 + 内存订单库跑完整业务闭环:
// 入金 -> 下单 -> 撤单 -> 撮合结算 -> 余额不足拒单 -> 查询
// 设置 NATS_URL 环境变量可额外把流水事件发往 NATS

package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"brokex.com/pkg/broker"
	"brokex.com/pkg/fund"
	"brokex.com/pkg/ledger"
	"brokex.com/pkg/order"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// printBalances 打印客户全部余额
func printBalances(engine *broker.Engine, customerID int64) {
	balances := engine.ListBalances(customerID, ledger.ListFilter{})
	if len(balances) == 0 {
		log.Printf("[Query] customer=%d (no balances)", customerID)
		return
	}
	for _, b := range balances {
		log.Printf("[Query] customer=%d asset=%s total=%s available=%s",
			b.CustomerID, b.AssetName, b.Total.String(), b.Available.String())
	}
}

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Println("🚀 Starting Brokerage Simulation...")

	ctx := context.Background()

	// 1. 初始化 订单引擎
	// -------------------------------------------------------------------------
	if err := order.InitSnowflake(1); err != nil {
		log.Fatalf("Failed to init snowflake: %v", err)
	}

	book := ledger.New()

	// 可选: 流水事件发往 NATS (冷端落库由 fund.NatsDBWriter 消费)
	if url := os.Getenv("NATS_URL"); url != "" {
		publisher, err := fund.NewNatsEventPublisher(url)
		if err != nil {
			log.Fatalf("Failed to connect NATS: %v", err)
		}
		defer publisher.Close()
		book.SetJournalSink(fund.NewRecorder(publisher))
		log.Printf("✅ Journal events publishing to NATS at %s", url)
	}

	engine := broker.NewEngine(broker.Config{
		Ledger: book,
		Orders: order.NewMemoryRepository(),
	})
	log.Println("✅ Order Engine Started")

	// 2. 入金
	// -------------------------------------------------------------------------
	alice, bob := int64(1), int64(2)
	if err := engine.Deposit(alice, "TRY", mustDecimal("10000")); err != nil {
		log.Fatalf("Deposit failed: %v", err)
	}
	if err := engine.Deposit(bob, "TRY", mustDecimal("500")); err != nil {
		log.Fatalf("Deposit failed: %v", err)
	}
	if err := engine.Deposit(bob, "AAPL", mustDecimal("20")); err != nil {
		log.Fatalf("Deposit failed: %v", err)
	}
	log.Println("💰 Seeded: alice TRY=10000, bob TRY=500 AAPL=20")

	// 3. 下单 + 撤单
	// -------------------------------------------------------------------------
	buy1, err := engine.CreateOrder(ctx, alice, "AAPL", order.SideBuy,
		mustDecimal("10"), mustDecimal("150"))
	if err != nil {
		log.Fatalf("CreateOrder failed: %v", err)
	}
	log.Printf("[Order] 📝 CREATED: id=%d BUY 10 AAPL @ 150 (reserved 1500 TRY)", buy1.OrderID)
	printBalances(engine, alice)

	if _, err := engine.CancelOrder(ctx, buy1.OrderID, alice); err != nil {
		log.Fatalf("CancelOrder failed: %v", err)
	}
	log.Printf("[Order] 🗑 CANCELED: id=%d (1500 TRY released)", buy1.OrderID)
	printBalances(engine, alice)

	// 4. 下单 + 撮合结算
	// -------------------------------------------------------------------------
	buy2, err := engine.CreateOrder(ctx, alice, "AAPL", order.SideBuy,
		mustDecimal("10"), mustDecimal("150"))
	if err != nil {
		log.Fatalf("CreateOrder failed: %v", err)
	}
	sell, err := engine.CreateOrder(ctx, bob, "AAPL", order.SideSell,
		mustDecimal("10"), mustDecimal("150"))
	if err != nil {
		log.Fatalf("CreateOrder failed: %v", err)
	}

	for _, id := range []int64{buy2.OrderID, sell.OrderID} {
		if _, err := engine.MatchOrder(ctx, id); err != nil {
			log.Fatalf("MatchOrder failed: %v", err)
		}
		log.Printf("[Order] 🤝 MATCHED: id=%d", id)
	}
	printBalances(engine, alice)
	printBalances(engine, bob)

	// 重复撮合: 已终态订单必须拒绝
	if _, err := engine.MatchOrder(ctx, buy2.OrderID); err != nil {
		log.Printf("[Order] ✅ double match rejected: %v", err)
	}

	// 5. 余额不足拒单
	// -------------------------------------------------------------------------
	if _, err := engine.CreateOrder(ctx, bob, "AAPL", order.SideBuy,
		mustDecimal("100"), mustDecimal("150")); err != nil {
		log.Printf("[Order] ✅ insufficient funds rejected: %v", err)
	}

	// 6. 查询
	// -------------------------------------------------------------------------
	now := time.Now()
	orders, err := engine.GetOrders(ctx, alice, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		log.Fatalf("GetOrders failed: %v", err)
	}
	for _, o := range orders {
		log.Printf("[Query] order id=%d %s %s size=%s price=%s status=%s",
			o.OrderID, o.Side, o.AssetName, o.Size.String(), o.Price.String(), o.Status)
	}

	log.Println("🏁 Simulation complete")
}
