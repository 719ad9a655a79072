// 文件: pkg/fund/recorder_test.go
// 冷资产模块 - 流水记录器测试

package fund

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"brokex.com/pkg/ledger"
)

// capturePublisher 测试发布器: 记录收到的事件
type capturePublisher struct {
	journals  []*JournalEvent
	snapshots []*BalanceSnapshot
	fail      bool
}

func (p *capturePublisher) PublishJournal(event *JournalEvent) error {
	if p.fail {
		return errors.New("broker down")
	}
	p.journals = append(p.journals, event)
	return nil
}

func (p *capturePublisher) PublishBalance(snapshot *BalanceSnapshot) error {
	if p.fail {
		return errors.New("broker down")
	}
	p.snapshots = append(p.snapshots, snapshot)
	return nil
}

func TestRecorder_BalanceChanged(t *testing.T) {
	pub := &capturePublisher{}
	recorder := NewRecorder(pub)

	change := ledger.Change{
		Seq:             42,
		CustomerID:      7,
		AssetName:       "TRY",
		Type:            ledger.ChangeReserve,
		Amount:          decimal.RequireFromString("1505"),
		AvailableBefore: decimal.RequireFromString("10000"),
		AvailableAfter:  decimal.RequireFromString("8495"),
		ReservedBefore:  decimal.Zero,
		ReservedAfter:   decimal.RequireFromString("1505"),
		Ref:             "order_1001",
	}
	recorder.BalanceChanged(change)

	require.Len(t, pub.journals, 1)
	event := pub.journals[0]
	require.Equal(t, "RESERVE_42_7", event.EventID)
	require.Equal(t, uint64(42), event.Seq)
	require.Equal(t, int64(7), event.CustomerID)
	require.Equal(t, "TRY", event.AssetName)
	require.Equal(t, string(ledger.ChangeReserve), event.ChangeType)
	require.True(t, event.Amount.Equal(decimal.RequireFromString("1505")))
	require.True(t, event.AvailableAfter.Equal(decimal.RequireFromString("8495")))
	require.Equal(t, "order_1001", event.BizRef)

	require.Len(t, pub.snapshots, 1)
	snapshot := pub.snapshots[0]
	require.Equal(t, event.EventID, snapshot.EventID)
	require.True(t, snapshot.Available.Equal(decimal.RequireFromString("8495")))
	require.True(t, snapshot.Reserved.Equal(decimal.RequireFromString("1505")))
}

// 发布失败不应 panic: 热端余额已是事实，冷端丢事件只记日志
func TestRecorder_PublishFailure(t *testing.T) {
	pub := &capturePublisher{fail: true}
	recorder := NewRecorder(pub)

	recorder.BalanceChanged(ledger.Change{
		Seq:        1,
		CustomerID: 1,
		AssetName:  "TRY",
		Type:       ledger.ChangeDeposit,
		Amount:     decimal.RequireFromString("100"),
	})

	require.Empty(t, pub.journals)
	require.Empty(t, pub.snapshots)
}

func TestJournalEvent_JSONRoundTrip(t *testing.T) {
	event := NewJournalEvent(ledger.Change{
		Seq:            3,
		CustomerID:     9,
		AssetName:      "AAPL",
		Type:           ledger.ChangeSettleCredit,
		Amount:         decimal.RequireFromString("10"),
		AvailableAfter: decimal.RequireFromString("10"),
		Ref:            "order_2002",
	})

	data, err := event.ToJSON()
	require.NoError(t, err)

	var decoded JournalEvent
	require.NoError(t, decoded.FromJSON(data))
	require.Equal(t, event.EventID, decoded.EventID)
	require.True(t, decoded.Amount.Equal(event.Amount))
	require.True(t, decoded.AvailableAfter.Equal(event.AvailableAfter))
}
