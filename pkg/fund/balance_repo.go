// 文件: pkg/fund/balance_repo.go
// 冷资产模块 - 余额仓库 (GORM 实现)
//
// MySQL 冷存储: balances 余额表 + journals 流水表。
// 写入全部幂等 (EventID 唯一键 + INSERT IGNORE)，事件重放安全

package fund

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceRepo 余额仓库
type BalanceRepo struct {
	db *gorm.DB
}

// NewBalanceRepo 创建余额仓库
func NewBalanceRepo(db *gorm.DB) *BalanceRepo {
	return &BalanceRepo{db: db}
}

// =============================================================================
// 余额操作
// =============================================================================

// GetBalance 获取客户某资产的余额记录
// 不存在返回 (nil, nil)
func (r *BalanceRepo) GetBalance(ctx context.Context, customerID int64, assetName string) (*BalanceRecord, error) {
	var record BalanceRecord
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND asset_name = ?", customerID, assetName).
		First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetBalances 获取客户所有资产的余额记录
func (r *BalanceRepo) GetBalances(ctx context.Context, customerID int64) ([]*BalanceRecord, error) {
	var records []*BalanceRecord
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("asset_name ASC").
		Find(&records).Error
	return records, err
}

// UpsertBalance 用快照更新或插入余额
func (r *BalanceRepo) UpsertBalance(ctx context.Context, snapshot *BalanceSnapshot) error {
	record := &BalanceRecord{
		CustomerID: snapshot.CustomerID,
		AssetName:  snapshot.AssetName,
		Available:  snapshot.Available,
		Reserved:   snapshot.Reserved,
		UpdatedAt:  snapshot.UpdatedAt,
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "customer_id"}, {Name: "asset_name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"available":  snapshot.Available,
				"reserved":   snapshot.Reserved,
				"version":    gorm.Expr("version + 1"),
				"updated_at": snapshot.UpdatedAt,
			}),
		}).
		Create(record).Error
}

// =============================================================================
// 流水操作
// =============================================================================

// InsertJournal 插入流水 (幂等，重复 EventID 静默忽略)
func (r *BalanceRepo) InsertJournal(ctx context.Context, event *JournalEvent) error {
	record := &JournalRecord{
		EventID:         event.EventID,
		CustomerID:      event.CustomerID,
		AssetName:       event.AssetName,
		ChangeType:      event.ChangeType,
		Amount:          event.Amount,
		AvailableBefore: event.AvailableBefore,
		AvailableAfter:  event.AvailableAfter,
		ReservedBefore:  event.ReservedBefore,
		ReservedAfter:   event.ReservedAfter,
		BizRef:          event.BizRef,
		CreatedAt:       event.CreatedAt,
	}

	// INSERT IGNORE 效果
	return r.db.WithContext(ctx).
		Clauses(clause.Insert{Modifier: "IGNORE"}).
		Create(record).Error
}

// ListJournals 查询客户流水 (倒序分页)
func (r *BalanceRepo) ListJournals(ctx context.Context, customerID int64, assetName string, limit, offset int) ([]*JournalRecord, error) {
	query := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset)

	if assetName != "" {
		query = query.Where("asset_name = ?", assetName)
	}

	var records []*JournalRecord
	err := query.Find(&records).Error
	return records, err
}

// ListJournalsByRef 按业务引用查询流水 (如某个订单的全部资金动作)
func (r *BalanceRepo) ListJournalsByRef(ctx context.Context, bizRef string) ([]*JournalRecord, error) {
	var records []*JournalRecord
	err := r.db.WithContext(ctx).
		Where("biz_ref = ?", bizRef).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

// =============================================================================
// 事务支持
// =============================================================================

// SaveBalanceAndJournal 事务中同时保存流水和余额
func (r *BalanceRepo) SaveBalanceAndJournal(ctx context.Context, event *JournalEvent, snapshot *BalanceSnapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &BalanceRepo{db: tx}
		if err := txRepo.InsertJournal(ctx, event); err != nil {
			return err
		}
		return txRepo.UpsertBalance(ctx, snapshot)
	})
}
