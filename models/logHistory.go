package models

import (
	"context"
	"time"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
	"gorm.io/gorm"
)

// LogHistory is one entry in a daily log's append-only audit ledger, keyed
// by (log_id, seq) rather than rewritten as an array on every update.
// Entries are never reordered or deleted; every mutating operation appends
// exactly one entry describing itself.
type LogHistory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	LogId     int       `gorm:"uniqueIndex:idx_log_seq;not null" json:"log_id"`
	Seq       int       `gorm:"uniqueIndex:idx_log_seq;not null" json:"seq"`
	Action    LogAction `gorm:"size:30;not null" json:"action"`
	Details   string    `gorm:"type:text" json:"details"`
	UserId    int       `gorm:"index" json:"user_id"`
	UserName  string    `gorm:"size:100" json:"user_name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// appendLogHistory writes one ledger entry inside the caller's transaction.
// Seq is derived from the current ledger length under the same tx, so the
// (log_id, seq) unique index also guards against concurrent appenders.
func appendLogHistory(tx *gorm.DB, logId int, action LogAction, details string) error {
	ctx := tx.Statement.Context

	var maxSeq *int
	if err := tx.Model(&LogHistory{}).
		Where("log_id = ?", logId).
		Select("max(seq)").
		Scan(&maxSeq).Error; err != nil {
		return utils.NewPersistenceError(err)
	}
	seq := 1
	if maxSeq != nil {
		seq = *maxSeq + 1
	}

	entry := LogHistory{
		LogId:   logId,
		Seq:     seq,
		Action:  action,
		Details: details,
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		entry.UserId = userId
	}
	if userName, ok := utils.GetUserNameFromContext(ctx); ok {
		entry.UserName = userName
	}

	if err := tx.Create(&entry).Error; err != nil {
		return utils.NewPersistenceError(err)
	}
	return nil
}

// GetLogHistory returns a log's ledger in append order.
func GetLogHistory(ctx context.Context, logId int) ([]*LogHistory, error) {
	db := config.GetDB()
	var results []*LogHistory
	err := db.WithContext(ctx).
		Where("log_id = ?", logId).
		Order("seq ASC").
		Find(&results).Error
	if err != nil {
		return nil, utils.NewPersistenceError(err)
	}
	return results, nil
}
