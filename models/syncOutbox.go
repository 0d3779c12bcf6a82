package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
	"gorm.io/gorm"
)

// SyncOutboxRecord implements the transactional outbox for client sync:
// the row is written inside the mutating transaction but NOT published.
// Publishing to Pub/Sub happens asynchronously after commit, so a publish
// failure can never roll back a business write.
type SyncOutboxRecord struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	ReferenceId   int                 `gorm:"index;not null" json:"reference_id"`
	ReferenceType string              `gorm:"size:50;index;not null" json:"reference_type"`
	Action        SyncAction          `gorm:"size:10;not null" json:"action"`
	Payload       []byte              `gorm:"type:mediumblob" json:"payload"`
	PublishStatus OutboxPublishStatus `gorm:"size:10;index;not null;default:'PENDING'" json:"publish_status"`
	Attempts      int                 `gorm:"not null;default:0" json:"attempts"`
	CorrelationId string              `gorm:"size:40" json:"correlation_id"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	PublishedAt   *time.Time          `json:"published_at"`
}

func writeSyncOutbox(tx *gorm.DB, refType string, refId int, action SyncAction, obj interface{}) error {
	var payload []byte
	var err error
	if obj != nil {
		payload, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}

	record := SyncOutboxRecord{
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		Payload:       payload,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(tx.Statement.Context),
	}
	if err := tx.Create(&record).Error; err != nil {
		return utils.NewPersistenceError(err)
	}
	return nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

const syncOutboxLockKey = "sync-outbox-dispatch"
const syncOutboxBatchSize = 50
const syncOutboxMaxAttempts = 10

// DispatchPendingSyncMessages publishes pending outbox rows in id order.
// A redis lock serializes dispatchers across instances; losing the lock is
// not an error, another instance is draining.
func DispatchPendingSyncMessages(ctx context.Context, logger *logrus.Logger) (int, error) {
	locker := config.GetRedisLock()
	if locker != nil {
		lock, err := locker.Obtain(ctx, syncOutboxLockKey, 30*time.Second, nil)
		if err == redislock.ErrNotObtained {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		defer lock.Release(ctx)
	}

	db := config.GetDB()
	var pending []SyncOutboxRecord
	err := db.WithContext(ctx).
		Where("publish_status = ? AND attempts < ?", OutboxPublishStatusPending, syncOutboxMaxAttempts).
		Order("id ASC").
		Limit(syncOutboxBatchSize).
		Find(&pending).Error
	if err != nil {
		return 0, utils.NewPersistenceError(err)
	}

	published := 0
	for i := range pending {
		record := &pending[i]
		msg := config.SyncMessage{
			ID:            record.ID,
			OccurredAt:    record.CreatedAt,
			ReferenceId:   record.ReferenceId,
			ReferenceType: record.ReferenceType,
			Action:        string(record.Action),
			Payload:       record.Payload,
			CorrelationId: record.CorrelationId,
		}

		_, pubErr := config.PublishSyncMessage(ctx, msg)
		updates := map[string]interface{}{
			"attempts": record.Attempts + 1,
		}
		if pubErr != nil {
			config.LogError(logger, "syncOutbox", "DispatchPendingSyncMessages", "publish", record.ID, pubErr)
			if record.Attempts+1 >= syncOutboxMaxAttempts {
				updates["publish_status"] = OutboxPublishStatusFailed
			}
		} else {
			now := time.Now().UTC()
			updates["publish_status"] = OutboxPublishStatusPublished
			updates["published_at"] = &now
			published++
		}
		if err := db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
			return published, utils.NewPersistenceError(err)
		}
	}
	return published, nil
}

// ReplayFailedSyncMessages resets FAILED rows to PENDING. Ops tooling.
func ReplayFailedSyncMessages(ctx context.Context) (int64, error) {
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&SyncOutboxRecord{}).
		Where("publish_status = ?", OutboxPublishStatusFailed).
		Updates(map[string]interface{}{
			"publish_status": OutboxPublishStatusPending,
			"attempts":       0,
		})
	if res.Error != nil {
		return 0, utils.NewPersistenceError(res.Error)
	}
	return res.RowsAffected, nil
}
