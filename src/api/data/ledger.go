package data

import (
	"context"
	"errors"

	"github.com/navs-labs/navs-verify/src/api/types"
	"github.com/navs-labs/navs-verify/src/verify"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Ledger answers anchoring checks from the anchor index the watcher
// maintains: redis first, anchors table on a cache miss. An unknown
// hash is a definitive "not anchored"; only infrastructure failures
// surface as errors so the pipeline can degrade.
type Ledger struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewLedger(db *gorm.DB, rdb *redis.Client) *Ledger {
	return &Ledger{db: db, rdb: rdb}
}

func (l *Ledger) CheckAnchored(ctx context.Context, contentHash string) (verify.LedgerStatus, error) {
	if tx, err := GetAnchor(ctx, l.rdb, contentHash); err == nil && tx != "" {
		return verify.LedgerStatus{Anchored: true, TxReference: tx}, nil
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return verify.LedgerStatus{}, err
	}

	var anchor types.Anchor
	err := l.db.WithContext(ctx).First(&anchor, "content_hash = ?", contentHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return verify.LedgerStatus{Anchored: false}, nil
	}
	if err != nil {
		return verify.LedgerStatus{}, err
	}

	_ = SetAnchor(ctx, l.rdb, anchor.ContentHash, anchor.TxRef)
	return verify.LedgerStatus{Anchored: true, TxReference: anchor.TxRef}, nil
}
