package data

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/itering/substrate-api-rpc/client"
	"github.com/itering/substrate-api-rpc/expand"
	"github.com/navs-labs/navs-verify/src/api/types"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Institutions anchor issued certificates by submitting a system.remark
// of the form "NAVS:<sha256hex>". The watcher follows new heads and
// indexes every such remark into the anchors table and the redis cache.
const anchorRemarkPrefix = "NAVS:"

var anchorHashPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

func StartAnchorWatcher(ctx context.Context, rpcURL string, db *gorm.DB, rdb *redis.Client) {
	api, err := client.ConnectSub(rpcURL)
	if err != nil {
		log.Printf("anchor watcher connect: %v", err)
		return
	}

	sub, err := api.RPC.Chain.SubscribeNewHeads()
	if err != nil {
		log.Printf("anchor watcher head sub: %v", err)
		return
	}

	go func() {
		for {
			select {
			case head := <-sub.Chan():
				hash := head.Hash()
				block, err := api.RPC.Chain.GetBlock(hash)
				if err != nil {
					continue
				}

				for i, ext := range block.Block.Extrinsics {
					remarkBytes, err := expand.DecodeRemark(ext.Method.Args)
					if err != nil || len(remarkBytes) == 0 {
						continue
					}
					remark := strings.TrimSpace(string(remarkBytes))
					if !strings.HasPrefix(remark, anchorRemarkPrefix) {
						continue
					}
					digest := strings.TrimPrefix(remark, anchorRemarkPrefix)
					if !anchorHashPattern.MatchString(digest) {
						continue
					}

					anchor := types.Anchor{
						ContentHash: "SHA256:" + strings.ToLower(digest),
						TxRef:       fmt.Sprintf("%v-%d", hash, i),
						AnchoredAt:  time.Now().UTC(),
					}
					if err := db.FirstOrCreate(&anchor, types.Anchor{ContentHash: anchor.ContentHash}).Error; err != nil {
						log.Printf("anchor watcher store: %v", err)
						continue
					}
					_ = SetAnchor(ctx, rdb, anchor.ContentHash, anchor.TxRef)
				}

			case <-ctx.Done():
				sub.Unsubscribe()
				return
			}
		}
	}()
}
