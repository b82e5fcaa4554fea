package data

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/satyashodhak/factcheck-api/src/api/types"
	"gorm.io/gorm"
)

const trendingSize = 20

type trendingRow struct {
	ID    string
	Score int64
}

// TrendingService periodically ranks public verification results by vote and
// comment activity and caches the ranked id list in redis for the explore
// feed. Runs until the context is cancelled.
func TrendingService(ctx context.Context, db *gorm.DB, rdb *redis.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refreshTrending(ctx, db, rdb, interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("Trending service stopping")
			return
		case <-ticker.C:
			refreshTrending(ctx, db, rdb, interval)
		}
	}
}

func refreshTrending(ctx context.Context, db *gorm.DB, rdb *redis.Client, interval time.Duration) {
	var rows []trendingRow
	err := db.Model(&types.VerificationResult{}).
		Select("verification_results.id as id, " +
			"(select count(*) from verification_votes v where v.verification_id = verification_results.id) + " +
			"(select count(*) from comments c where c.claim_id = verification_results.id) as score").
		Where("is_public = ?", true).
		Order("score desc, updated_at desc").
		Limit(trendingSize).
		Scan(&rows).Error
	if err != nil {
		log.Printf("trending refresh query failed: %v", err)
		return
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	payload, _ := json.Marshal(ids)
	if err := rdb.Set(ctx, trendingKey, payload, 2*interval).Err(); err != nil {
		log.Printf("trending cache write failed: %v", err)
	}
}

// TrendingIDs returns the cached ranking, or nil when the cache is cold.
func TrendingIDs(ctx context.Context, rdb *redis.Client) []string {
	raw, err := rdb.Get(ctx, trendingKey).Result()
	if err != nil {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}
