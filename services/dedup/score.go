package dedup

import (
	"strings"
	"time"

	"eventshare-engine/pkg/config"
	"eventshare-engine/services/media"
)

// File-size sanity band: photos inside it score a bonus, suspiciously tiny
// files are penalized.
const (
	sizeBandLow  = 100 << 10 // 100 KiB
	sizeBandHigh = 20 << 20  // 20 MiB
	sizeBandTiny = 20 << 10  // 20 KiB
)

// Score is the composite representative-selection score: base quality
// (resolution, file-size sanity, format) plus a recency bonus decaying
// over the configured window plus weighted engagement. Deterministic for
// identical inputs; ties are broken by id at the call site.
func Score(item *media.Item, now time.Time, cfg config.DedupConfig) float64 {
	score := qualityScore(item)

	ageDays := now.Sub(item.CreatedAt).Hours() / 24
	window := float64(cfg.RecencyWindowDays)
	if window > 0 && ageDays >= 0 && ageDays < window {
		score += cfg.RecencyMaxBonus * (1 - ageDays/window)
	}

	score += float64(item.Likes)*cfg.LikeWeight +
		float64(item.Comments)*cfg.CommentWeight +
		float64(item.Views)*cfg.ViewWeight

	return score
}

func qualityScore(item *media.Item) float64 {
	var score float64

	megapixels := float64(item.Width) * float64(item.Height) / 1e6
	if megapixels > 0 {
		if megapixels > 5 {
			megapixels = 5
		}
		score += megapixels * 10
	}

	if item.SizeBytes != nil {
		switch size := *item.SizeBytes; {
		case size >= sizeBandLow && size <= sizeBandHigh:
			score += 10
		case size > 0 && size < sizeBandTiny:
			score -= 10
		}
	}

	switch {
	case strings.Contains(item.ContentType, "webp"):
		score += 6
	case strings.Contains(item.ContentType, "jpeg"):
		score += 5
	case strings.Contains(item.ContentType, "png"):
		score += 3
	}

	return score
}
