package dedup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"eventshare-engine/pkg/config"
	"eventshare-engine/pkg/objectstore"
	"eventshare-engine/services/media"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Result describes the outcome of duplicate discovery for one photo.
type Result struct {
	IsDuplicate bool    `json:"is_duplicate"`
	GroupID     string  `json:"duplicate_group_id,omitempty"`
	Similarity  float64 `json:"similarity"` // percent; 100 for exact matches
}

type Service struct {
	db    *gorm.DB
	store objectstore.Store
	cfg   config.DedupConfig
	now   func() time.Time
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Store  objectstore.Store
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		store: p.Store,
		cfg:   p.Config.Dedup,
		now:   time.Now,
	}
}

var Module = fx.Module("dedup.module",
	fx.Provide(NewService),
)

// Process runs duplicate discovery for one ingested photo. Exact content
// hash matches short-circuit the search; otherwise every photo in the same
// event with a stored perceptual hash is compared by Hamming distance.
// All matches merge into one group and the representative is recomputed.
func (s *Service) Process(ctx context.Context, mediaID string) (*Result, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	var item media.Item
	if err := s.db.WithContext(ctx).
		Where("media_id = ?", mediaID).
		First(&item).Error; err != nil {
		return nil, err
	}

	if item.Type != media.TypePhoto || item.DeletedAt != nil || item.Status == media.StatusDeleted {
		return &Result{}, nil
	}

	if err := s.ensurePerceptualHash(ctx, &item); err != nil {
		// A photo that cannot be decoded still participates in exact-hash
		// matching.
		zap.L().Warn("failed to compute perceptual hash",
			zap.String("media_id", item.ID), zap.Error(err))
	}

	exact, err := s.exactMatches(ctx, &item)
	if err != nil {
		return nil, err
	}

	var (
		matches    []media.Item
		similarity float64
	)
	if len(exact) > 0 {
		matches = exact
		similarity = 100
	} else if item.PerceptualHash != "" {
		matches, similarity, err = s.perceptualMatches(ctx, &item)
		if err != nil {
			return nil, err
		}
	}

	if len(matches) == 0 {
		return &Result{}, nil
	}

	groupID, err := s.mergeIntoGroup(ctx, &item, matches)
	if err != nil {
		return nil, err
	}

	if err := s.recomputeBestInGroup(ctx, groupID); err != nil {
		return nil, err
	}

	return &Result{IsDuplicate: true, GroupID: groupID, Similarity: similarity}, nil
}

// ensurePerceptualHash computes and persists the photo's average hash when
// it is missing, fetching the stored optimized variant (or the original).
func (s *Service) ensurePerceptualHash(ctx context.Context, item *media.Item) error {
	if item.PerceptualHash != "" {
		return nil
	}

	path := item.OptimizedPath
	if path == "" {
		path = item.OriginalPath
	}
	if path == "" {
		return errors.New("no stored variant to hash")
	}

	data, err := s.store.Get(ctx, path)
	if err != nil {
		return err
	}

	hash, width, height, err := HashImage(data)
	if err != nil {
		return err
	}

	item.PerceptualHash = EncodeHash(hash)
	updates := map[string]any{"perceptual_hash": item.PerceptualHash}
	if item.Width == 0 && item.Height == 0 {
		item.Width, item.Height = width, height
		updates["width"] = width
		updates["height"] = height
	}

	return s.db.WithContext(ctx).
		Model(&media.Item{}).
		Where("media_id = ?", item.ID).
		Updates(updates).Error
}

func (s *Service) exactMatches(ctx context.Context, item *media.Item) ([]media.Item, error) {
	if item.ContentHash == "" {
		return nil, nil
	}

	var matches []media.Item
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND media_id <> ? AND type = ? AND content_hash = ? AND deleted_at IS NULL AND status <> ?",
			item.EventID, item.ID, media.TypePhoto, item.ContentHash, media.StatusDeleted).
		Order("created_at ASC").
		Find(&matches).Error
	return matches, err
}

func (s *Service) perceptualMatches(ctx context.Context, item *media.Item) ([]media.Item, float64, error) {
	ownHash, err := DecodeHash(item.PerceptualHash)
	if err != nil {
		return nil, 0, fmt.Errorf("corrupt perceptual hash on %s: %w", item.ID, err)
	}

	var candidates []media.Item
	if err := s.db.WithContext(ctx).
		Where("event_id = ? AND media_id <> ? AND type = ? AND perceptual_hash <> '' AND deleted_at IS NULL AND status <> ?",
			item.EventID, item.ID, media.TypePhoto, media.StatusDeleted).
		Order("created_at ASC").
		Find(&candidates).Error; err != nil {
		return nil, 0, err
	}

	var (
		matches []media.Item
		minDist = 65
	)
	for _, cand := range candidates {
		candHash, err := DecodeHash(cand.PerceptualHash)
		if err != nil {
			zap.L().Warn("skipping candidate with corrupt perceptual hash",
				zap.String("media_id", cand.ID), zap.Error(err))
			continue
		}
		dist := HammingDistance(ownHash, candHash)
		if dist <= s.cfg.HammingThreshold {
			matches = append(matches, cand)
			if dist < minDist {
				minDist = dist
			}
		}
	}

	var similarity float64
	if len(matches) > 0 {
		similarity = (1 - float64(minDist)/64) * 100
	}
	return matches, similarity, nil
}

// mergeIntoGroup unifies the new photo and all matches (including any
// groups the matches already belong to) under one stable group key derived
// from the first match.
func (s *Service) mergeIntoGroup(ctx context.Context, item *media.Item, matches []media.Item) (string, error) {
	groupID := matches[0].DuplicateGroupID
	if groupID == "" {
		groupID = fmt.Sprintf("dup-%s", matches[0].ID)
	}

	ids := []string{item.ID}
	oldGroups := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
		if m.DuplicateGroupID != "" && m.DuplicateGroupID != groupID {
			oldGroups = append(oldGroups, m.DuplicateGroupID)
		}
	}

	return groupID, s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&media.Item{}).
			Where("media_id IN ?", ids).
			Update("duplicate_group_id", groupID).Error; err != nil {
			return err
		}
		if len(oldGroups) > 0 {
			// Absorb every member of the matches' previous groups so
			// membership stays symmetric.
			if err := tx.Model(&media.Item{}).
				Where("duplicate_group_id IN ?", oldGroups).
				Update("duplicate_group_id", groupID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// recomputeBestInGroup rescores every member and flags exactly one
// representative, breaking score ties by id.
func (s *Service) recomputeBestInGroup(ctx context.Context, groupID string) error {
	var members []media.Item
	if err := s.db.WithContext(ctx).
		Where("duplicate_group_id = ? AND deleted_at IS NULL AND status <> ?", groupID, media.StatusDeleted).
		Find(&members).Error; err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	now := s.now()
	scores := make(map[string]float64, len(members))
	for i := range members {
		scores[members[i].ID] = Score(&members[i], now, s.cfg)
	}

	sort.Slice(members, func(i, j int) bool {
		si, sj := scores[members[i].ID], scores[members[j].ID]
		if si != sj {
			return si > sj
		}
		return members[i].ID < members[j].ID
	})
	bestID := members[0].ID

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&media.Item{}).
			Where("duplicate_group_id = ?", groupID).
			Update("is_best_in_group", false).Error; err != nil {
			return err
		}
		for _, m := range members {
			if err := tx.Model(&media.Item{}).
				Where("media_id = ?", m.ID).
				Update("quality_score", scores[m.ID]).Error; err != nil {
				return err
			}
		}
		return tx.Model(&media.Item{}).
			Where("media_id = ?", bestID).
			Update("is_best_in_group", true).Error
	})
}
