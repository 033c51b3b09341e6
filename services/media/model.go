package media

import "time"

type Type string

const (
	TypePhoto Type = "photo"
	TypeVideo Type = "video"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusDeleted  Status = "DELETED"
)

// Item is one uploaded photo or video. The upload pipeline delivers
// already-sized variants; the engine stores them, accounts their bytes and
// runs duplicate discovery on photos.
type Item struct {
	ID          string `gorm:"column:media_id;primaryKey"`
	EventID     string `gorm:"column:event_id;index;not null"`
	Type        Type   `gorm:"column:type;not null"`
	Status      Status `gorm:"column:status;index;not null;default:'PENDING'"`
	FileName    string `gorm:"column:file_name"`
	ContentType string `gorm:"column:content_type"`

	OriginalPath  string `gorm:"column:original_path"`
	OptimizedPath string `gorm:"column:optimized_path"`
	ThumbnailPath string `gorm:"column:thumbnail_path"`

	SizeBytes *int64 `gorm:"column:size_bytes"`
	Width     int    `gorm:"column:width"`
	Height    int    `gorm:"column:height"`

	ContentHash      string `gorm:"column:content_hash;index"`
	PerceptualHash   string `gorm:"column:perceptual_hash;index"` // hex-encoded 64-bit average hash
	QualityScore     float64 `gorm:"column:quality_score"`
	DuplicateGroupID string `gorm:"column:duplicate_group_id;index"`
	IsBestInGroup    bool   `gorm:"column:is_best_in_group"`

	Likes    int `gorm:"column:likes;default:0"`
	Comments int `gorm:"column:comments;default:0"`
	Views    int `gorm:"column:views;default:0"`

	DeletedAt  *time.Time `gorm:"column:deleted_at;index"`
	PurgeAfter *time.Time `gorm:"column:purge_after;index"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Paths returns every stored variant path, skipping empties.
func (m *Item) Paths() []string {
	paths := make([]string, 0, 3)
	for _, p := range []string{m.OriginalPath, m.OptimizedPath, m.ThumbnailPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
