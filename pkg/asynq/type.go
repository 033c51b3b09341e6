package asynq

const (
	// MediaDedupTask runs duplicate discovery for one ingested photo.
	MediaDedupTask = "media:dedup"
)

type MediaDedupPayload struct {
	MediaID string `json:"media_id"`
	EventID string `json:"event_id"`
}
