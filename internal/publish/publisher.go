package publish

// Publisher emits pipeline events for downstream consumers (feed
// builders, notification fan-out)
type Publisher interface {
	// Publish publishes a message under a key to one of the streams
	Publish(key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}

// Event keys published by the pipeline
const (
	KeyCampaignInserted = "campaign_inserted"
	KeyCampaignUpdated  = "campaign_updated"
	KeyCampaignExpired  = "campaign_expired"
	KeyRunCompleted     = "run_completed"
)
