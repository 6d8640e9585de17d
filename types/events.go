package types

import "time"

// EventBroker fans viewer events out to connected frontends. Publish never
// blocks the caller; events to slow or absent subscribers are dropped.
type EventBroker interface {
	LifecycleManager
	Publish(name string, payload interface{})
	SubscriberCount() int
}

type Event struct {
	Name      string      `json:"name"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	EventFolderOpened  = "folder.opened"
	EventImageLoaded   = "image.loaded"
	EventCacheEvicted  = "cache.evicted"
	EventSessionSaved  = "session.saved"
)
