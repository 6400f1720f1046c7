package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the dashboard
const (
	// TopicWorkbookStatus carries WorkbookStatus payloads
	TopicWorkbookStatus = "workbook_status"

	// TopicDashboard carries DashboardUpdate payloads; clients re-request the render model
	TopicDashboard = "dashboard"
)

// Event is one published message
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`    // e.g. "loading", "ready", "error", "reloaded"
	Data    json.RawMessage `json:"data"`    // Payload
	Version int             `json:"version"` // Per-topic sequence number, starting at 1
}

// Subscription receives events for one topic until closed
type Subscription interface {
	Topic() string
	Events() <-chan Event
	Close() error
}

// Publisher fans events out to topic subscribers
type Publisher interface {
	// Subscribe registers interest in topic; cancelling ctx closes the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish marshals data and delivers it to every current subscriber of topic
	Publish(topic string, eventType string, data interface{}) error

	Close() error
}

// WorkbookStatus describes the state of the loaded workbook
type WorkbookStatus struct {
	State    string `json:"state"` // loading, ready, error
	Path     string `json:"path"`
	Message  string `json:"message"`
	Links    int    `json:"links"`
	Nodes    int    `json:"nodes"`
	Revision int    `json:"revision"` // Increments on every successful load
}

// DashboardUpdate tells clients the render model changed
type DashboardUpdate struct {
	Reason   string `json:"reason"`
	Revision int    `json:"revision"`
}
