package entities

import "time"

// CatalogAction describes what happened to a catalog entry
type CatalogAction string

const (
	CatalogActionCreated CatalogAction = "created"
	CatalogActionUpdated CatalogAction = "updated"
	CatalogActionDeleted CatalogAction = "deleted"
)

// CatalogEvent is published after a catalog mutation commits
type CatalogEvent struct {
	ID        string        `json:"id"`
	Kind      EntryKind     `json:"kind"`
	Action    CatalogAction `json:"action"`
	UUID      string        `json:"uuid"`
	Code      string        `json:"code"`
	Version   int           `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
}

// CatalogChannel returns the pub/sub channel for a kind's events
func CatalogChannel(kind EntryKind) string {
	return "catalog:" + string(kind)
}

// CatalogChannelPattern matches every catalog channel
const CatalogChannelPattern = "catalog:*"
