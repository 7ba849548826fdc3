// Package realtime carries row-change events from the write path to
// subscribed scopes, standing in for the managed backend's push channel. An
// in-memory hub serves a single instance; a Redis pub/sub bridge fans events
// across instances.
package realtime

import "encoding/json"

// Op is the kind of row change an event describes.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Tables that emit change events.
const (
	TableNotifications = "notifications"
	TablePosts         = "posts"
	TableComments      = "post_comments"
	TableReactions     = "post_reactions"
)

// ChangeEvent is one row change on a table, addressed to a scope key (the
// owning user id for notifications, the org id for feed tables). Row is the
// raw JSON row; consumers decode it at their boundary and reject what does
// not parse.
type ChangeEvent struct {
	Op    Op              `json:"op"`
	Table string          `json:"table"`
	Scope string          `json:"scope"`
	Row   json.RawMessage `json:"row,omitempty"`
}
