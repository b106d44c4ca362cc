// Package queue is the persisted worklist that decouples discovery (sync)
// from enrichment (processing). Entries are keyed by canonicalized packet
// URL so the same document is never processed twice concurrently.
package queue

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/engagic/engagic/internal/database"
)

func init() {
	database.Register((*Entry)(nil))
}

// Status is the queue entry state machine
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Entry is one unit of processing work
type Entry struct {
	bun.BaseModel `bun:"table:queue,alias:q"`

	ID           string     `bun:"id,pk,type:uuid"`
	PacketURL    string     `bun:"packet_url,notnull,unique"` // canonical form
	MeetingID    string     `bun:"meeting_id,notnull"`
	Banana       string     `bun:"banana,notnull"`
	Status       Status     `bun:"status,notnull,default:'pending'"`
	Priority     int        `bun:"priority,notnull,default:0"`
	RetryCount   int        `bun:"retry_count,notnull,default:0"`
	ErrorMessage *string    `bun:"error_message"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	StartedAt    *time.Time `bun:"started_at"`
	CompletedAt  *time.Time `bun:"completed_at"`
}
