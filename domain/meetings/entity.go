// Package meetings owns meeting, agenda-item, and attachment state, plus the
// value types vendor adapters produce during sync.
package meetings

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/engagic/engagic/internal/database"
)

func init() {
	database.Register((*Meeting)(nil))
	database.Register((*AgendaItem)(nil))
}

// ProcessingStatus tracks a meeting through the enrichment pipeline
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingComplete   ProcessingStatus = "complete"
	ProcessingFailed     ProcessingStatus = "failed"
)

// MeetingStatus values parsed from title/time keywords
const (
	StatusCancelled   = "cancelled"
	StatusPostponed   = "postponed"
	StatusRescheduled = "rescheduled"
	StatusRevised     = "revised"
	StatusDeferred    = "deferred"
)

// AttachmentType classifies an attachment
type AttachmentType string

const (
	AttachmentPDF AttachmentType = "pdf"
	AttachmentDoc AttachmentType = "doc"
	// AttachmentTextSegment carries raw text sliced out of a larger packet
	AttachmentTextSegment AttachmentType = "text_segment"
	AttachmentUnknown     AttachmentType = "unknown"
)

// Attachment is a document linked from an agenda item. Content is only set
// for text segments.
type Attachment struct {
	Name    string         `json:"name"`
	URL     string         `json:"url,omitempty"`
	Type    AttachmentType `json:"type"`
	Content string         `json:"content,omitempty"`
}

// Participation is contact metadata extracted from agenda text
type Participation struct {
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	VirtualURL  string `json:"virtual_url,omitempty"`
	MeetingID   string `json:"meeting_id,omitempty"`
	VirtualOnly bool   `json:"virtual_only,omitempty"`
	Hybrid      bool   `json:"hybrid,omitempty"`
}

// Meeting is a stored meeting row. Exactly one of PacketURL / AgendaURL is
// the source of truth: AgendaURL when items were extracted, PacketURL when
// the meeting is processed monolithically. Meetings are never deleted.
type Meeting struct {
	bun.BaseModel `bun:"table:meetings,alias:m"`

	ID                string           `bun:"id,pk"`
	Banana            string           `bun:"banana,notnull"`
	Title             string           `bun:"title,notnull"`
	Date              *time.Time       `bun:"date"`
	PacketURL         *string          `bun:"packet_url"` // canonicalized (lists JSON-sorted)
	AgendaURL         *string          `bun:"agenda_url"`
	Summary           *string          `bun:"summary"`
	Topics            StringList       `bun:"topics"`
	Status            *string          `bun:"status"` // cancelled / postponed / ... / null
	ProcessingStatus  ProcessingStatus `bun:"processing_status,notnull,default:'pending'"`
	ProcessingMethod  *string          `bun:"processing_method"`
	ProcessingSeconds *float64         `bun:"processing_time"`
	Participation     *Participation   `bun:"participation,type:text"`
	CreatedAt         time.Time        `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time        `bun:"updated_at,notnull,default:current_timestamp"`
}

// AgendaItem is a stored agenda item. ID is {meeting_id}_{vendor_item_id},
// or {meeting_id}_item_{sequence} for parser-derived items.
type AgendaItem struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID          string         `bun:"id,pk"`
	MeetingID   string         `bun:"meeting_id,notnull"`
	Title       string         `bun:"title,notnull"`
	Sequence    int            `bun:"sequence,notnull"`
	Attachments AttachmentList `bun:"attachments"`
	Summary     *string        `bun:"summary"`
	Topics      StringList     `bun:"topics"`
	MatterID    *string        `bun:"matter_id"`
	MatterFile  *string        `bun:"matter_file"`
	MatterType  *string        `bun:"matter_type"`
	Sponsors    StringList     `bun:"sponsors"`
	Section     *string        `bun:"section"`
	ItemNumber  *string        `bun:"item_number"`
	CreatedAt   time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
}

// StringList stores a []string as JSON text
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

// AttachmentList stores []Attachment as JSON text
type AttachmentList []Attachment

func (l AttachmentList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *AttachmentList) Scan(src any) error {
	return scanJSON(src, l)
}

func (p *Participation) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (p *Participation) Scan(src any) error {
	return scanJSON(src, p)
}

func scanJSON(src, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T as JSON", src)
	}
}
