// Package processor turns queued meetings into stored summaries: cache
// lookup, PDF text extraction, item detection, LLM summarization, topic
// aggregation.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/engagic/engagic/domain/cache"
	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/domain/parsing"
	"github.com/engagic/engagic/domain/queue"
	"github.com/engagic/engagic/domain/summarize"
	"github.com/engagic/engagic/domain/topics"
	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/pkg/httpclient"
	"github.com/engagic/engagic/pkg/logger"
	"github.com/engagic/engagic/pkg/pdftext"
)

var Module = fx.Module("processor",
	fx.Provide(New),
)

const methodTier1 = "tier1_pymupdf_gemini"

// Auto-detection threshold: packets at or under this size are summarized
// monolithically, larger ones go through the structural chunker.
const (
	smallPacketPages = 10
	smallPacketChars = 30_000
)

// ProcessingError marks a Tier-1 rejection: the free pipeline could not
// produce usable text. The queue retries it; premium fallbacks live in a
// quarantined module and are never attempted here.
type ProcessingError struct {
	Reason string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("requires premium tier: %s", e.Reason)
}

// IsProcessingError reports whether err is a Tier-1 rejection
func IsProcessingError(err error) bool {
	var pe *ProcessingError
	return errors.As(err, &pe)
}

// Result is the outcome of processing one meeting
type Result struct {
	Summary string
	Topics  []string
	Method  string
	Seconds float64
	Cached  bool
}

// Processor orchestrates meeting enrichment
type Processor struct {
	repo       *meetings.Repository
	cache      *cache.Service
	summarizer *summarize.Client
	normalizer *topics.Normalizer
	cfg        *config.Config
	log        *slog.Logger
}

// New creates a processor
func New(repo *meetings.Repository, cacheSvc *cache.Service, summarizer *summarize.Client,
	normalizer *topics.Normalizer, cfg *config.Config, log *slog.Logger) *Processor {
	return &Processor{
		repo:       repo,
		cache:      cacheSvc,
		summarizer: summarizer,
		normalizer: normalizer,
		cfg:        cfg,
		log:        log.With(logger.Scope("processor")),
	}
}

// ProcessMeeting routes a meeting to item-level or monolithic processing.
// Meetings with stored items go item-level; meetings with only a packet go
// through the cached monolithic path, with optional auto-detection of items
// in large packets.
func (p *Processor) ProcessMeeting(ctx context.Context, meeting *meetings.Meeting) (*Result, error) {
	items, err := p.repo.Items(ctx, meeting.ID)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		return p.ProcessMeetingWithItems(ctx, meeting, items)
	}
	if p.cfg.Processor.AutoDetectItems && meeting.PacketURL != nil {
		if result, handled, err := p.tryAutoDetect(ctx, meeting); handled {
			return result, err
		}
	}
	return p.ProcessMeetingWithCache(ctx, meeting)
}

// ProcessMeetingWithCache is the monolithic path: cache lookup first, then
// the Tier-1 pipeline (PDF text extract, quality gate, summarize).
func (p *Processor) ProcessMeetingWithCache(ctx context.Context, meeting *meetings.Meeting) (*Result, error) {
	canonical := p.canonicalURL(meeting)
	if canonical == "" {
		return nil, &ProcessingError{Reason: "meeting has no packet or agenda url"}
	}

	if entry, err := p.cache.Lookup(ctx, canonical); err != nil {
		p.log.Warn("cache lookup failed", logger.Error(err))
	} else if entry != nil {
		if err := p.repo.SetSummary(ctx, meeting.ID, entry.Summary, "cached", nil, 0); err != nil {
			return nil, err
		}
		return &Result{Summary: entry.Summary, Method: "cached", Cached: true}, nil
	}

	started := time.Now()
	doc, err := p.extractPacketText(ctx, canonical)
	if err != nil {
		return nil, err
	}
	text := doc.Text()

	if participation := parsing.ExtractParticipation(text); participation != nil {
		if err := p.repo.SetParticipation(ctx, meeting.ID, participation); err != nil {
			p.log.Warn("participation store failed", logger.Error(err))
		}
	}

	summary, err := p.summarizer.SummarizeMeeting(ctx, text, doc.PageCount())
	if err != nil {
		return nil, fmt.Errorf("summarize meeting %s: %w", meeting.ID, err)
	}

	elapsed := time.Since(started).Seconds()
	if err := p.repo.SetSummary(ctx, meeting.ID, summary, methodTier1, nil, elapsed); err != nil {
		return nil, err
	}
	if err := p.cache.Store(ctx, canonical, summary, elapsed); err != nil {
		// A summary that could not be cached is still a valid summary.
		p.log.Warn("cache store failed", logger.Error(err))
	}

	return &Result{Summary: summary, Method: methodTier1, Seconds: elapsed}, nil
}

// ProcessMeetingWithItems summarizes each unprocessed item via a batch
// submission, then assembles the meeting-level summary and topic ranking.
// Per-item failures are recorded without failing the meeting.
func (p *Processor) ProcessMeetingWithItems(ctx context.Context, meeting *meetings.Meeting, items []*meetings.AgendaItem) (*Result, error) {
	started := time.Now()

	pending := partitionItems(items)
	requests := p.buildBatchRequests(ctx, pending)
	if len(requests) == 0 && !hasSummaries(items) {
		return nil, &ProcessingError{Reason: "no item text could be extracted"}
	}

	results, err := p.summarizer.SummarizeBatch(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("batch submit for %s: %w", meeting.ID, err)
	}

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
			p.log.Warn("item summarization failed",
				slog.String("item_id", res.ItemID),
				slog.String("error", res.Error))
			continue
		}
		canonical := p.normalizer.Normalize(res.Topics)
		if err := p.repo.SetItemSummary(ctx, res.ItemID, res.Summary, canonical); err != nil {
			p.log.Warn("item summary store failed", logger.Error(err))
		}
	}

	// Re-read so aggregation sees both fresh and previously stored items.
	items, err = p.repo.Items(ctx, meeting.ID)
	if err != nil {
		return nil, err
	}

	var blocks []string
	var topicLists [][]string
	summarized := 0
	for _, item := range items {
		if item.Summary == nil || *item.Summary == "" {
			continue
		}
		summarized++
		blocks = append(blocks, item.Title+"\n"+*item.Summary)
		if len(item.Topics) > 0 {
			topicLists = append(topicLists, item.Topics)
		}
	}
	if summarized == 0 {
		return nil, &ProcessingError{Reason: "all item summarizations failed"}
	}

	summary := strings.Join(blocks, "\n\n")
	meetingTopics := AggregateTopics(topicLists)
	method := fmt.Sprintf("item_level_%d_items", summarized)
	elapsed := time.Since(started).Seconds()

	if err := p.repo.SetSummary(ctx, meeting.ID, summary, method, meetingTopics, elapsed); err != nil {
		return nil, err
	}

	p.log.Info("meeting processed item-level",
		slog.String("meeting_id", meeting.ID),
		slog.Int("items", summarized),
		slog.Int("failed", failed))
	return &Result{Summary: summary, Topics: meetingTopics, Method: method, Seconds: elapsed}, nil
}

// tryAutoDetect extracts the packet and, when it is large enough to be
// worth splitting, runs the structural chunker and stores detected items.
// handled=false means the caller should continue with monolithic processing.
func (p *Processor) tryAutoDetect(ctx context.Context, meeting *meetings.Meeting) (*Result, bool, error) {
	doc, err := p.extractPacketText(ctx, *meeting.PacketURL)
	if err != nil {
		return nil, false, nil
	}
	if doc.PageCount() <= smallPacketPages || len(doc.Text()) < smallPacketChars {
		return nil, false, nil
	}

	chunks := parsing.ChunkDocument(doc.Pages)
	if len(chunks) == 0 {
		return nil, false, nil
	}

	for _, chunk := range chunks {
		item := &meetings.AgendaItem{
			ID:        meetings.ItemID(meeting.ID, "", chunk.Sequence),
			MeetingID: meeting.ID,
			Title:     chunk.Title,
			Sequence:  chunk.Sequence,
			Attachments: meetings.AttachmentList{{
				Name:    chunk.Title,
				Type:    meetings.AttachmentTextSegment,
				Content: chunk.Text,
			}},
		}
		if err := p.repo.UpsertItem(ctx, item); err != nil {
			return nil, true, err
		}
	}
	p.log.Info("auto-detected items from packet",
		slog.String("meeting_id", meeting.ID),
		slog.Int("chunks", len(chunks)))

	items, err := p.repo.Items(ctx, meeting.ID)
	if err != nil {
		return nil, true, err
	}
	result, err := p.ProcessMeetingWithItems(ctx, meeting, items)
	return result, true, err
}

// extractPacketText downloads every URL behind a canonical packet URL and
// extracts text, enforcing the Tier-1 quality gate.
func (p *Processor) extractPacketText(ctx context.Context, canonical string) (*pdftext.Document, error) {
	var allPages []string
	for _, u := range queue.ExpandPacketURL(canonical) {
		data, err := httpclient.DownloadPDF(ctx, u)
		if err != nil {
			return nil, &ProcessingError{Reason: fmt.Sprintf("packet download failed: %v", err)}
		}
		doc, err := pdftext.Extract(data)
		if err != nil {
			return nil, &ProcessingError{Reason: fmt.Sprintf("pdf extraction failed: %v", err)}
		}
		allPages = append(allPages, doc.Pages...)
	}

	doc := &pdftext.Document{Pages: allPages}
	if !pdftext.IsUsableText(doc.Text()) {
		return nil, &ProcessingError{Reason: "extracted text failed quality heuristics"}
	}
	return doc, nil
}

// buildBatchRequests extracts text for each pending item. Extraction
// failures log and drop the item; text segments are used as-is, PDFs are
// fetched and extracted. Sources concatenate under "=== name ===" headers.
func (p *Processor) buildBatchRequests(ctx context.Context, pending []*meetings.AgendaItem) []summarize.BatchRequest {
	var requests []summarize.BatchRequest
	for _, item := range pending {
		var sections []string
		for _, att := range item.Attachments {
			text, err := p.attachmentText(ctx, att)
			if err != nil {
				p.log.Warn("attachment extraction failed",
					slog.String("item_id", item.ID),
					slog.String("attachment", att.Name),
					logger.Error(err))
				continue
			}
			if text == "" {
				continue
			}
			sections = append(sections, fmt.Sprintf("=== %s ===\n%s", att.Name, text))
		}
		if len(sections) == 0 {
			continue
		}
		requests = append(requests, summarize.BatchRequest{
			ItemID: item.ID,
			Title:  item.Title,
			Text:   strings.Join(sections, "\n\n"),
		})
	}
	return requests
}

func (p *Processor) attachmentText(ctx context.Context, att meetings.Attachment) (string, error) {
	switch att.Type {
	case meetings.AttachmentTextSegment:
		return att.Content, nil
	case meetings.AttachmentPDF:
		data, err := httpclient.DownloadPDF(ctx, att.URL)
		if err != nil {
			return "", err
		}
		doc, err := pdftext.Extract(data)
		if err != nil {
			return "", err
		}
		return doc.Text(), nil
	default:
		return "", nil
	}
}

func (p *Processor) canonicalURL(meeting *meetings.Meeting) string {
	if meeting.PacketURL != nil && *meeting.PacketURL != "" {
		return *meeting.PacketURL
	}
	if meeting.AgendaURL != nil {
		return *meeting.AgendaURL
	}
	return ""
}

// partitionItems returns items still needing summarization, excluding
// ceremonial items the processor-skip policy keeps out of the LLM.
func partitionItems(items []*meetings.AgendaItem) []*meetings.AgendaItem {
	var pending []*meetings.AgendaItem
	for _, item := range items {
		if item.Summary != nil && *item.Summary != "" {
			continue
		}
		itemType := ""
		if item.MatterType != nil {
			itemType = *item.MatterType
		}
		if shouldSkipProcessing(item.Title, itemType) {
			continue
		}
		pending = append(pending, item)
	}
	return pending
}

func hasSummaries(items []*meetings.AgendaItem) bool {
	for _, item := range items {
		if item.Summary != nil && *item.Summary != "" {
			return true
		}
	}
	return false
}
