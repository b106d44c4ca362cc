package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/engagic/engagic/pkg/logger"
)

const batchPollInterval = 10 * time.Second

type batchTimeoutConfig struct {
	total time.Duration
}

// BatchRequest is one item submitted for batched summarization
type BatchRequest struct {
	ItemID string
	Title  string
	Text   string
}

// BatchResult is the per-request outcome, mapped back by position
type BatchResult struct {
	ItemID  string
	Success bool
	Summary string
	Topics  []string
	Error   string
}

// SummarizeBatch submits all requests as one provider batch job and polls
// it to completion. Failures are per-request: a timeout or failed job
// yields {Success:false} for every request, a single bad response only for
// its own slot. Responses map back to requests by positional index.
func (c *Client) SummarizeBatch(ctx context.Context, requests []BatchRequest) ([]BatchResult, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	if !c.batchEnabled {
		return c.summarizeSequentially(ctx, requests), nil
	}

	// The whole job runs against one model, so settle it before building
	// any request config: one large request escalates every slot.
	model := c.batchModel(requests)

	tmpl := c.prompts.item["standard"]
	inlined := make([]*genai.InlinedRequest, len(requests))
	for i, req := range requests {
		inlined[i] = &genai.InlinedRequest{
			Contents: []*genai.Content{genai.NewContentFromText(
				tmpl.render(map[string]string{"title": req.Title, "text": req.Text}), genai.RoleUser)},
			Config: c.itemConfig(model, Size(req.Text, 0)),
		}
	}

	displayName := fmt.Sprintf("item-batch-%d", time.Now().Unix())
	job, err := c.client.Batches.Create(ctx, model,
		&genai.BatchJobSource{InlinedRequests: inlined},
		&genai.CreateBatchJobConfig{DisplayName: displayName})
	if err != nil {
		return c.failAll(requests, fmt.Sprintf("batch submit: %v", err)), nil
	}

	c.log.Info("batch job submitted",
		slog.String("name", job.Name),
		slog.String("display_name", displayName),
		slog.Int("requests", len(requests)))

	job, err = c.pollBatch(ctx, job.Name)
	if err != nil {
		return c.failAll(requests, err.Error()), nil
	}
	if job.State != genai.JobStateSucceeded {
		return c.failAll(requests, fmt.Sprintf("batch job ended in state %s", job.State)), nil
	}
	if job.Dest == nil || len(job.Dest.InlinedResponses) == 0 {
		return c.failAll(requests, "batch job succeeded with no responses"), nil
	}

	return c.collectResults(requests, job.Dest.InlinedResponses), nil
}

// batchModel picks the model for a batch job: the large model as soon as
// any single request would route there on its own.
func (c *Client) batchModel(requests []BatchRequest) string {
	for _, req := range requests {
		if c.pickModel(Size(req.Text, 0)) == c.largeModel {
			return c.largeModel
		}
	}
	return c.smallModel
}

func (c *Client) pollBatch(ctx context.Context, name string) (*genai.BatchJob, error) {
	deadline := time.Now().Add(c.batchTimeout.total)
	ticker := time.NewTicker(batchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("batch poll: %w", ctx.Err())
		case <-ticker.C:
		}

		job, err := c.client.Batches.Get(ctx, name, nil)
		if err != nil {
			c.log.Warn("batch poll error", logger.Error(err))
			continue
		}
		switch job.State {
		case genai.JobStateSucceeded, genai.JobStateFailed,
			genai.JobStateCancelled, genai.JobStateExpired:
			return job, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("batch job %s timed out after %s", name, c.batchTimeout.total)
		}
	}
}

func (c *Client) collectResults(requests []BatchRequest, responses []*genai.InlinedResponse) []BatchResult {
	results := make([]BatchResult, len(requests))
	for i, req := range requests {
		results[i].ItemID = req.ItemID
		if i >= len(responses) {
			results[i].Error = "no response at index"
			continue
		}
		resp := responses[i]
		if resp.Error != nil {
			results[i].Error = resp.Error.Message
			continue
		}
		if resp.Response == nil {
			results[i].Error = "empty response"
			continue
		}
		text := resp.Response.Text()
		if text == "" {
			results[i].Error = "empty response text"
			continue
		}
		summary, topics := parseItemResponse(text)
		results[i].Success = true
		results[i].Summary = summary
		results[i].Topics = topics
	}
	return results
}

// summarizeSequentially is the non-batch path: one request per item,
// failures isolated per slot.
func (c *Client) summarizeSequentially(ctx context.Context, requests []BatchRequest) []BatchResult {
	results := make([]BatchResult, len(requests))
	for i, req := range requests {
		results[i].ItemID = req.ItemID
		summary, topics, err := c.SummarizeItem(ctx, req.Title, req.Text)
		if err != nil {
			results[i].Error = err.Error()
			continue
		}
		results[i].Success = true
		results[i].Summary = summary
		results[i].Topics = topics
	}
	return results
}

func (c *Client) failAll(requests []BatchRequest, msg string) []BatchResult {
	c.log.Warn("batch failed", slog.String("error", msg))
	results := make([]BatchResult, len(requests))
	for i, req := range requests {
		results[i] = BatchResult{ItemID: req.ItemID, Error: msg}
	}
	return results
}
