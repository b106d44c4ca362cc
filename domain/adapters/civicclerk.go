package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/engagic/engagic/domain/cities"
	"github.com/engagic/engagic/domain/meetings"
	"github.com/engagic/engagic/pkg/httpclient"
	"github.com/engagic/engagic/pkg/logger"
)

// civicClerk serves cities on civicclerk.com via its OData events API
type civicClerk struct {
	city    *cities.City
	baseURL string
	window  Window
	session *httpclient.Session
	log     *slog.Logger
}

func newCivicClerk(city *cities.City, window Window, log *slog.Logger) *civicClerk {
	log = log.With(logger.Scope("civicclerk"), slog.String("banana", city.Banana))
	return &civicClerk{
		city:    city,
		baseURL: fmt.Sprintf("https://%s.api.civicclerk.com", city.Slug),
		window:  window,
		session: newVendorSession(log),
		log:     log,
	}
}

func (a *civicClerk) Vendor() cities.Vendor { return cities.VendorCivicClerk }
func (a *civicClerk) Close() error          { return nil }

type civicClerkEvent struct {
	ID             int    `json:"id"`
	EventName      string `json:"eventName"`
	StartDateTime  string `json:"startDateTime"`
	PublishedFiles []struct {
		FileID int    `json:"fileId"`
		Type   string `json:"type"`
		Name   string `json:"name"`
	} `json:"publishedFiles"`
}

func (a *civicClerk) FetchMeetings(ctx context.Context) ([]meetings.FetchedMeeting, error) {
	filter := fmt.Sprintf("startDateTime gt %s and startDateTime lt %s",
		a.window.Start.UTC().Format("2006-01-02T15:04:05Z"),
		a.window.End.UTC().Format("2006-01-02T15:04:05Z"))
	eventsURL := a.baseURL + "/v1/Events?$filter=" + url.QueryEscape(filter) + "&$orderby=startDateTime"

	data, err := a.session.GetBytes(ctx, eventsURL, 0)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var payload struct {
		Value []civicClerkEvent `json:"value"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}

	var out []meetings.FetchedMeeting
	for _, event := range payload.Value {
		m := meetings.FetchedMeeting{
			VendorID: fmt.Sprintf("%d", event.ID),
			Title:    strings.TrimSpace(event.EventName),
			Status:   ParseStatus(event.EventName),
		}
		if t, err := ParseDate(event.StartDateTime); err == nil {
			m.Start = t
		}

		// Prefer the full packet; plain agenda is the fallback.
		var agendaFileID, packetFileID int
		for _, file := range event.PublishedFiles {
			switch file.Type {
			case "Agenda Packet":
				if packetFileID == 0 {
					packetFileID = file.FileID
				}
			case "Agenda":
				if agendaFileID == 0 {
					agendaFileID = file.FileID
				}
			}
		}
		fileID := packetFileID
		if fileID == 0 {
			fileID = agendaFileID
		}
		if fileID != 0 {
			m.PacketURLs = []string{a.streamFileURL(fileID)}
		}

		if err := m.Validate(); err != nil {
			a.log.Warn("dropping meeting", logger.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (a *civicClerk) streamFileURL(fileID int) string {
	return fmt.Sprintf("%s/v1/Meetings/GetMeetingFileStream(fileId=%d,plainText=false)", a.baseURL, fileID)
}
