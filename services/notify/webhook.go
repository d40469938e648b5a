package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vainnor/atc-hours/models"
)

const (
	colorOnline    = 0x2ecc71
	colorOffline   = 0xe67e22
	colorNonMember = 0xe74c3c
)

// Webhook posts Discord-style embeds. Session notifications and non-member
// alerts go to separate channels; a kind whose URL is empty is dropped.
type Webhook struct {
	SessionsURL string
	AlertsURL   string
	Client      *http.Client
}

func NewWebhook(sessionsURL, alertsURL string, timeout time.Duration) *Webhook {
	return &Webhook{
		SessionsURL: sessionsURL,
		AlertsURL:   alertsURL,
		Client:      &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func (w *Webhook) Notify(ctx context.Context, n models.Notification) error {
	url := w.SessionsURL
	if n.Kind == models.NotifyNonMember {
		url = w.AlertsURL
	}
	if url == "" {
		return nil
	}

	body, err := json.Marshal(buildPayload(n))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("posting %s notification: %w", n.Kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("posting %s notification: webhook returned %s", n.Kind, resp.Status)
	}
	return nil
}

func buildPayload(n models.Notification) webhookPayload {
	e := embed{
		Description: Summary(n),
		Timestamp:   n.At.UTC().Format(time.RFC3339),
		Fields: []embedField{
			{Name: "Callsign", Value: n.Callsign, Inline: true},
			{Name: "Frequency", Value: n.Frequency, Inline: true},
			{Name: "CID", Value: fmt.Sprint(n.CID), Inline: true},
		},
	}

	switch n.Kind {
	case models.NotifyOnline:
		e.Title = "Controller online"
		e.Color = colorOnline
	case models.NotifyOffline:
		e.Title = "Controller offline"
		e.Color = colorOffline
		e.Fields = append(e.Fields,
			embedField{Name: "Session", Value: fmt.Sprintf("%.2f hrs", n.SessionHours), Inline: true},
			embedField{Name: "This month", Value: fmt.Sprintf("%.2f hrs", n.MonthHours), Inline: true},
		)
	case models.NotifyNonMember:
		e.Title = "Non-member controlling"
		e.Color = colorNonMember
	}

	return webhookPayload{Embeds: []embed{e}}
}
