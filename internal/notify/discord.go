// Package notify sends Discord-style webhook notifications for job
// lifecycle events, grounded on original_source/src/notify/discord.rs.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gwlsn/pipeline/internal/config"
	"github.com/gwlsn/pipeline/internal/logging"
	"github.com/gwlsn/pipeline/internal/model"
)

const (
	colorSuccess    = 0x00FF00
	colorFailure    = 0xFF0000
	colorDeadLetter = 0x800000
	colorQueueEmpty = 0x0088FF
)

// DiscordNotifier posts job-lifecycle embeds to a Discord-compatible
// incoming webhook URL.
type DiscordNotifier struct {
	WebhookURL       string
	Events           config.DiscordEvents
	MentionOnFailure string

	httpClient *http.Client
}

func NewDiscordNotifier(cfg config.DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		WebhookURL:       cfg.WebhookURL,
		Events:           cfg.Events,
		MentionOnFailure: cfg.MentionOnFailure,
		httpClient:       &http.Client{Timeout: 10 * time.Second},
	}
}

type embed struct {
	Title  string  `json:"title"`
	Color  int     `json:"color"`
	Fields []field `json:"fields"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type payload struct {
	Content *string `json:"content,omitempty"`
	Embeds  []embed `json:"embeds"`
}

// NotifyEncodeSuccess announces a completed job.
func (d *DiscordNotifier) NotifyEncodeSuccess(ctx context.Context, job *model.Job) error {
	if !d.Events.EncodeSuccess {
		return nil
	}
	sizeReduction, duration, speed := "N/A", "N/A", "N/A"
	if job.Result != nil {
		sizeReduction = fmt.Sprintf("%.1f%%", job.Result.SizeReductionPercent())
		duration = job.Result.EncodeDuration.Round(time.Second).String()
		speed = fmt.Sprintf("%.2fx", job.Result.EncodingSpeed)
	}
	e := embed{
		Title: "Encode Complete",
		Color: colorSuccess,
		Fields: []field{
			{Name: "File", Value: fileName(job.SourcePath)},
			{Name: "Profile", Value: job.ProfileName, Inline: true},
			{Name: "Size Reduction", Value: sizeReduction, Inline: true},
			{Name: "Duration", Value: duration, Inline: true},
			{Name: "Speed", Value: speed, Inline: true},
		},
	}
	if job.Result != nil {
		e.Fields = append(e.Fields, field{
			Name:    "Output Size",
			Value:   humanize.Bytes(uint64(job.Result.OutputBytes)),
			Inline:  true,
		})
	}
	return d.sendEmbed(ctx, e, "")
}

// NotifyEncodeFailure announces a job that failed this attempt (may still
// be retried).
func (d *DiscordNotifier) NotifyEncodeFailure(ctx context.Context, job *model.Job) error {
	if !d.Events.EncodeFailure {
		return nil
	}
	e := embed{
		Title: "Encode Failed",
		Color: colorFailure,
		Fields: []field{
			{Name: "File", Value: fileName(job.SourcePath)},
			{Name: "Profile", Value: job.ProfileName, Inline: true},
			{Name: "Attempt", Value: strconv.Itoa(job.AttemptCount), Inline: true},
			{Name: "Error", Value: truncate(errOrUnknown(job.ErrorMessage), 1024)},
		},
	}
	return d.sendEmbed(ctx, e, d.mentionContent())
}

// NotifyDeadLetter announces a job that exhausted its retries.
func (d *DiscordNotifier) NotifyDeadLetter(ctx context.Context, job *model.Job) error {
	if !d.Events.DeadLetter {
		return nil
	}
	e := embed{
		Title: "Job Dead Lettered",
		Color: colorDeadLetter,
		Fields: []field{
			{Name: "File", Value: fileName(job.SourcePath)},
			{Name: "Job ID", Value: job.ID, Inline: true},
			{Name: "Attempts", Value: strconv.Itoa(job.AttemptCount), Inline: true},
			{Name: "Reason", Value: truncate(errOrUnknown(job.ErrorMessage), 1024)},
		},
	}
	return d.sendEmbed(ctx, e, d.mentionContent())
}

// NotifyQueueEmpty announces that the pending queue has drained.
func (d *DiscordNotifier) NotifyQueueEmpty(ctx context.Context) error {
	if !d.Events.QueueEmpty {
		return nil
	}
	e := embed{
		Title: "Queue Empty",
		Color: colorQueueEmpty,
		Fields: []field{
			{Name: "Status", Value: "All encoding jobs have been processed."},
		},
	}
	return d.sendEmbed(ctx, e, "")
}

func (d *DiscordNotifier) mentionContent() string {
	return d.MentionOnFailure
}

func (d *DiscordNotifier) sendEmbed(ctx context.Context, e embed, content string) error {
	if d.WebhookURL == "" {
		return nil
	}
	p := payload{Embeds: []embed{e}}
	if content != "" {
		p.Content = &content
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrNotificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrNotificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrNotificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.Warn("discord webhook non-2xx response", "status", resp.StatusCode)
		return fmt.Errorf("%w: http %d", model.ErrNotificationFailed, resp.StatusCode)
	}
	logging.Debug("discord notification sent", "title", e.Title)
	return nil
}

func fileName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func errOrUnknown(msg string) string {
	if msg == "" {
		return "Unknown error"
	}
	return msg
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
