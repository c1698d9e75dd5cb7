package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"boardpulse/internal/config"
	"boardpulse/internal/types"
)

// defaultAPIBase is the mail provider's API base URL, overridable through
// MailConfig.BaseURL for tests.
const defaultAPIBase = "https://api.sendgrid.com"

// Mailer renders and delivers the service's transactional emails. It
// implements the outbound email seam of the jobs package.
type Mailer struct {
	http       *httpClient
	apiKey     string
	apiBase    string
	from       address
	bcc        string
	appBaseURL string
	enabled    bool
	logger     *slog.Logger
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// NewMailer creates a Mailer from the mail configuration. appBaseURL is the
// public URL of the web application, used for the links inside email bodies.
func NewMailer(client *http.Client, cfg config.MailConfig, appBaseURL string, logger *slog.Logger) *Mailer {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	apiBase := cfg.BaseURL
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Mailer{
		http:       newHTTPClient(client, "mail-provider", DefaultRetryPolicy()),
		apiKey:     cfg.APIKey.Unmask(),
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		from:       address{Email: cfg.FromAddress, Name: cfg.FromName},
		bcc:        cfg.BccAddress,
		appBaseURL: strings.TrimSuffix(appBaseURL, "/"),
		enabled:    cfg.Enabled,
		logger:     logger,
	}
}

// SendDeletionWarning emails an inactivity warning naming the deletion date.
func (m *Mailer) SendDeletionWarning(ctx context.Context, recipient types.User, deleteAt time.Time) error {
	subject, body, err := renderDeletionWarning(m.appBaseURL, recipient, deleteAt)
	if err != nil {
		return err
	}
	return m.send(ctx, recipient, subject, body, false)
}

// SendMentionNotification emails a user that they were mentioned in a comment.
func (m *Mailer) SendMentionNotification(ctx context.Context, recipient types.User, authorName string, comment types.Comment) error {
	subject, body, err := renderMention(m.appBaseURL, recipient, authorName, comment)
	if err != nil {
		return err
	}
	return m.send(ctx, recipient, subject, body, false)
}

// SendActivityDigest emails the per-project activity digest. The service's
// own address goes in BCC so support keeps an audit copy of what went out.
func (m *Mailer) SendActivityDigest(ctx context.Context, recipient types.User, entries []types.DigestEntry) error {
	subject, body, err := renderDigest(m.appBaseURL, recipient, entries)
	if err != nil {
		return err
	}
	return m.send(ctx, recipient, subject, body, true)
}

// mailPayload is the provider's v3 mail/send request body with locally
// rendered HTML content.
type mailPayload struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

type personalization struct {
	To  []address `json:"to"`
	Bcc []address `json:"bcc,omitempty"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (m *Mailer) send(ctx context.Context, recipient types.User, subject, body string, bccSelf bool) error {
	if !m.enabled {
		m.logger.InfoContext(ctx, "mail disabled, dropping email",
			"subject", subject,
			"user_id", recipient.ID,
		)
		return nil
	}

	p := personalization{To: []address{{Email: recipient.Email, Name: displayName(recipient)}}}
	if bccSelf && m.bcc != "" {
		p.Bcc = []address{{Email: m.bcc}}
	}
	payload, err := json.Marshal(mailPayload{
		Personalizations: []personalization{p},
		From:             m.from,
		Subject:          subject,
		Content:          []mailContent{{Type: "text/html", Value: body}},
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal mail payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiBase+"/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build mail request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.http.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		m.logger.InfoContext(ctx, "email sent",
			"subject", subject,
			"user_id", recipient.ID,
		)
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode == http.StatusForbidden {
		return types.NewAppError(types.ErrCodeEmailBlocked,
			fmt.Sprintf("mail provider blocked delivery: %s", detail), nil)
	}
	return types.NewAppError(types.ErrCodeUpstreamMail,
		fmt.Sprintf("mail provider rejected send (%d): %s", resp.StatusCode, detail), nil)
}
