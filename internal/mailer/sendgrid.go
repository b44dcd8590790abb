package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the SendGrid v3 mail send endpoint.
const DefaultURL = "https://api.sendgrid.com/v3/mail/send"

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename string
	Type     string
	Content  []byte
}

// Message is one outgoing e-mail.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// SendGrid sends mail through the SendGrid v3 JSON API.
type SendGrid struct {
	url    string
	token  string
	from   string
	client *http.Client
}

// NewSendGrid returns a client. An empty url selects DefaultURL.
func NewSendGrid(url, token, from string) *SendGrid {
	if url == "" {
		url = DefaultURL
	}
	return &SendGrid{
		url:    url,
		token:  token,
		from:   from,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type address struct {
	Email string `json:"email"`
}

type personalization struct {
	To      []address `json:"to"`
	Subject string    `json:"subject"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type attachment struct {
	Content     string `json:"content"`
	Filename    string `json:"filename"`
	Type        string `json:"type"`
	Disposition string `json:"disposition"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Content          []content         `json:"content"`
	Attachments      []attachment      `json:"attachments,omitempty"`
}

// Send posts msg and fails on any non-2xx response.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("mail recipient required")
	}

	req := sendRequest{
		Personalizations: []personalization{{To: []address{{Email: msg.To}}, Subject: msg.Subject}},
		From:             address{Email: s.from},
	}
	if msg.Text != "" {
		req.Content = append(req.Content, content{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		req.Content = append(req.Content, content{Type: "text/html", Value: msg.HTML})
	}
	if len(req.Content) == 0 {
		return errors.New("mail body required")
	}
	for _, a := range msg.Attachments {
		req.Attachments = append(req.Attachments, attachment{
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			Filename:    a.Filename,
			Type:        a.Type,
			Disposition: "attachment",
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send mail: status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
	return nil
}
