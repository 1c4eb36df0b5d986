// Package webhook posts room lifecycle events to an operator-configured URL.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Event names.
const (
	EventRoomCreated  = "room.created"
	EventCodeExecuted = "code.executed"
)

// Payload is the webhook POST body.
type Payload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// NewPayload stamps an event with the current UTC time.
func NewPayload(event string, data any) Payload {
	return Payload{
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// Sign returns the signature header value for body sent at unixTS.
func Sign(secret, unixTS string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unixTS))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Dispatch performs a synchronous HTTP POST to the webhook URL.
// Returns nil on success (2xx status).
func Dispatch(ctx context.Context, client *http.Client, url, secret string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "devroom-webhook/1")

	unixTS := fmt.Sprintf("%d", time.Now().Unix())
	req.Header.Set("X-Devroom-Timestamp", unixTS)
	if secret != "" {
		req.Header.Set("X-Devroom-Signature", Sign(secret, unixTS, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// Notifier dispatches events in the background. A nil *Notifier, or one
// without a URL, drops every event.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	log    *slog.Logger
	wg     sync.WaitGroup
}

// NewNotifier returns nil when url is empty.
func NewNotifier(url, secret string, logger *slog.Logger) *Notifier {
	if url == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}
}

// Notify posts the event asynchronously. Failures are logged, never retried.
func (n *Notifier) Notify(event string, data any) {
	if n == nil || n.url == "" {
		return
	}
	payload := NewPayload(event, data)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := Dispatch(context.Background(), n.client, n.url, n.secret, payload); err != nil {
			n.log.Warn("webhook dispatch", "event", event, "err", err)
			return
		}
		n.log.Debug("webhook delivered", "event", event)
	}()
}

// Wait blocks until every in-flight dispatch has finished.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
