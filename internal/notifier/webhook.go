package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Webhook posts alert messages as JSON to a configured URL.
type Webhook struct {
	URL  string
	HTTP *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL:  url,
		HTTP: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Webhook) Enabled() bool {
	return w.URL != ""
}

func (w *Webhook) Send(ctx context.Context, msg string) error {
	if !w.Enabled() {
		return fmt.Errorf("webhook not configured")
	}
	payload := map[string]any{"text": msg}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := w.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	if res.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d: %s", res.StatusCode, string(body))
	}
	return nil
}
