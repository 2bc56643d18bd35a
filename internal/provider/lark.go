package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/larknotice/card-dispatch/internal/domain"
)

// LarkProvider delivers cards by POSTing the interactive-message envelope to
// the notification's target webhook URL.
//
// The HTTP client is injected: main constructs it once via internal/httpclient
// (optionally with certificate validation bypassed for test targets) and the
// same client is shared by every worker. Connection pooling and TLS policy
// live on the client; this type only shapes requests.
type LarkProvider struct {
	client  *http.Client
	timeout time.Duration
}

func NewLarkProvider(client *http.Client, timeout time.Duration) *LarkProvider {
	return &LarkProvider{client: client, timeout: timeout}
}

// Send posts the card to the notification's target URL and expects a
// 200 OK response whose JSON body carries code 0.
func (p *LarkProvider) Send(ctx context.Context, n *domain.Notification) (*SendResponse, error) {
	body, err := json.Marshal(envelope{
		MsgType: "interactive",
		Card:    n.Card,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return nil, fmt.Errorf("unexpected webhook status: %d", resp.StatusCode)
	}

	var sendResp SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if sendResp.Code != 0 {
		return nil, fmt.Errorf("webhook rejected card: code=%d msg=%q", sendResp.Code, sendResp.Msg)
	}

	return &sendResp, nil
}

// compile-time check that LarkProvider implements Provider
var _ Provider = (*LarkProvider)(nil)
