package provider

import (
	"context"

	"github.com/larknotice/card-dispatch/internal/domain"
)

// envelope is the JSON body posted to the webhook: the card travels
// untouched inside the interactive-message wrapper.
type envelope struct {
	MsgType string      `json:"msg_type"`
	Card    domain.Card `json:"card"`
}

// SendResponse maps the webhook's acknowledgement body.
// Code 0 means the platform accepted the card.
type SendResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Provider abstracts delivery to an external chat platform.
// Mocking this interface in tests gives full control over delivery behaviour
// without making real HTTP calls.
type Provider interface {
	Send(ctx context.Context, n *domain.Notification) (*SendResponse, error)
}
