package notify

import (
	"net/http"
	"time"
)

const defaultSendTimeout = 10 * time.Second

type senderOptions struct {
	client  *http.Client
	baseURL string
}

// SenderOption configures a Telegram or Discord sender.
type SenderOption func(*senderOptions)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) SenderOption {
	return func(o *senderOptions) { o.client = c }
}

// WithBaseURL overrides the Telegram Bot API root. Discord senders ignore it
// since the webhook URL is already absolute.
func WithBaseURL(u string) SenderOption {
	return func(o *senderOptions) { o.baseURL = u }
}

func buildOptions(defaultBase string, opts []SenderOption) senderOptions {
	o := senderOptions{
		client:  &http.Client{Timeout: defaultSendTimeout},
		baseURL: defaultBase,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
