package senders

import (
	"context"
	"net/http"

	"tgbridge/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Sender interface {
	Send(ctx context.Context, webhookURL string, msg *WebhookMessage) error
}

type Registry map[string]Sender

func NewSenderRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper, limiters *LimiterRegistry) Registry {
	base := base{log, cfg, transport}
	return Registry{
		"discord": &discordSender{base, limiters, defaultRetryPolicy()},
	}
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
