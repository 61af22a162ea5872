package notify

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/pkg/slogx"
)

// LogNotifier writes codes to the context logger instead of delivering them.
// Only for local development; the app refuses it in prod.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, to domain.Identity, msg Message) error {
	slogx.FromContext(ctx).Info("otp delivery (log notifier)",
		slog.String("channel", string(to.Kind)),
		slog.String("to", to.Value),
		slog.String("purpose", string(msg.Purpose)),
		slog.String("code", msg.Code),
	)
	return nil
}
