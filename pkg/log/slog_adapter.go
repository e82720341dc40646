package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Station != "" {
		attrs = append(attrs, slog.String("station", event.Station))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Primitive != nil:
		p := event.Primitive
		attrs = append(attrs,
			slog.String("primitive", p.Type.String()),
			slog.String("kind", p.Kind.String()),
			slog.Uint64("seq", uint64(p.Seq)),
		)
		if p.Result != nil {
			attrs = append(attrs, slog.String("result", p.Result.String()))
		}
		if p.Address != "" {
			attrs = append(attrs, slog.String("address", p.Address))
		}
		if p.Candidates != nil {
			attrs = append(attrs, slog.Int("candidates", *p.Candidates))
		}
		if p.Stale {
			attrs = append(attrs, slog.Bool("stale", true))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
		if event.StateChange.Target != "" {
			attrs = append(attrs, slog.String("target", event.StateChange.Target))
		}
	case event.Notification != nil:
		attrs = append(attrs, slog.String("notification", event.Notification.Type.String()))
		if event.Notification.Detail != "" {
			attrs = append(attrs, slog.String("detail", event.Notification.Detail))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
