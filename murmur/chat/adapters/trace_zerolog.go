package adapters

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

type spanLoggerKey struct{}

// ZerologTracer implements the Tracer port on top of zerolog. Spans become
// start/end log pairs carrying the span duration; events inherit the
// attributes of the enclosing span through the context.
type ZerologTracer struct {
	logger zerolog.Logger
}

func NewZerologTracer(logger zerolog.Logger) *ZerologTracer {
	return &ZerologTracer{logger: logger}
}

func (t *ZerologTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	spanLogger := t.logger.With().Str("span", name).Fields(attrs).Logger()
	ctx = context.WithValue(ctx, spanLoggerKey{}, spanLogger)

	start := time.Now()
	spanLogger.Debug().Msg("span start")

	finish := func(err error) {
		event := spanLogger.Debug()
		if err != nil {
			event = spanLogger.Error().Err(err)
		}
		event.Dur("duration", time.Since(start)).Msg("span end")
	}

	return ctx, finish
}

func (t *ZerologTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	logger := t.logger
	if spanLogger, ok := ctx.Value(spanLoggerKey{}).(zerolog.Logger); ok {
		logger = spanLogger
	}
	logger.Info().Fields(attrs).Msg(name)
}

// NopTracer discards all spans and events.
type NopTracer struct{}

func (NopTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(error) {}
}

func (NopTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

var (
	_ chatports.Tracer = (*ZerologTracer)(nil)
	_ chatports.Tracer = NopTracer{}
)
