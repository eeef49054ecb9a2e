package sink

import (
	"go.uber.org/zap"
)

// Zap logs report blocks through a zap logger: plain blocks at Info, blocks
// carrying a cause at Error with the cause attached.
type Zap struct {
	logger *zap.Logger
}

// NewZap wraps logger. A nil logger gets a no-op logger.
func NewZap(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zap{logger: logger}
}

// Default returns a Zap sink over a production logger, or a no-op logger
// when one cannot be built.
func Default() *Zap {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return NewZap(logger.Named("throughput"))
}

// Report logs text.
func (z *Zap) Report(text string, cause error) {
	if cause != nil {
		z.logger.Error(text, zap.Error(cause))
		return
	}
	z.logger.Info(text)
}

// Sync flushes the underlying logger.
func (z *Zap) Sync() error {
	return z.logger.Sync()
}
