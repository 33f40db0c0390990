package daemon

import (
	"log"
	"time"
)

// PublishLogger logs publish metrics to the provided logger.
type PublishLogger struct {
	logger *log.Logger
	slow   time.Duration
}

// NewPublishLogger creates a publish observer. Publishes faster than slow
// are not logged; zero logs every publish.
func NewPublishLogger(l *log.Logger, slow time.Duration) *PublishLogger {
	if l == nil {
		l = log.Default()
	}
	return &PublishLogger{logger: l, slow: slow}
}

func (p *PublishLogger) ObservePublish(session *Session, sequence uint64, duration time.Duration) {
	if p == nil || p.logger == nil || session == nil || duration < p.slow {
		return
	}
	id := session.ID()
	p.logger.Printf("publish session=%x seq=%d duration=%s", id[:4], sequence, duration)
}
