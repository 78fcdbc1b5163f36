package integration

import (
	"context"

	"go.uber.org/zap"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
)

// LogPublisher is the default EventPublisher: it writes integration events
// to the structured log. Wiring a message broker in its place only requires
// satisfying the same one-method port.
type LogPublisher struct {
	log *zap.Logger
}

var _ schemas.EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher creates a publisher backed by the given logger.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{log: logger.Named("IntegrationEvents")}
}

// Publish logs the event. It never fails.
func (p *LogPublisher) Publish(ctx context.Context, event schemas.IntegrationEvent) error {
	p.log.Info("Concepts integrated",
		zap.String("domain", event.Domain),
		zap.String("result", string(event.Result)),
		zap.Int("processed", event.ConceptsProcessed),
		zap.Int("created", event.ConceptsCreated),
		zap.Int("updated", event.ConceptsUpdated),
		zap.Int("relationships", event.RelationshipsCreated),
	)
	return nil
}
