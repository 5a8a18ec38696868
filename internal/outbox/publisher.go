package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/reservesurf/booking-funnel/internal/adapters/crdb"
	"github.com/reservesurf/booking-funnel/internal/adapters/rabbit"
	"github.com/reservesurf/booking-funnel/internal/observability"
)

// Publisher drains the transactional outbox into RabbitMQ. Bookings reach
// the back-office sink through here, never directly from the request path.
type Publisher struct {
	repo      *crdb.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewPublisher(repo *crdb.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			records, err := p.repo.GetUnpublishedOutbox(ctx, 10)
			if err != nil {
				p.logger.WithError(err).Error("outbox poll failed")
				continue
			}
			for _, rec := range records {
				msg := amqp.Publishing{
					MessageId:   rec.DedupeKey,
					ContentType: "application/json",
					Body:        rec.Payload,
				}
				if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
					p.logger.WithError(err).WithField("outbox_id", rec.ID).Warn("publish failed, will retry")
					continue
				}
				now := time.Now()
				observability.OutboxLag.Set(now.Sub(rec.CreatedAt).Seconds())
				if err := p.repo.MarkPublished(ctx, rec.ID, now); err != nil {
					p.logger.WithError(err).WithField("outbox_id", rec.ID).Error("mark published failed")
				}
			}
		}
	}
}
