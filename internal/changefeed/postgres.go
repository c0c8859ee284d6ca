package changefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Channel is the LISTEN/NOTIFY channel carrying topic names
const Channel = "spark_changes"

// PGNotifier publishes topics through PostgreSQL NOTIFY so every instance
// of the service sees them. Relay feeds them back into the local broker.
type PGNotifier struct {
	db     *pgxpool.Pool
	broker *Broker
}

// NewPGNotifier creates a notifier relaying into broker
func NewPGNotifier(db *pgxpool.Pool, broker *Broker) *PGNotifier {
	return &PGNotifier{db: db, broker: broker}
}

// Publish sends one NOTIFY per topic. On failure the local broker is
// notified directly so watchers on this instance still refresh.
func (n *PGNotifier) Publish(ctx context.Context, topics ...string) {
	for _, topic := range topics {
		if _, err := n.db.Exec(ctx, `SELECT pg_notify($1, $2)`, Channel, topic); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Failed to publish change notification")
			n.broker.Publish(ctx, topic)
		}
	}
}

// Relay listens for notifications until ctx is cancelled, reconnecting
// after connection errors.
func (n *PGNotifier) Relay(ctx context.Context) {
	for {
		err := n.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Msg("Change feed listener stopped, reconnecting")

		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

func (n *PGNotifier) listen(ctx context.Context) error {
	conn, err := n.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	log.Info().Str("channel", Channel).Msg("Change feed listener started")

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("failed waiting for notification: %w", err)
		}
		n.broker.Publish(ctx, notification.Payload)
	}
}
