// Package crdb persists bookings and their outbox events on CockroachDB
// (any pgwire database works) under SERIALIZABLE isolation.
package crdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/reservesurf/booking-funnel/internal/domain"
	"github.com/reservesurf/booking-funnel/internal/observability"
	"golang.org/x/sync/errgroup"
)

const (
	SerializationFailureCode = "40001"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

// CreateBooking stores the booking, its line snapshots and the
// booking.confirmed outbox record in a single transaction, so the sink
// event can never exist without the booking or vice versa.
func (r *Repository) CreateBooking(ctx context.Context, b domain.Booking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		breakdown, err := json.Marshal(b.Breakdown)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO bookings (id, profile_email, total_cents, currency, payment_method, payment_ref, breakdown_json, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, b.ID, b.ProfileEmail, b.TotalCents, b.Currency, b.PaymentMethod, b.PaymentRef, breakdown, b.CreatedAt)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, line := range b.Lines {
			line := line
			g.Go(func() error {
				_, err := tx.Exec(gctx, `
					INSERT INTO booking_lines (booking_id, class_id, title, date, start_time, quantity, unit_price_cents)
					VALUES ($1, $2, $3, $4, $5, $6, $7)
				`, b.ID, line.ClassID, line.Title, line.Date, line.Start, line.Quantity, line.UnitPriceCents)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]interface{}{
			"booking_id":  b.ID,
			"email":       b.ProfileEmail,
			"total_cents": b.TotalCents,
			"currency":    b.Currency,
		})
		if err != nil {
			return err
		}
		return r.InsertOutbox(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "booking",
			AggregateID:   b.ID,
			EventType:     "booking.confirmed",
			Payload:       payload,
			DedupeKey:     b.ID.String(),
		})
	})
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var b domain.Booking
	var breakdown []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, profile_email, total_cents, currency, payment_method, payment_ref, breakdown_json, created_at
		FROM bookings WHERE id = $1
	`, id).Scan(&b.ID, &b.ProfileEmail, &b.TotalCents, &b.Currency, &b.PaymentMethod, &b.PaymentRef, &breakdown, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(breakdown, &b.Breakdown); err != nil {
		return nil, errors.Wrap(err, "decode breakdown")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT class_id, title, date, start_time, quantity, unit_price_cents
		FROM booking_lines WHERE booking_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.BookedLine
		if err := rows.Scan(&line.ClassID, &line.Title, &line.Date, &line.Start, &line.Quantity, &line.UnitPriceCents); err != nil {
			return nil, err
		}
		b.Lines = append(b.Lines, line)
	}
	return &b, rows.Err()
}
