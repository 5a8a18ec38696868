package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reservesurf/booking-funnel/internal/domain"
	"github.com/reservesurf/booking-funnel/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger records funnel milestones for the back office. Writes are
// best-effort; callers never fail a booking over a lost audit entry.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	SessionID string    `bson:"session_id,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action, sessionID string, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return err
	}
	return nil
}

func (a *AuditLogger) LogCommit(ctx context.Context, sessionID string, line domain.CartLine) error {
	data := map[string]interface{}{
		"line_id":  line.LineID,
		"class_id": line.ClassID,
		"date":     line.Date.Format("2006-01-02"),
		"start":    line.Start,
		"quantity": line.Quantity,
	}
	return a.LogEvent(ctx, "cart.line_committed", sessionID, data)
}

func (a *AuditLogger) LogBooking(ctx context.Context, b domain.Booking) error {
	data := map[string]interface{}{
		"booking_id":  b.ID,
		"email":       b.ProfileEmail,
		"total_cents": b.TotalCents,
		"method":      b.PaymentMethod,
		"payment_ref": b.PaymentRef,
		"lines":       len(b.Lines),
	}
	return a.LogEvent(ctx, "booking.confirmed", "", data)
}
