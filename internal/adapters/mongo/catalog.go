// Package mongo adapts the back-office catalog and the audit trail. The
// funnel only ever reads the catalog; classes and prices are owned by the
// back office.
package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reservesurf/booking-funnel/internal/domain"
	"github.com/reservesurf/booking-funnel/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func optionsUpsert() *options.UpdateOptions {
	return options.Update().SetUpsert(true)
}

type CatalogRepository struct {
	categories *mongo.Collection
	classes    *mongo.Collection
	slots      *mongo.Collection
	logger     observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		categories: db.Collection("categories"),
		classes:    db.Collection("classes"),
		slots:      db.Collection("time_slots"),
		logger:     logger,
	}
}

type CategoryDoc struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

type ClassDoc struct {
	ID                 uuid.UUID `bson:"_id"`
	CategoryID         string    `bson:"category_id"`
	Title              string    `bson:"title"`
	Difficulty         string    `bson:"difficulty"`
	Instructor         string    `bson:"instructor"`
	DurationMinutes    int       `bson:"duration_minutes"`
	BasePriceCents     int64     `bson:"base_price_cents"`
	PeakPriceCents     int64     `bson:"peak_price_cents,omitempty"`
	MaxParticipants    int       `bson:"max_participants"`
	EquipmentIncluded  bool      `bson:"equipment_included"`
	RequiresSafetyInfo bool      `bson:"requires_safety_info"`
}

type SlotDoc struct {
	ClassID   uuid.UUID `bson:"class_id"`
	Date      string    `bson:"date"` // "2006-01-02"
	Start     string    `bson:"start"`
	SpotsLeft int       `bson:"spots_left"`
}

func (d ClassDoc) toDomain() domain.CatalogItem {
	return domain.CatalogItem{
		ID:                 d.ID,
		CategoryID:         d.CategoryID,
		Title:              d.Title,
		Difficulty:         domain.Difficulty(d.Difficulty),
		Instructor:         d.Instructor,
		Duration:           time.Duration(d.DurationMinutes) * time.Minute,
		BasePriceCents:     d.BasePriceCents,
		PeakPriceCents:     d.PeakPriceCents,
		MaxParticipants:    d.MaxParticipants,
		EquipmentIncluded:  d.EquipmentIncluded,
		RequiresSafetyInfo: d.RequiresSafetyInfo,
	}
}

func (c *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cur, err := c.categories.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Category
	for cur.Next(ctx) {
		var doc CategoryDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, domain.Category{ID: doc.ID, Name: doc.Name})
	}
	return out, cur.Err()
}

func (c *CatalogRepository) ListClasses(ctx context.Context, categoryID string) ([]domain.CatalogItem, error) {
	cur, err := c.classes.Find(ctx, bson.M{"category_id": categoryID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.CatalogItem
	for cur.Next(ctx) {
		var doc ClassDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cur.Err()
}

func (c *CatalogRepository) GetClass(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error) {
	var doc ClassDoc
	err := c.classes.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return domain.CatalogItem{}, domain.ErrNotFound
	}
	if err != nil {
		c.logger.WithError(err).Error("failed to get class")
		return domain.CatalogItem{}, err
	}
	return doc.toDomain(), nil
}

func (c *CatalogRepository) ListTimeSlots(ctx context.Context, classID uuid.UUID, date time.Time) ([]domain.TimeSlot, error) {
	cur, err := c.slots.Find(ctx, bson.M{"class_id": classID, "date": date.UTC().Format("2006-01-02")})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.TimeSlot
	for cur.Next(ctx) {
		var doc SlotDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		d, err := time.ParseInLocation("2006-01-02", doc.Date, time.UTC)
		if err != nil {
			continue
		}
		out = append(out, domain.TimeSlot{ClassID: doc.ClassID, Date: d, Start: doc.Start, SpotsLeft: doc.SpotsLeft})
	}
	return out, cur.Err()
}

// SeedClass inserts catalog documents; used by integration tests and local
// bootstrap, never by the funnel itself.
func (c *CatalogRepository) SeedClass(ctx context.Context, category domain.Category, item domain.CatalogItem, slots []domain.TimeSlot) error {
	_, err := c.categories.UpdateOne(ctx,
		bson.M{"_id": category.ID},
		bson.M{"$set": CategoryDoc{ID: category.ID, Name: category.Name}},
		optionsUpsert(),
	)
	if err != nil {
		return err
	}
	doc := ClassDoc{
		ID:                 item.ID,
		CategoryID:         item.CategoryID,
		Title:              item.Title,
		Difficulty:         string(item.Difficulty),
		Instructor:         item.Instructor,
		DurationMinutes:    int(item.Duration / time.Minute),
		BasePriceCents:     item.BasePriceCents,
		PeakPriceCents:     item.PeakPriceCents,
		MaxParticipants:    item.MaxParticipants,
		EquipmentIncluded:  item.EquipmentIncluded,
		RequiresSafetyInfo: item.RequiresSafetyInfo,
	}
	if _, err := c.classes.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, optionsUpsert()); err != nil {
		return err
	}
	for _, s := range slots {
		sd := SlotDoc{ClassID: s.ClassID, Date: s.Date.UTC().Format("2006-01-02"), Start: s.Start, SpotsLeft: s.SpotsLeft}
		if _, err := c.slots.InsertOne(ctx, sd); err != nil {
			return err
		}
	}
	return nil
}
