package mongo

import (
	"context"
	"strings"
	"time"

	"github.com/reservesurf/booking-funnel/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// PromoRepository reads the back-office promo catalog and records uses.
type PromoRepository struct {
	coll *mongo.Collection
}

func NewPromoRepository(db *mongo.Database) *PromoRepository {
	return &PromoRepository{coll: db.Collection("promos")}
}

type PromoDoc struct {
	Code          string    `bson:"_id"`
	Kind          string    `bson:"kind"`
	Value         int64     `bson:"value"`
	MinOrderCents int64     `bson:"min_order_cents"`
	MaxUses       int       `bson:"max_uses"`
	Uses          int       `bson:"uses"`
	ExpiresAt     time.Time `bson:"expires_at,omitempty"`
}

func (p *PromoRepository) GetPromo(ctx context.Context, code string) (domain.PromoCode, error) {
	var doc PromoDoc
	err := p.coll.FindOne(ctx, bson.M{"_id": strings.ToUpper(code)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return domain.PromoCode{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PromoCode{}, err
	}
	return domain.PromoCode{
		Code:          doc.Code,
		Kind:          domain.PromoKind(doc.Kind),
		Value:         doc.Value,
		MinOrderCents: doc.MinOrderCents,
		MaxUses:       doc.MaxUses,
		Uses:          doc.Uses,
		ExpiresAt:     doc.ExpiresAt,
	}, nil
}

func (p *PromoRepository) IncrementUse(ctx context.Context, code string) error {
	res, err := p.coll.UpdateOne(ctx, bson.M{"_id": strings.ToUpper(code)}, bson.M{"$inc": bson.M{"uses": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SeedPromo upserts a promo code; test and bootstrap helper.
func (p *PromoRepository) SeedPromo(ctx context.Context, promo domain.PromoCode) error {
	doc := PromoDoc{
		Code:          strings.ToUpper(promo.Code),
		Kind:          string(promo.Kind),
		Value:         promo.Value,
		MinOrderCents: promo.MinOrderCents,
		MaxUses:       promo.MaxUses,
		Uses:          promo.Uses,
		ExpiresAt:     promo.ExpiresAt,
	}
	_, err := p.coll.UpdateOne(ctx, bson.M{"_id": doc.Code}, bson.M{"$set": doc}, optionsUpsert())
	return err
}
