package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ira-app/sally-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const quotaCollection = "users"

// QuotaRepository implements domain.QuotaStore over MongoDB
type QuotaRepository struct {
	coll *mongo.Collection
}

// NewQuotaRepository creates a new quota repository
func NewQuotaRepository(client *Client) *QuotaRepository {
	return &QuotaRepository{coll: client.Database().Collection(quotaCollection)}
}

type quotaDoc struct {
	ID              string `bson:"_id"`
	TokensRemaining int    `bson:"tokens_remaining"`
	LastReset       string `bson:"last_reset"`
	TotalMessages   int    `bson:"total_messages"`
}

func (r *QuotaRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.QuotaRecord, error) {
	var doc quotaDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": userID.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quota record: %w", err)
	}

	return &domain.QuotaRecord{
		UserID:          userID,
		TokensRemaining: doc.TokensRemaining,
		LastResetDate:   doc.LastReset,
		TotalMessages:   doc.TotalMessages,
	}, nil
}

func (r *QuotaRepository) Put(ctx context.Context, record *domain.QuotaRecord) error {
	doc := quotaDoc{
		ID:              record.UserID.String(),
		TokensRemaining: record.TokensRemaining,
		LastReset:       record.LastResetDate,
		TotalMessages:   record.TotalMessages,
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return fmt.Errorf("failed to put quota record: %w", err)
	}
	return nil
}

// Increment applies the deltas with a single atomic $inc. A negative
// token delta is guarded by the filter so the counter never goes below
// zero; a non-matching filter (missing record or insufficient tokens)
// reports false without touching the document.
func (r *QuotaRepository) Increment(ctx context.Context, userID uuid.UUID, deltaTokens, deltaMessages int) (bool, error) {
	filter := bson.M{"_id": userID.String()}
	if deltaTokens < 0 {
		filter["tokens_remaining"] = bson.M{"$gte": -deltaTokens}
	}

	update := bson.M{"$inc": bson.M{
		"tokens_remaining": deltaTokens,
		"total_messages":   deltaMessages,
	}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to increment quota: %w", err)
	}

	return res.MatchedCount > 0, nil
}
