package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ira-app/sally-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionCollection = "chats"

// SessionRepository implements domain.SessionStore over MongoDB
type SessionRepository struct {
	coll *mongo.Collection
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(client *Client) *SessionRepository {
	return &SessionRepository{coll: client.Database().Collection(sessionCollection)}
}

type sessionDoc struct {
	ID        string       `bson:"_id"`
	UserID    string       `bson:"user_id"`
	CreatedAt time.Time    `bson:"created_at"`
	Messages  []messageDoc `bson:"messages"`
}

type messageDoc struct {
	ID         string    `bson:"id"`
	Role       string    `bson:"role"`
	Content    string    `bson:"content"`
	TokenUsage int       `bson:"token_usage,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (r *SessionRepository) Get(ctx context.Context, sessionID uuid.UUID) (*domain.ChatSession, error) {
	var doc sessionDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": sessionID.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	userID, err := uuid.Parse(doc.UserID)
	if err != nil {
		return nil, fmt.Errorf("malformed user id in session document: %w", err)
	}

	session := &domain.ChatSession{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: doc.CreatedAt,
		Messages:  make([]domain.Message, 0, len(doc.Messages)),
	}
	for _, m := range doc.Messages {
		msgID, err := uuid.Parse(m.ID)
		if err != nil {
			return nil, fmt.Errorf("malformed message id in session document: %w", err)
		}
		session.Messages = append(session.Messages, domain.Message{
			ID:         msgID,
			Role:       domain.MessageRole(m.Role),
			Content:    m.Content,
			TokenUsage: m.TokenUsage,
			CreatedAt:  m.CreatedAt,
		})
	}

	return session, nil
}

// AppendMessage pushes the message onto the transcript. The upsert
// creates the session document with its owner and creation time the
// first time a message arrives for a new session ID.
func (r *SessionRepository) AppendMessage(ctx context.Context, sessionID, userID uuid.UUID, msg domain.Message) error {
	doc := messageDoc{
		ID:         msg.ID.String(),
		Role:       string(msg.Role),
		Content:    msg.Content,
		TokenUsage: msg.TokenUsage,
		CreatedAt:  msg.CreatedAt,
	}

	update := bson.M{
		"$push": bson.M{"messages": doc},
		"$setOnInsert": bson.M{
			"user_id":    userID.String(),
			"created_at": time.Now(),
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": sessionID.String()}, update, opts); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}
