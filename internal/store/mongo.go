package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shoplight/copilot-platform/internal/model"
	"github.com/shoplight/copilot-platform/pkg/metrics"
)

const (
	collConversations = "conversations"
	collParticipants  = "participants"
	collMessages      = "messages"
)

// MongoStore is the durable ConversationStore. AppendTurn runs inside a
// multi-document transaction so both messages and the conversation
// pointer update commit together.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore creates a store on the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// EnsureIndexes creates the uniqueness and ordering indexes the data
// model relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(collParticipants).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// A human identity appears at most once per conversation.
			Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "identity_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"identity_id": bson.M{"$type": "string"}},
			),
		},
	})
	if err != nil {
		return fmt.Errorf("participant indexes: %w", err)
	}

	_, err = s.db.Collection(collMessages).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("message indexes: %w", err)
	}

	_, err = s.db.Collection(collConversations).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "kind", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("conversation indexes: %w", err)
	}
	return nil
}

// EnsureConversation implements ConversationStore.
func (s *MongoStore) EnsureConversation(ctx context.Context, tenantID, identityID string, kind model.Kind, hint string) (*model.Conversation, *model.Participant, error) {
	if hint != "" {
		conv, err := s.GetConversation(ctx, tenantID, hint)
		if err != nil {
			return nil, nil, err
		}
		participant, err := s.findParticipant(ctx, hint, identityID)
		if err != nil {
			return nil, nil, err
		}
		if participant == nil && kind == model.KindCopilot {
			// Only admin callers may take the unclaimed copilot seat.
			participant, err = s.claimPlaceholder(ctx, hint, identityID)
			if err != nil {
				return nil, nil, err
			}
		}
		if participant == nil {
			return nil, nil, ErrForbidden
		}
		return conv, participant, nil
	}

	conv, participant, err := s.latestActive(ctx, tenantID, identityID, kind)
	if err != nil {
		return nil, nil, err
	}
	if conv != nil {
		return conv, participant, nil
	}
	return s.create(ctx, tenantID, identityID, kind)
}

// latestActive finds the identity's most recently updated open
// conversation of the kind, or nil when there is none.
func (s *MongoStore) latestActive(ctx context.Context, tenantID, identityID string, kind model.Kind) (*model.Conversation, *model.Participant, error) {
	cur, err := s.db.Collection(collParticipants).Find(ctx, bson.M{"identity_id": identityID})
	if err != nil {
		return nil, nil, err
	}
	defer cur.Close(ctx)

	var memberships []model.Participant
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, nil, err
	}
	if len(memberships) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, len(memberships))
	byConversation := make(map[string]*model.Participant, len(memberships))
	for i := range memberships {
		ids[i] = memberships[i].ConversationID
		byConversation[memberships[i].ConversationID] = &memberships[i]
	}

	var conv model.Conversation
	err = s.db.Collection(collConversations).FindOne(ctx,
		bson.M{
			"id":         bson.M{"$in": ids},
			"tenant_id":  tenantID,
			"kind":       kind,
			"deleted_at": nil,
		},
		options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &conv, byConversation[conv.ID], nil
}

func (s *MongoStore) create(ctx context.Context, tenantID, identityID string, kind model.Kind) (*model.Conversation, *model.Participant, error) {
	now := time.Now()
	conv := &model.Conversation{
		ID:        newID(),
		TenantID:  tenantID,
		Kind:      kind,
		Metadata:  map[string]any{"kind": string(kind)},
		CreatedAt: now,
		UpdatedAt: now,
	}

	identity := identityID
	initiatorRole := model.ParticipantRoleHuman
	if kind == model.KindCopilot {
		initiatorRole = model.ParticipantRoleAdmin
	}
	initiator := &model.Participant{
		ID:             newID(),
		ConversationID: conv.ID,
		IdentityID:     &identity,
		Role:           initiatorRole,
		CreatedAt:      now,
	}
	assistant := &model.Participant{
		ID:             newID(),
		ConversationID: conv.ID,
		Role:           model.ParticipantRoleAssistant,
		CreatedAt:      now,
	}
	participants := []any{initiator, assistant}
	if kind == model.KindCopilot {
		participants = append(participants, &model.Participant{
			ID:             newID(),
			ConversationID: conv.ID,
			Role:           model.ParticipantRoleAdmin,
			CreatedAt:      now,
		})
	}

	welcome := WelcomeText
	welcomeMsg := &model.Message{
		ID:             newID(),
		ConversationID: conv.ID,
		ParticipantID:  &assistant.ID,
		Role:           model.RoleAssistant,
		Content:        &welcome,
		Metadata:       map[string]any{model.MetaWelcome: true},
		CreatedAt:      now,
	}

	err := s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.db.Collection(collConversations).InsertOne(sc, conv); err != nil {
			return err
		}
		if _, err := s.db.Collection(collParticipants).InsertMany(sc, participants); err != nil {
			return err
		}
		_, err := s.db.Collection(collMessages).InsertOne(sc, welcomeMsg)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create conversation: %w", err)
	}
	metrics.ConversationsTotal.WithLabelValues(string(kind)).Inc()
	return conv, initiator, nil
}

// AppendTurn implements ConversationStore.
func (s *MongoStore) AppendTurn(ctx context.Context, conversationID string, human, assistant *model.Message) (*model.Message, *model.Message, error) {
	now := time.Now()
	stampMessage(human, conversationID, now)
	stampMessage(assistant, conversationID, now.Add(time.Millisecond))

	err := s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		var conv model.Conversation
		err := s.db.Collection(collConversations).FindOne(sc,
			bson.M{"id": conversationID, "deleted_at": nil},
		).Decode(&conv)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if _, err := s.db.Collection(collMessages).InsertMany(sc, []any{human, assistant}); err != nil {
			return err
		}

		_, err = s.db.Collection(collConversations).UpdateOne(sc,
			bson.M{"id": conversationID},
			bson.M{"$set": bson.M{
				"last_message_id": assistant.ID,
				"last_message_at": assistant.CreatedAt,
				"updated_at":      assistant.CreatedAt,
			}},
		)
		if err != nil {
			return err
		}

		for _, msg := range []*model.Message{human, assistant} {
			filter := bson.M{
				"conversation_id": conversationID,
				"role":            bson.M{"$ne": model.ParticipantRoleAssistant},
			}
			if msg.ParticipantID != nil {
				filter["id"] = bson.M{"$ne": *msg.ParticipantID}
			}
			if _, err := s.db.Collection(collParticipants).UpdateMany(sc, filter,
				bson.M{"$inc": bson.M{"unread_count": 1}},
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return human, assistant, nil
}

// LoadHistory implements ConversationStore.
func (s *MongoStore) LoadHistory(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	// Newest first, then reversed into chronological order.
	cur, err := s.db.Collection(collMessages).Find(ctx,
		bson.M{"conversation_id": conversationID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "id", Value: -1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var newest []model.Message
	if err := cur.All(ctx, &newest); err != nil {
		return nil, err
	}
	out := make([]model.Message, len(newest))
	for i := range newest {
		out[len(newest)-1-i] = newest[i]
	}
	return out, nil
}

// ListMessages implements ConversationStore.
func (s *MongoStore) ListMessages(ctx context.Context, tenantID, conversationID string, pageSize int, rawCursor string) (*model.ListMessagesResponse, error) {
	if _, err := s.GetConversation(ctx, tenantID, conversationID); err != nil {
		return nil, err
	}
	c, err := decodeCursor(rawCursor)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	filter := bson.M{"conversation_id": conversationID}
	if c.ID != "" {
		filter["$or"] = []bson.M{
			{"created_at": bson.M{"$gt": c.CreatedAt}},
			{"created_at": c.CreatedAt, "id": bson.M{"$gt": c.ID}},
		}
	}

	cur, err := s.db.Collection(collMessages).Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "id", Value: 1}}).
			SetLimit(int64(pageSize)+1),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var page []model.Message
	if err := cur.All(ctx, &page); err != nil {
		return nil, err
	}

	resp := &model.ListMessagesResponse{Messages: page}
	if len(page) > pageSize {
		resp.Messages = page[:pageSize]
		last := resp.Messages[pageSize-1]
		resp.HasMore = true
		resp.NextCursor = encodeCursor(cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return resp, nil
}

// GetConversation implements ConversationStore.
func (s *MongoStore) GetConversation(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.Collection(collConversations).FindOne(ctx,
		bson.M{"id": conversationID, "tenant_id": tenantID, "deleted_at": nil},
	).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations implements ConversationStore.
func (s *MongoStore) ListConversations(ctx context.Context, tenantID, identityID string, limit, offset int) (*model.ListConversationsResponse, error) {
	cur, err := s.db.Collection(collParticipants).Find(ctx, bson.M{"identity_id": identityID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []model.Participant
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	ids := make([]string, len(memberships))
	for i := range memberships {
		ids[i] = memberships[i].ConversationID
	}

	filter := bson.M{"id": bson.M{"$in": ids}, "tenant_id": tenantID, "deleted_at": nil}
	total, err := s.db.Collection(collConversations).CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	convCur, err := s.db.Collection(collConversations).Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "updated_at", Value: -1}}).
			SetSkip(int64(offset)).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer convCur.Close(ctx)

	var convs []model.Conversation
	if err := convCur.All(ctx, &convs); err != nil {
		return nil, err
	}
	return &model.ListConversationsResponse{
		Conversations: convs,
		Total:         int(total),
		HasMore:       offset+len(convs) < int(total),
	}, nil
}

// DeleteConversation implements ConversationStore.
func (s *MongoStore) DeleteConversation(ctx context.Context, tenantID, conversationID string) error {
	now := time.Now()
	res, err := s.db.Collection(collConversations).UpdateOne(ctx,
		bson.M{"id": conversationID, "tenant_id": tenantID, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRead implements ConversationStore.
func (s *MongoStore) MarkRead(ctx context.Context, conversationID, identityID string) error {
	res, err := s.db.Collection(collParticipants).UpdateOne(ctx,
		bson.M{"conversation_id": conversationID, "identity_id": identityID},
		bson.M{"$set": bson.M{"unread_count": 0}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrForbidden
	}
	return nil
}

func (s *MongoStore) findParticipant(ctx context.Context, conversationID, identityID string) (*model.Participant, error) {
	var participant model.Participant
	err := s.db.Collection(collParticipants).FindOne(ctx,
		bson.M{"conversation_id": conversationID, "identity_id": identityID},
	).Decode(&participant)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

// claimPlaceholder atomically assigns an unclaimed admin seat to an
// identity, or returns nil when no seat is free.
func (s *MongoStore) claimPlaceholder(ctx context.Context, conversationID, identityID string) (*model.Participant, error) {
	var participant model.Participant
	err := s.db.Collection(collParticipants).FindOneAndUpdate(ctx,
		bson.M{
			"conversation_id": conversationID,
			"identity_id":     nil,
			"role":            model.ParticipantRoleAdmin,
		},
		bson.M{"$set": bson.M{"identity_id": identityID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&participant)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (s *MongoStore) inTransaction(ctx context.Context, fn func(mongo.SessionContext) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}
