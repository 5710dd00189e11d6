package data

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/PaulBabatuyi/classroom-chat/internal/db"
	"github.com/PaulBabatuyi/classroom-chat/internal/feed"
)

// MongoStore implements Store on MongoDB. The send batch runs in a multi-document
// transaction; membership and mute sets use $addToSet/$pull; lastSeen uses $max.
type MongoStore struct {
	client   *db.Client
	rooms    *mongo.Collection
	messages *mongo.Collection
	docs     *mongo.Collection
	settings *mongo.Collection

	clock    *Clock
	notifier feed.Notifier
}

// NewMongoStore returns a store over the client's collections.
func NewMongoStore(c *db.Client, n feed.Notifier, clock *Clock) *MongoStore {
	if n == nil {
		n = feed.NewBroker()
	}
	if clock == nil {
		clock = NewClock(nil)
	}
	return &MongoStore{
		client:   c,
		rooms:    c.RoomsCollection(),
		messages: c.MessagesCollection(),
		docs:     c.DocumentsCollection(),
		settings: c.SettingsCollection(),
		clock:    clock,
		notifier: n,
	}
}

func (s *MongoStore) Notifier() feed.Notifier { return s.notifier }

func (s *MongoStore) GetRoom(ctx context.Context, id string) (*Room, error) {
	var r Room
	if err := s.rooms.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, classify(err)
	}
	return &r, nil
}

func (s *MongoStore) InsertRoom(ctx context.Context, r *Room) (*Room, error) {
	room := r.Clone()
	if room.ID == "" {
		room.ID = bson.NewObjectID().Hex()
	}
	if room.Participants == nil {
		room.Participants = []string{}
	}
	ts := s.clock.Now()
	room.CreatedAt, room.UpdatedAt = ts, ts
	room.LastSeen = make(map[string]time.Time, len(room.Participants))
	for _, p := range room.Participants {
		room.LastSeen[p] = ts
	}

	if _, err := s.rooms.InsertOne(ctx, room); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrRoomUnavailable
		}
		return nil, classify(err)
	}
	s.notifier.Publish(ctx, roomTopics(room)...)
	return room, nil
}

func (s *MongoStore) AddParticipant(ctx context.Context, roomID, userID string) (*Room, error) {
	// return the pre-image so we can tell whether the add-to-set was a no-op
	var before Room
	err := s.rooms.FindOneAndUpdate(ctx,
		bson.M{"_id": roomID, "kind": KindGroup},
		bson.M{"$addToSet": bson.M{"participants": userID}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		return nil, classify(err)
	}
	if before.HasParticipant(userID) {
		return &before, nil
	}
	after := before.Clone()
	after.Participants = append(after.Participants, userID)
	s.notifier.Publish(ctx, roomTopics(after)...)
	return after, nil
}

func (s *MongoStore) RemoveParticipant(ctx context.Context, roomID, userID string) (*Room, error) {
	var before Room
	err := s.rooms.FindOneAndUpdate(ctx,
		bson.M{"_id": roomID, "kind": KindGroup},
		bson.M{"$pull": bson.M{"participants": userID}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		return nil, classify(err)
	}
	after := before.Clone()
	after.Participants = slices.DeleteFunc(after.Participants, func(p string) bool { return p == userID })
	if before.HasParticipant(userID) {
		s.notifier.Publish(ctx, roomTopics(after, UserRoomsTopic(userID))...)
	}
	return after, nil
}

func (s *MongoStore) DeleteRoom(ctx context.Context, roomID string) (*Room, error) {
	var r Room
	if err := s.rooms.FindOneAndDelete(ctx, bson.M{"_id": roomID}).Decode(&r); err != nil {
		return nil, classify(err)
	}
	s.notifier.Publish(ctx, roomTopics(&r, MessagesTopic(roomID))...)
	return &r, nil
}

func (s *MongoStore) DeleteMessages(ctx context.Context, roomID string) (int64, error) {
	res, err := s.messages.DeleteMany(ctx, bson.M{"room_id": roomID})
	if err != nil {
		return 0, classify(err)
	}
	if res.DeletedCount > 0 {
		s.notifier.Publish(ctx, MessagesTopic(roomID))
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) AdvanceLastSeen(ctx context.Context, roomID, userID string, at time.Time) (*Room, error) {
	at = clampSeen(at, s.clock.Now())

	var r Room
	// $max keeps the marker monotonic even when a stale request lands late.
	// The pre-image tells whether it actually moved.
	err := s.rooms.FindOneAndUpdate(ctx,
		bson.M{"_id": roomID},
		bson.M{"$max": bson.M{"last_seen." + userID: at}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&r)
	if err != nil {
		return nil, classify(err)
	}
	if !raiseSeen(&r, userID, at) {
		return &r, nil
	}
	s.notifier.Publish(ctx, seenTopics(userID)...)
	return &r, nil
}

func (s *MongoStore) CommitSend(ctx context.Context, b SendBatch) (*Message, *Room, error) {
	sess, err := s.client.Mongo().StartSession()
	if err != nil {
		return nil, nil, classify(err)
	}
	defer sess.EndSession(ctx)

	var (
		msg  *Message
		room Room
	)
	// WithTransaction re-runs the callback on TransientTransactionError, which is
	// how two first-senders racing on the same upsert converge.
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		var cur Room
		err := s.rooms.FindOne(ctx, bson.M{"_id": b.RoomID}).Decode(&cur)
		created := false
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			if b.Create == nil {
				return nil, ErrRoomUnavailable
			}
			cur = *b.Create.Clone()
			cur.ID = b.RoomID
			cur.UpdatedAt = time.Time{}
			created = true
		case err != nil:
			return nil, err
		}
		if b.MemberOnly && !cur.HasParticipant(b.SenderID) {
			return nil, ErrNotMember
		}

		ts := s.clock.After(cur.UpdatedAt)

		if created {
			participants := cur.Participants
			if participants == nil {
				participants = []string{}
			}
			// create-if-absent: a concurrent creator makes this a no-op match
			_, err := s.rooms.UpdateOne(ctx,
				bson.M{"_id": b.RoomID},
				bson.M{"$setOnInsert": bson.M{
					"tenant_id":    cur.TenantID,
					"kind":         cur.Kind,
					"name":         cur.Name,
					"participants": participants,
					"created_at":   ts,
				}},
				options.UpdateOne().SetUpsert(true),
			)
			if err != nil {
				return nil, err
			}
		}

		m := &Message{
			ID:         bson.NewObjectID().Hex(),
			RoomID:     b.RoomID,
			SenderID:   b.SenderID,
			SenderName: b.SenderName,
			Text:       b.Text,
			CreatedAt:  ts,
		}
		if _, err := s.messages.InsertOne(ctx, m); err != nil {
			return nil, err
		}

		res, err := s.rooms.UpdateOne(ctx,
			bson.M{"_id": b.RoomID},
			bson.M{"$set": bson.M{
				"last_message":             LastMessage{Text: b.Text, SenderID: b.SenderID, Timestamp: ts},
				"updated_at":               ts,
				"last_seen." + b.SenderID: ts,
			}},
		)
		if err != nil {
			return nil, err
		}
		// the room vanished between our read and this write
		if res.MatchedCount == 0 {
			return nil, ErrRoomUnavailable
		}

		if err := s.rooms.FindOne(ctx, bson.M{"_id": b.RoomID}).Decode(&room); err != nil {
			return nil, err
		}
		msg = m
		return nil, nil
	})
	if err != nil {
		return nil, nil, classify(err)
	}

	s.notifier.Publish(ctx, roomTopics(&room, MessagesTopic(room.ID))...)
	return msg, &room, nil
}

func (s *MongoStore) ListRooms(ctx context.Context, userID, tenantID string) ([]*Room, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"participants": userID},
		bson.M{"_id": tenantID, "kind": KindGeneral},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}})

	cursor, err := s.rooms.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(err)
	}
	defer cursor.Close(ctx)

	var rooms []*Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, classify(err)
	}
	return rooms, nil
}

func (s *MongoStore) ListMessages(ctx context.Context, roomID string) ([]*Message, error) {
	// _id breaks ties between messages sharing a millisecond across instances
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.messages.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, classify(err)
	}
	defer cursor.Close(ctx)

	messages := []*Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, classify(err)
	}
	return messages, nil
}

func (s *MongoStore) InsertDocument(ctx context.Context, d *Document) (*Document, error) {
	doc := *d
	if doc.ID == "" {
		doc.ID = bson.NewObjectID().Hex()
	}
	ts := s.clock.Now()
	doc.CreatedAt, doc.UpdatedAt = ts, ts
	if _, err := s.docs.InsertOne(ctx, &doc); err != nil {
		return nil, classify(err)
	}
	s.notifier.Publish(ctx, DocumentTopic(doc.ID))
	return &doc, nil
}

func (s *MongoStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	var d Document
	if err := s.docs.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, classify(err)
	}
	return &d, nil
}

func (s *MongoStore) UpdateDocument(ctx context.Context, id string, e DocumentEdit) (*Document, error) {
	set := bson.M{"text": e.Text, "last_input": e.LastInput}
	if e.Language != "" {
		set["language"] = e.Language
	}

	var d Document
	err := s.docs.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set, "$max": bson.M{"updated_at": s.clock.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		return nil, classify(err)
	}
	s.notifier.Publish(ctx, DocumentTopic(id))
	return &d, nil
}

func (s *MongoStore) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	var st Settings
	err := s.settings.FindOne(ctx, bson.M{"_id": userID}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &Settings{UserID: userID}, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return &st, nil
}

func (s *MongoStore) SetMuted(ctx context.Context, userID, roomID string, muted bool) (*Settings, error) {
	op := "$pull"
	if muted {
		op = "$addToSet"
	}

	var st Settings
	err := s.settings.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{
			op:     bson.M{"muted_rooms": roomID},
			"$set": bson.M{"updated_at": s.clock.Now()},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&st)
	if err != nil {
		return nil, classify(err)
	}
	return &st, nil
}

func (s *MongoStore) MutedBy(ctx context.Context, roomID string) ([]string, error) {
	cursor, err := s.settings.Find(ctx,
		bson.M{"muted_rooms": roomID},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, classify(err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, classify(err)
	}
	users := make([]string, len(rows))
	for i, r := range rows {
		users[i] = r.ID
	}
	return users, nil
}
