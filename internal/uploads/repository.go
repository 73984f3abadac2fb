package uploads

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SessionRepository interface {
	Create(ctx context.Context, session Session) error
	Get(ctx context.Context, id string) (Session, error)
	AddPart(ctx context.Context, id string, part int) (Session, error)
	Complete(ctx context.Context, id string, now time.Time) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, session Session) error {
	_, err := r.col.InsertOne(ctx, session)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (Session, error) {
	var session Session
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	return session, nil
}

// AddPart records an uploaded part. Re-uploading a part is a no-op.
func (r *MongoRepository) AddPart(ctx context.Context, id string, part int) (Session, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": id, "status": SessionOpen}
	update := bson.M{"$addToSet": bson.M{"uploaded_parts": part}}

	var session Session
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Session{}, ErrSessionClosed
		}
		return Session{}, err
	}
	return session, nil
}

// Complete closes an open session. A session completed concurrently yields
// ErrSessionClosed.
func (r *MongoRepository) Complete(ctx context.Context, id string, now time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": SessionOpen},
		bson.M{"$set": bson.M{"status": SessionCompleted, "completed_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrSessionClosed
	}
	return nil
}
