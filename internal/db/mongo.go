package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collections struct {
	Users          *mongo.Collection
	Briefings      *mongo.Collection
	Projects       *mongo.Collection
	UploadSessions *mongo.Collection
	States         *mongo.Collection
	Cities         *mongo.Collection
	Categories     *mongo.Collection
	CaptationSites *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *Collections, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	db := client.Database(dbName)

	cols := &Collections{
		Users:          db.Collection("users"),
		Briefings:      db.Collection("briefings"),
		Projects:       db.Collection("projects"),
		UploadSessions: db.Collection("upload_sessions"),
		States:         db.Collection("states"),
		Cities:         db.Collection("cities"),
		Categories:     db.Collection("categories"),
		CaptationSites: db.Collection("captation_sites"),
	}

	return client, cols, nil
}

// EnsureIndexes creates the indexes the application relies on. The unique
// keys on normalized names back the get-or-create upserts and the
// insert-conflict duplicate detection of the captation import.
func EnsureIndexes(ctx context.Context, cols *Collections) error {
	indexTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	specs := []struct {
		col    *mongo.Collection
		models []mongo.IndexModel
	}{
		{cols.Users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{cols.Briefings, []mongo.IndexModel{
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		}},
		{cols.Projects, []mongo.IndexModel{
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "is_public", Value: 1}, {Key: "sort_order", Value: 1}}},
		}},
		{cols.UploadSessions, []mongo.IndexModel{
			{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32((48 * time.Hour).Seconds()))},
		}},
		{cols.States, []mongo.IndexModel{
			{Keys: bson.D{{Key: "abbreviation", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{cols.Cities, []mongo.IndexModel{
			{Keys: bson.D{{Key: "state_id", Value: 1}, {Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{cols.Categories, []mongo.IndexModel{
			{Keys: bson.D{{Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{cols.CaptationSites, []mongo.IndexModel{
			{Keys: bson.D{{Key: "city_id", Value: 1}, {Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "city_id", Value: 1}, {Key: "phone", Value: 1}}},
			{Keys: bson.D{{Key: "proposal_status", Value: 1}, {Key: "created_at", Value: -1}}},
		}},
	}

	for _, idx := range specs {
		if _, err := idx.col.Indexes().CreateMany(indexTimeout, idx.models); err != nil {
			return err
		}
	}
	return nil
}
