package config

import (
	"context"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func MongoDatabaseName() string {
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "eclipselink"
	}
	return dbName
}

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}

	db := MongoClient.Database(MongoDatabaseName())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// transcripts indexes
	transcripts := db.Collection("transcripts")
	_, err := transcripts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// 1) One transcript per recording; worker upserts key on this
		{
			Keys: bson.D{{Key: "recording_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_recording_id").
				SetUnique(true),
		},
		// 2) Query helper for handoff history
		{
			Keys:    bson.D{{Key: "handoff_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("by_handoff_created"),
		},
	})
	return err
}
