package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"podcast-insights/pkg/domain"
)

// MongoClient stores ingest records as documents in a MongoDB collection
type MongoClient struct {
	mongoClient *mongo.Client
	database    *mongo.Database
	collection  *mongo.Collection
}

// NewMongoClient creates a new MongoDB record store
func NewMongoClient(connectionString, databaseName, collectionName string) *MongoClient {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		// Return client with nil - error will be caught during Connect()
		return &MongoClient{}
	}

	database := mongoClient.Database(databaseName)
	collection := database.Collection(collectionName)

	return &MongoClient{
		mongoClient: mongoClient,
		database:    database,
		collection:  collection,
	}
}

// Connect verifies the connection and ensures a (non-unique) youtube_url index
func (c *MongoClient) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	if err := c.mongoClient.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	_, err := c.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "youtube_url", Value: 1}},
		Options: options.Index().SetName("youtube_url_idx"),
	})
	if err != nil {
		return fmt.Errorf("create youtube_url index: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection
func (c *MongoClient) Close() error {
	if c.mongoClient == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.mongoClient.Disconnect(ctx)
}

// URLExists reports whether a document with the given youtube_url is stored
func (c *MongoClient) URLExists(ctx context.Context, youtubeURL string) (bool, error) {
	if c.collection == nil {
		return false, fmt.Errorf("collection not initialized")
	}

	n, err := c.collection.CountDocuments(ctx, bson.M{"youtube_url": youtubeURL}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count youtube_url: %w", err)
	}
	return n > 0, nil
}

// InsertRecord inserts the record as a new document
func (c *MongoClient) InsertRecord(ctx context.Context, rec *domain.IngestRecord) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}

	if _, err := c.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert record youtube_url=%q: %w", rec.YouTubeURL, err)
	}
	return nil
}

// ListRecords returns all stored records in insertion order
func (c *MongoClient) ListRecords(ctx context.Context) ([]domain.IngestRecord, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	cursor, err := c.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer cursor.Close(ctx)

	var out []domain.IngestRecord
	for cursor.Next(ctx) {
		var rec domain.IngestRecord
		if err := cursor.Decode(&rec); err != nil {
			continue // Skip invalid documents
		}
		out = append(out, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}
