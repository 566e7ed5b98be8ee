package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Interaction is one entry of the structured interaction-log store.
type Interaction struct {
	CustomerID string    `bson:"customer_id" json:"customer_id"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
	Channel    string    `bson:"channel" json:"channel"`
	Summary    string    `bson:"summary" json:"summary"`
	Sentiment  float64   `bson:"sentiment" json:"sentiment"`
}

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns default MongoDB configuration
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "support",
		Collection: "interactions",
	}
}

// InteractionStore reads the customer interaction log from MongoDB.
type InteractionStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewInteractionStore connects to MongoDB and verifies the connection.
func NewInteractionStore(config *MongoConfig) (*InteractionStore, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &InteractionStore{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}, nil
}

// RecentInteractions returns up to limit interactions for the customer within
// the lookback window, newest first.
func (s *InteractionStore) RecentInteractions(ctx context.Context, customerID string, days, limit int) ([]Interaction, error) {
	if days <= 0 {
		days = 90
	}
	if limit <= 0 {
		limit = 20
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	filter := bson.M{
		"customer_id": customerID,
		"timestamp":   bson.M{"$gt": cutoff},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer cursor.Close(ctx)

	var interactions []Interaction
	if err := cursor.All(ctx, &interactions); err != nil {
		return nil, fmt.Errorf("failed to decode interactions: %w", err)
	}
	return interactions, nil
}

// Append records one interaction.
func (s *InteractionStore) Append(ctx context.Context, interaction Interaction) error {
	if interaction.Timestamp.IsZero() {
		interaction.Timestamp = time.Now().UTC()
	}
	if _, err := s.collection.InsertOne(ctx, interaction); err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// Ping checks MongoDB connectivity.
func (s *InteractionStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB.
func (s *InteractionStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
