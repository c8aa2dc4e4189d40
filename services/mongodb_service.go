package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pnodewatch/config"
	"pnodewatch/models"
)

const (
	CollectionNetworkSnapshots = "network_snapshots"
	CollectionPnodeSnapshots   = "pnode_snapshots"
	CollectionPnodeStats       = "pnode_stats"
)

// MongoDBService is the persistence sink for time-series rows. With
// persistence disabled (no URI configured) every insert is a no-op, so
// collectors can always write through it.
type MongoDBService struct {
	client  *mongo.Client
	db      *mongo.Database
	enabled bool
}

func NewMongoDBService(cfg *config.Config) (*MongoDBService, error) {
	if !cfg.MongoDB.Enabled || cfg.MongoDB.URI == "" {
		log.Println("MongoDB disabled, history inserts will be dropped")
		return &MongoDBService{enabled: false}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.MongoDB.URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.MongoDB.Database)

	service := &MongoDBService{
		client:  client,
		db:      db,
		enabled: true,
	}

	if err := service.createIndexes(ctx); err != nil {
		log.Printf("Warning: Failed to create indexes: %v", err)
	}

	log.Printf("MongoDB connected successfully to database: %s", cfg.MongoDB.Database)
	return service, nil
}

func (m *MongoDBService) Enabled() bool { return m.enabled }

func (m *MongoDBService) createIndexes(ctx context.Context) error {
	// Network snapshots: recent-first queries
	_, err := m.db.Collection(CollectionNetworkSnapshots).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "timestamp", Value: -1}},
		Options: options.Index().SetName("timestamp_desc"),
	})
	if err != nil {
		return err
	}

	// Per-node snapshots and stats: compound pubkey+timestamp
	for _, coll := range []string{CollectionPnodeSnapshots, CollectionPnodeStats} {
		_, err = m.db.Collection(coll).Indexes().CreateMany(ctx, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "pubkey", Value: 1}, {Key: "timestamp", Value: -1}},
				Options: options.Index().SetName("pubkey_timestamp"),
			},
			{
				Keys:    bson.D{{Key: "timestamp", Value: -1}},
				Options: options.Index().SetName("timestamp_desc"),
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *MongoDBService) Close() error {
	if !m.enabled || m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// ============================================
// Insert contract consumed by the collectors
// ============================================

func (m *MongoDBService) InsertNetworkSnapshot(ctx context.Context, doc *models.NetworkSnapshotDoc) error {
	if !m.enabled {
		return nil
	}
	_, err := m.db.Collection(CollectionNetworkSnapshots).InsertOne(ctx, doc)
	return err
}

func (m *MongoDBService) InsertPnodeSnapshots(ctx context.Context, docs []models.PnodeSnapshotDoc) error {
	if !m.enabled || len(docs) == 0 {
		return nil
	}
	payload := make([]interface{}, 0, len(docs))
	for i := range docs {
		payload = append(payload, docs[i])
	}
	_, err := m.db.Collection(CollectionPnodeSnapshots).InsertMany(ctx, payload)
	return err
}

func (m *MongoDBService) InsertPnodeStats(ctx context.Context, doc *models.PnodeStatsDoc) error {
	if !m.enabled {
		return nil
	}
	_, err := m.db.Collection(CollectionPnodeStats).InsertOne(ctx, doc)
	return err
}

// ============================================
// History reads for the API
// ============================================

func (m *MongoDBService) GetNetworkSnapshotsRange(ctx context.Context, start, end time.Time) ([]models.NetworkSnapshotDoc, error) {
	if !m.enabled {
		return nil, fmt.Errorf("mongodb is disabled")
	}

	filter := bson.M{"timestamp": bson.M{"$gte": start, "$lte": end}}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := m.db.Collection(CollectionNetworkSnapshots).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.NetworkSnapshotDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (m *MongoDBService) GetPnodeStatsRange(ctx context.Context, pubkey string, start, end time.Time) ([]models.PnodeStatsDoc, error) {
	if !m.enabled {
		return nil, fmt.Errorf("mongodb is disabled")
	}

	filter := bson.M{
		"pubkey":    pubkey,
		"timestamp": bson.M{"$gte": start, "$lte": end},
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := m.db.Collection(CollectionPnodeStats).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.PnodeStatsDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (m *MongoDBService) DeleteOldSnapshots(ctx context.Context, olderThan time.Duration) error {
	if !m.enabled {
		return nil
	}

	cutoff := time.Now().Add(-olderThan)
	filter := bson.M{"timestamp": bson.M{"$lt": cutoff}}

	for _, coll := range []string{CollectionNetworkSnapshots, CollectionPnodeSnapshots, CollectionPnodeStats} {
		result, err := m.db.Collection(coll).DeleteMany(ctx, filter)
		if err != nil {
			return err
		}
		if result.DeletedCount > 0 {
			log.Printf("Pruned %d old documents from %s", result.DeletedCount, coll)
		}
	}
	return nil
}
