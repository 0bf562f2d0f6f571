// Package mongo stores each collection as a native MongoDB collection
// using the v2 driver. Document identifiers live in _id; body fields are
// top-level fields of the stored document.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/roach88/listorder/internal/store"
)

// Store is a MongoDB-backed document store bound to one database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*Store)(nil)

// Open connects to uri and verifies the connection with a ping.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		return nil, fmt.Errorf("mongo: database name is required")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// Collection returns a handle on the named collection.
func (s *Store) Collection(name string) (store.DocumentCollection, error) {
	if name == "" {
		return nil, fmt.Errorf("mongo: empty collection name")
	}
	return &Collection{coll: s.db.Collection(name)}, nil
}
