// Package mongosink is an optional, best-effort auxiliary persistence layer
// for page results, adapted from internal/storage/database.go's MongoStorage
// for local development/debugging without standing up the ingestion API.
// Mirrors the teacher's client construction (mongo.Connect + Ping on a bounded
// context) but stores page-result documents instead of generic scraped items,
// and never fails the caller: mongosink errors are logged and swallowed,
// since the ingestion API POST remains the crawl's ship-of-record.
package mongosink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/siteprobe/siteprobe/internal/jobtypes"
)

// Sink mirrors shipped page results into a MongoDB collection.
type Sink struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger

	mu    sync.Mutex
	count int
}

// New connects to uri and pings it within a 10s timeout, then returns a Sink
// writing to database.collection. Callers should treat a non-nil error as
// "mongo sink unavailable" and continue without it (spec: "best-effort").
func New(uri, database, collection string, logger *slog.Logger) (*Sink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongosink connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongosink ping: %w", err)
	}

	return &Sink{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongosink"),
	}, nil
}

// WriteBatch mirrors one shipped batch into the collection, one document per
// page plus the batch's job/project IDs. Failures are logged, not returned,
// so a flaky local Mongo instance never blocks or fails the crawl.
func (s *Sink) WriteBatch(jobID, projectID string, pages []jobtypes.PageResult) {
	if len(pages) == 0 {
		return
	}
	docs := make([]any, len(pages))
	for i, pr := range pages {
		docs[i] = bson.M{
			"job_id":     jobID,
			"project_id": projectID,
			"shipped_at": time.Now().UTC(),
			"page":       pr,
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		s.logger.Warn("mongosink insert failed", "error", err, "pages", len(pages))
		return
	}

	s.mu.Lock()
	s.count += len(pages)
	s.mu.Unlock()
	s.logger.Debug("mongosink wrote batch", "pages", len(pages))
}

// Close disconnects the client within a 5s timeout.
func (s *Sink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("mongosink closing", "total_pages", s.count)
	return s.client.Disconnect(ctx)
}
