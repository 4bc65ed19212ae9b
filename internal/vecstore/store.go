// Package vecstore wraps the Qdrant gRPC client for leadlens.
//
// Two collection pairs are kept: a semantic index (real vectors plus a
// compact filterable payload) and a content store (dummy 1-dim vectors
// plus the authoritative serialized record), joined by a shared numeric
// storage id. The pairing is owned by callers; this package only
// exposes the point operations.
package vecstore

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

var tracer = otel.Tracer("leadlens.vecstore")

// Config configures the Qdrant gRPC client.
type Config struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334), not the HTTP REST port.
	Port int

	UseTLS bool
	APIKey string

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB.
	MaxMessageSize int

	// RequestTimeout bounds every individual request.
	// Default: 30 seconds.
	RequestTimeout time.Duration

	// RetryAttempts is the number of retries for transient failures.
	// Default: 3.
	RetryAttempts int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}
	return nil
}

// Point is a vector point with a numeric id.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]interface{}
}

// ScoredPoint is a search result with its similarity score.
type ScoredPoint struct {
	Point
	Score float32
}

// CollectionInfo holds collection metadata.
type CollectionInfo struct {
	Name       string
	PointCount int
}

// Store is a Qdrant-backed point store.
type Store struct {
	client *qdrant.Client
	config Config
	logger *zap.Logger
}

// New creates a Store and verifies connectivity with a health check.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	qdrantConfig := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	}
	if !cfg.UseTLS {
		qdrantConfig.GrpcOptions = append(qdrantConfig.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	}

	client, err := qdrant.NewClient(qdrantConfig)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	s := &Store{
		client: client,
		config: cfg,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	if err := s.Health(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	logger.Info("qdrant connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)

	return s, nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Health performs a health check on the Qdrant connection.
func (s *Store) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection if it does not exist yet.
// Cosine distance throughout; the content store uses vectorSize 1 with
// dummy vectors and is never searched by similarity.
func (s *Store) EnsureCollection(ctx context.Context, name string, vectorSize uint64) error {
	ctx, span := tracer.Start(ctx, "vecstore.EnsureCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	exists, err := s.collectionExists(ctx, name)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	err = s.retryOperation(ctx, func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     vectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	s.logger.Info("created collection",
		zap.String("collection", name),
		zap.Uint64("vector_size", vectorSize),
	)
	return nil
}

func (s *Store) collectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.retryOperation(ctx, func() error {
		info, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			st, ok := status.FromError(err)
			if ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = info != nil
		return nil
	})
	return exists, err
}

// Upsert inserts or updates points in a collection.
func (s *Store) Upsert(ctx context.Context, collection string, points []*Point) error {
	ctx, span := tracer.Start(ctx, "vecstore.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("point_count", len(points)),
	)

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qdrantPoints[i] = toQdrantPoint(p)
	}

	err := s.retryOperation(ctx, func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         qdrantPoints,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting to %s: %w", collection, err)
	}
	return nil
}

// Search performs similarity search in a collection, ranked descending
// by score. The returned order is the index ranking; callers must not
// re-sort.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit uint64, filter *Filter) ([]*ScoredPoint, error) {
	ctx, span := tracer.Start(ctx, "vecstore.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("limit", int(limit)),
	)

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	var results []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(limit),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         filter.toQdrant(),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}

	scored := make([]*ScoredPoint, len(results))
	for i, r := range results {
		scored[i] = &ScoredPoint{
			Point: Point{
				ID:      r.Id.GetNum(),
				Payload: fromQdrantPayload(r.Payload),
			},
			Score: r.Score,
		}
	}
	span.SetAttributes(attribute.Int("result_count", len(scored)))
	return scored, nil
}

// Get retrieves points by numeric id. Missing ids are absent from the
// result, not errors.
func (s *Store) Get(ctx context.Context, collection string, ids []uint64) ([]*Point, error) {
	ctx, span := tracer.Start(ctx, "vecstore.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("id_count", len(ids)),
	)

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDNum(id)
	}

	var retrieved []*qdrant.RetrievedPoint
	err := s.retryOperation(ctx, func() error {
		res, err := s.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: collection,
			Ids:            pointIDs,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		retrieved = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("retrieving from %s: %w", collection, err)
	}

	points := make([]*Point, len(retrieved))
	for i, r := range retrieved {
		points[i] = &Point{
			ID:      r.Id.GetNum(),
			Payload: fromQdrantPayload(r.Payload),
		}
	}
	return points, nil
}

// Scroll pages through a collection's points without similarity
// ranking.
func (s *Store) Scroll(ctx context.Context, collection string, limit uint32, filter *Filter) ([]*Point, error) {
	ctx, span := tracer.Start(ctx, "vecstore.Scroll")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("limit", int(limit)),
	)

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	var retrieved []*qdrant.RetrievedPoint
	err := s.retryOperation(ctx, func() error {
		res, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Limit:          qdrant.PtrOf(limit),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         filter.toQdrant(),
		})
		if err != nil {
			return err
		}
		retrieved = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scrolling %s: %w", collection, err)
	}

	points := make([]*Point, len(retrieved))
	for i, r := range retrieved {
		points[i] = &Point{
			ID:      r.Id.GetNum(),
			Payload: fromQdrantPayload(r.Payload),
		}
	}
	return points, nil
}

// DeleteByFilter removes every point matching the filter.
func (s *Store) DeleteByFilter(ctx context.Context, collection string, filter *Filter) error {
	ctx, span := tracer.Start(ctx, "vecstore.DeleteByFilter")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	err := s.retryOperation(ctx, func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: filter.toQdrant(),
				},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}
	return nil
}

// Info returns point-count metadata for a collection.
func (s *Store) Info(ctx context.Context, collection string) (*CollectionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	var info *CollectionInfo
	err := s.retryOperation(ctx, func() error {
		collInfo, err := s.client.GetCollectionInfo(ctx, collection)
		if err != nil {
			return err
		}
		count := 0
		if collInfo.PointsCount != nil {
			count = int(*collInfo.PointsCount)
		}
		info = &CollectionInfo{Name: collection, PointCount: count}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("getting info for %s: %w", collection, err)
	}
	return info, nil
}

// retryOperation retries an operation with exponential backoff.
func (s *Store) retryOperation(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := time.Second

	for attempt := 0; attempt <= s.config.RetryAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransientError(err) {
			return err
		}
		if attempt == s.config.RetryAttempts {
			break
		}

		s.logger.Debug("retrying after transient error",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled: %w", ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", s.config.RetryAttempts, lastErr)
}

// isTransientError checks if an error is transient and should be retried.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}
