package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sevigo/ragbench/vectorstores"
)

var ErrInvalidURL = errors.New("qdrant: invalid URL provided")

// PointsClient is the subset of the generated points service the store uses.
type PointsClient interface {
	Search(ctx context.Context, in *qdrant.SearchPoints, opts ...grpc.CallOption) (*qdrant.SearchResponse, error)
}

// Store searches one Qdrant collection.
type Store struct {
	points         PointsClient
	closer         func() error
	collectionName string
	logger         *slog.Logger
}

var _ vectorstores.Searcher = (*Store)(nil)

// New connects to Qdrant over gRPC.
func New(opts ...Option) (*Store, error) {
	o, err := parseOptions(opts...)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("component", "qdrant_store", "collection", o.collectionName)

	client, err := createQdrantClient(o, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	logger.Info("Qdrant store initialized", "config", o.String())
	return &Store{
		points:         client.GetPointsClient(),
		closer:         client.Close,
		collectionName: o.collectionName,
		logger:         logger,
	}, nil
}

// NewWithClient builds a store on an existing points client.
func NewWithClient(points PointsClient, opts ...Option) (*Store, error) {
	o, err := parseOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &Store{
		points:         points,
		collectionName: o.collectionName,
		logger:         o.logger.With("component", "qdrant_store", "collection", o.collectionName),
	}, nil
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func createQdrantClient(opts options, logger *slog.Logger) (*qdrant.Client, error) {
	portStr := opts.qdrantURL.Port()
	if portStr == "" {
		portStr = strconv.Itoa(defaultPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid port %q: %w", ErrInvalidURL, portStr, err)
	}

	hostname := opts.qdrantURL.Hostname()
	logger.Debug("Creating Qdrant client", "host", hostname, "port", port, "tls", opts.useTLS)
	return qdrant.NewClient(&qdrant.Config{
		Host:   hostname,
		Port:   port,
		APIKey: opts.apiKey,
		UseTLS: opts.useTLS,
	})
}

// Search returns up to limit points nearest to vector. Filters become
// exact-match conditions that must all hold.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, options ...vectorstores.Option) ([]vectorstores.Hit, error) {
	if limit <= 0 {
		return nil, vectorstores.ErrInvalidLimit
	}
	if len(vector) == 0 {
		return nil, vectorstores.ErrEmptyVector
	}
	opts := vectorstores.ParseOptions(options...)

	req := &qdrant.SearchPoints{
		CollectionName: s.collectionName,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter:         buildQdrantFilter(opts.Filters, s.logger),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if opts.WithVectors {
		req.WithVectors = &qdrant.WithVectorsSelector{
			SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: true},
		}
	}
	if opts.ScoreThreshold > 0 {
		threshold := opts.ScoreThreshold
		req.ScoreThreshold = &threshold
	}

	start := time.Now()
	resp, err := s.points.Search(ctx, req)
	if err != nil {
		if stat, ok := status.FromError(err); ok && stat.Code() == codes.NotFound {
			s.logger.WarnContext(ctx, "Collection not found during search")
			return nil, fmt.Errorf("%w: %s", vectorstores.ErrCollectionNotFound, s.collectionName)
		}
		s.logger.ErrorContext(ctx, "Search failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("qdrant: search %s: %w", s.collectionName, err)
	}

	hits := make([]vectorstores.Hit, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		hits = append(hits, vectorstores.Hit{
			ID:      pointID(point.GetId()),
			Score:   point.GetScore(),
			Payload: payloadToMap(point.GetPayload()),
			Vector:  point.GetVectors().GetVector().GetData(),
		})
	}
	s.logger.DebugContext(ctx, "Search completed", "hits", len(hits), "limit", limit, "duration", time.Since(start))
	return hits, nil
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		if v := convertFromQdrantValue(value); v != nil {
			out[key] = v
		}
	}
	return out
}

func convertFromQdrantValue(value *qdrant.Value) any {
	switch v := value.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(v.ListValue.GetValues()))
		for i, val := range v.ListValue.GetValues() {
			list[i] = convertFromQdrantValue(val)
		}
		return list
	case *qdrant.Value_StructValue:
		return payloadToMap(v.StructValue.GetFields())
	default:
		return nil
	}
}

func buildQdrantFilter(filters map[string]any, logger *slog.Logger) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}

	conditions := make([]*qdrant.Condition, 0, len(filters))
	for key, value := range filters {
		var match *qdrant.Match
		switch v := value.(type) {
		case string:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}}
		case int:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}}
		case int64:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: v}}
		case bool:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v}}
		case []string:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: v}}}
		default:
			logger.Warn("Unsupported filter type for key", "key", key, "type", fmt.Sprintf("%T", v))
			continue
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{Key: key, Match: match},
			},
		})
	}
	if len(conditions) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: conditions}
}
