// Package qdrant provides a VectorIndex implementation using Qdrant.
package qdrant

import (
	"context"
	"fmt"
	"sort"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rememo/rememo/internal/domain/entities"
	"github.com/rememo/rememo/internal/domain/ports"
	"github.com/rememo/rememo/internal/infrastructure/config"
)

// Repository implements the VectorIndex interface using Qdrant.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	dimension  int
	conn       *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig, dimension int) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
		dimension:  dimension,
		conn:       conn,
	}, nil
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureIndex creates the collection if it doesn't exist.
func (r *Repository) EnsureIndex(ctx context.Context, dimension int) error {
	if dimension != r.dimension {
		return fmt.Errorf("%w: repository configured for %d dimensions, asked for %d",
			entities.ErrDimensionMismatch, r.dimension, dimension)
	}

	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// DropIndex deletes the collection.
func (r *Repository) DropIndex(ctx context.Context) error {
	_, err := r.client.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Insert stores a fact with its embedding.
func (r *Repository) Insert(ctx context.Context, fact entities.Fact) error {
	return r.InsertBatch(ctx, []entities.Fact{fact})
}

// InsertBatch stores multiple facts. The payload carries the full fact so
// search results need no second lookup.
func (r *Repository) InsertBatch(ctx context.Context, facts []entities.Fact) error {
	points := make([]*pb.PointStruct, 0, len(facts))

	for _, fact := range facts {
		if len(fact.Embedding) != r.dimension {
			return fmt.Errorf("%w: fact %s has %d dimensions, collection expects %d",
				entities.ErrDimensionMismatch, fact.ID, len(fact.Embedding), r.dimension)
		}

		point := &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{
					Uuid: fact.ID,
				},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{
						Data: fact.Embedding,
					},
				},
			},
			Payload: map[string]*pb.Value{
				"entry_id":   {Kind: &pb.Value_IntegerValue{IntegerValue: fact.EntryID}},
				"text":       {Kind: &pb.Value_StringValue{StringValue: fact.Text}},
				"topic":      {Kind: &pb.Value_StringValue{StringValue: fact.Topic}},
				"type":       {Kind: &pb.Value_StringValue{StringValue: string(fact.Type)}},
				"snippet":    {Kind: &pb.Value_StringValue{StringValue: fact.Snippet}},
				"created_at": {Kind: &pb.Value_StringValue{StringValue: fact.CreatedAt.Format(time.RFC3339Nano)}},
			},
		}
		points = append(points, point)
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

// Search performs a semantic search and returns facts scoring at or above
// threshold, most similar first; equal scores order by more recent
// created_at.
func (r *Repository) Search(ctx context.Context, vector []float32, k int, threshold float64) ([]ports.Match, error) {
	if len(vector) != r.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection expects %d",
			entities.ErrDimensionMismatch, len(vector), r.dimension)
	}

	scoreThreshold := float32(threshold)
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(k),
		ScoreThreshold: &scoreThreshold,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	matches := make([]ports.Match, 0, len(resp.Result))
	for _, point := range resp.Result {
		fact := payloadToFact(point.Id, point.Payload, point.Vectors)
		matches = append(matches, ports.Match{Fact: fact, Score: float64(point.Score)})
	}

	// Qdrant orders by score only; equal scores need the recency tie-break.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Fact.CreatedAt.After(matches[j].Fact.CreatedAt)
	})
	return matches, nil
}

// Delete removes a fact by its ID.
func (r *Repository) Delete(ctx context.Context, factID string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: factID}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting point: %w", err)
	}

	return nil
}

// DeleteByEntry removes all facts of an entry.
func (r *Repository) DeleteByEntry(ctx context.Context, entryID int64) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						{
							ConditionOneOf: &pb.Condition_Field{
								Field: &pb.FieldCondition{
									Key: "entry_id",
									Match: &pb.Match{
										MatchValue: &pb.Match_Integer{
											Integer: entryID,
										},
									},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting points by entry: %w", err)
	}

	return nil
}

// Count returns the total number of facts.
func (r *Repository) Count(ctx context.Context) (uint64, error) {
	resp, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("getting collection info: %w", err)
	}

	if resp.Result.PointsCount == nil {
		return 0, nil
	}

	return *resp.Result.PointsCount, nil
}

// payloadToFact converts a Qdrant point payload back into a Fact.
func payloadToFact(id *pb.PointId, payload map[string]*pb.Value, vectors *pb.VectorsOutput) entities.Fact {
	var embedding []float32
	if vec := vectors.GetVector(); vec != nil {
		embedding = vec.Data
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, getStringValue(payload, "created_at"))

	return entities.Fact{
		ID:        id.GetUuid(),
		EntryID:   getIntValue(payload, "entry_id"),
		Text:      getStringValue(payload, "text"),
		Topic:     getStringValue(payload, "topic"),
		Type:      entities.FactType(getStringValue(payload, "type")),
		Snippet:   getStringValue(payload, "snippet"),
		Embedding: embedding,
		CreatedAt: createdAt,
	}
}

func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getIntValue(payload map[string]*pb.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}
