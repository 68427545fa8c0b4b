// Package qdrant stores embeddings in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"strings"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/efebarandurmaz/llmfactory/internal/vector"
)

const (
	contentKey   = "content"
	createdAtKey = "created_at"

	// metaPrefix keeps document metadata apart from the reserved keys.
	metaPrefix = "meta."
)

// Repository implements vector.Repository using Qdrant.
type Repository struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New dials Qdrant's gRPC port. The connection is established lazily.
func New(host string, port int, collection string) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Repository{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

func (r *Repository) Backend() string { return "qdrant" }

// EnsureCollection creates the collection with cosine distance if it does
// not exist yet.
func (r *Repository) EnsureCollection(ctx context.Context, dimensions int) error {
	exists, err := r.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: r.collection})
	if err != nil {
		return fmt.Errorf("qdrant collection exists: %w", err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}

	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(dimensions),
			Distance: pb.Distance_Cosine,
		}}},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %s: %w", r.collection, err)
	}
	return nil
}

// Ping checks that Qdrant answers on the collections service.
func (r *Repository) Ping(ctx context.Context) error {
	if _, err := r.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: r.collection}); err != nil {
		return fmt.Errorf("qdrant ping: %w", err)
	}
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func (r *Repository) Upsert(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		payload := map[string]*pb.Value{contentKey: stringValue(d.Content)}
		if !d.CreatedAt.IsZero() {
			payload[createdAtKey] = stringValue(d.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"))
		}
		for k, v := range d.Metadata {
			payload[metaPrefix+k] = stringValue(v)
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: d.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: toFloat32(d.Vector)}}},
			Payload: payload,
		}
	}

	wait := true
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         points,
	})
	return err
}

func (r *Repository) Search(ctx context.Context, vec []float64, topK int) ([]vector.SearchResult, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         toFloat32(vec),
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, err
	}

	results := make([]vector.SearchResult, len(resp.GetResult()))
	for i, pt := range resp.GetResult() {
		content := ""
		meta := make(map[string]string)
		for k, v := range pt.GetPayload() {
			switch {
			case k == contentKey:
				content = v.GetStringValue()
			case strings.HasPrefix(k, metaPrefix):
				meta[strings.TrimPrefix(k, metaPrefix)] = v.GetStringValue()
			}
		}
		results[i] = vector.SearchResult{
			ID:       pt.GetId().GetUuid(),
			Score:    float64(pt.GetScore()),
			Content:  content,
			Metadata: meta,
		}
	}
	return results, nil
}

func (r *Repository) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

var _ vector.Repository = (*Repository)(nil)
