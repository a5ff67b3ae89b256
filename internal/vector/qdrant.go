package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection settings for the qdrant gRPC client.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantStore implements Store on a qdrant cluster. Points are keyed by the
// relational primary key (numeric point ids), so delete and upsert need no
// id mapping.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore connects to qdrant
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// EnsureCollection creates the collection when it does not exist
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, dim uint64) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// Lost a create race; the collection is there either way.
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("create collection %s: %w", collection, err)
	}

	return nil
}

// Upsert writes one embedding keyed by the relational primary key
func (s *QdrantStore) Upsert(ctx context.Context, collection string, dbPK int64, vec []float32, payload Payload) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(uint64(dbPK)),
		Vectors: qdrant.NewVectors(vec...),
		Payload: map[string]*qdrant.Value{
			"dbPk":      {Kind: &qdrant.Value_IntegerValue{IntegerValue: payload.DBPK}},
			"profileId": {Kind: &qdrant.Value_IntegerValue{IntegerValue: payload.ProfileID}},
			"entryType": {Kind: &qdrant.Value_StringValue{StringValue: payload.EntryType}},
		},
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upsert point %d into %s: %w", dbPK, collection, err)
	}

	return nil
}

// Search returns up to k hits scoped to a profile, score descending
func (s *QdrantStore) Search(ctx context.Context, collection string, vec []float32, k uint64, profileID int64) ([]Hit, error) {
	request := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vec,
		Limit:          k,
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				{
					ConditionOneOf: &qdrant.Condition_Field{
						Field: &qdrant.FieldCondition{
							Key: "profileId",
							Match: &qdrant.Match{
								MatchValue: &qdrant.Match_Integer{Integer: profileID},
							},
						},
					},
				},
			},
		},
	}

	response, err := s.client.GetPointsClient().Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}

	hits := make([]Hit, 0, len(response.Result))
	for _, point := range response.Result {
		hits = append(hits, Hit{DBPK: pointDBPK(point), Score: point.Score})
	}

	return hits, nil
}

// Delete removes the point keyed by the relational primary key
func (s *QdrantStore) Delete(ctx context.Context, collection string, dbPK int64) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{
						{PointIdOptions: &qdrant.PointId_Num{Num: uint64(dbPK)}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete point %d from %s: %w", dbPK, collection, err)
	}

	return nil
}

// Close releases the client connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointDBPK extracts the relational key, preferring the payload and falling
// back to the numeric point id.
func pointDBPK(point *qdrant.ScoredPoint) int64 {
	if point.Payload != nil {
		if value, ok := point.Payload["dbPk"]; ok {
			if intValue, ok := value.Kind.(*qdrant.Value_IntegerValue); ok {
				return intValue.IntegerValue
			}
		}
	}
	if point.Id != nil {
		if num, ok := point.Id.PointIdOptions.(*qdrant.PointId_Num); ok {
			return int64(num.Num)
		}
	}
	return 0
}
