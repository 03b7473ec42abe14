package semantic

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/WessleyAI/docsearch/engine/domain"
)

// pointsAPI is the subset of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	CreateFieldIndex(ctx context.Context, in *pb.CreateFieldIndexCollection, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Options configures the gRPC connection.
type Options struct {
	APIKey string
	TLS    bool
}

// VectorStore is the sole owner of all Qdrant operations for one collection.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	vectorName  string
}

// New connects to Qdrant's gRPC endpoint at addr.
func New(addr, collection string, opts Options) (*VectorStore, error) {
	creds := insecure.NewCredentials()
	if opts.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if opts.APIKey != "" {
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(apiKeyInterceptor(opts.APIKey)))
	}
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		vectorName:  domain.FieldEmbedding,
	}, nil
}

// NewWithClients builds a store over pre-built clients, for tests.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{
		points:      points,
		collections: collections,
		collection:  collection,
		vectorName:  domain.FieldEmbedding,
	}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Name returns the collection name.
func (v *VectorStore) Name() string { return v.collection }

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// Exists reports whether the collection exists.
func (v *VectorStore) Exists(ctx context.Context) (bool, error) {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return true, nil
		}
	}
	return false, nil
}

// DeleteCollection drops the collection. A missing collection is not an error.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	ok, err := v.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: v.collection}); err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// CreateCollection creates the collection with a named cosine vector and
// the schema's payload indexes.
func (v *VectorStore) CreateCollection(ctx context.Context, s Schema) error {
	if s.Dimensions <= 0 {
		return fmt.Errorf("semantic: create collection %s: dimensions must be positive", v.collection)
	}
	if s.VectorField != "" {
		v.vectorName = s.VectorField
	}
	params := &pb.VectorParams{
		Size:     uint64(s.Dimensions),
		Distance: pb.Distance_Cosine,
	}
	if s.Profile.M > 0 || s.Profile.EfConstruct > 0 {
		m, ef := s.Profile.M, s.Profile.EfConstruct
		params.HnswConfig = &pb.HnswConfigDiff{M: &m, EfConstruct: &ef}
	}
	_, err := v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_ParamsMap{
				ParamsMap: &pb.VectorParamsMap{
					Map: map[string]*pb.VectorParams{v.vectorName: params},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}

	for _, f := range s.Searchable {
		if err := v.createFieldIndex(ctx, f, pb.FieldType_FieldTypeText); err != nil {
			return err
		}
	}
	for _, f := range s.Filterable {
		if err := v.createFieldIndex(ctx, f, pb.FieldType_FieldTypeKeyword); err != nil {
			return err
		}
	}
	return nil
}

func (v *VectorStore) createFieldIndex(ctx context.Context, field string, typ pb.FieldType) error {
	wait := true
	_, err := v.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: v.collection,
		Wait:           &wait,
		FieldName:      field,
		FieldType:      &typ,
	})
	if err != nil {
		return fmt.Errorf("semantic: index field %s on %s: %w", field, v.collection, err)
	}
	return nil
}

// PointID maps a document key to the UUID Qdrant stores it under. The same
// key always maps to the same point, so upserting it again overwrites.
func PointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

// Upsert writes docs in order as one batch and waits for the write to apply.
func (v *VectorStore) Upsert(ctx context.Context, docs []domain.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(d.ID)}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vectors{
					Vectors: &pb.NamedVectors{
						Vectors: map[string]*pb.Vector{v.vectorName: {Data: d.Embedding}},
					},
				},
			},
			Payload: map[string]*pb.Value{
				domain.FieldID:         stringValue(d.ID),
				domain.FieldContent:    stringValue(d.Content),
				domain.FieldSourceFile: stringValue(d.SourceFile),
			},
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(docs), err)
	}
	return nil
}

// Search runs a pure vector k-NN query and returns at most k hits in the
// order Qdrant ranked them, each carrying only the requested payload fields.
func (v *VectorStore) Search(ctx context.Context, vector []float32, k int, fields []string) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	vectorName := v.vectorName
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         vector,
		VectorName:     &vectorName,
		Limit:          uint64(k),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Include{
				Include: &pb.PayloadIncludeSelector{Fields: fields},
			},
		},
	}
	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search %s: %w", v.collection, err)
	}

	points := resp.GetResult()
	if len(points) > k {
		points = points[:k]
	}
	hits := make([]Hit, len(points))
	for i, p := range points {
		h := Hit{
			PointID: p.GetId().GetUuid(),
			Score:   p.GetScore(),
			Fields:  make(map[string]string, len(p.GetPayload())),
		}
		for key, val := range p.GetPayload() {
			h.Fields[key] = val.GetStringValue()
		}
		hits[i] = h
	}
	return hits, nil
}
