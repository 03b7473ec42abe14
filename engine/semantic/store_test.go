package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/WessleyAI/docsearch/engine/domain"
)

// --- Mocks ---

type mockPoints struct {
	upserts     []*pb.UpsertPoints
	upsertErr   error
	searchReq   *pb.SearchPoints
	searchResp  *pb.SearchResponse
	searchErr   error
	fieldIdx    []*pb.CreateFieldIndexCollection
	fieldIdxErr error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upserts = append(m.upserts, in)
	return &pb.PointsOperationResponse{}, m.upsertErr
}

func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searchReq = in
	return m.searchResp, m.searchErr
}

func (m *mockPoints) CreateFieldIndex(_ context.Context, in *pb.CreateFieldIndexCollection, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.fieldIdx = append(m.fieldIdx, in)
	return &pb.PointsOperationResponse{}, m.fieldIdxErr
}

type mockCollections struct {
	existing  []string
	listErr   error
	created   *pb.CreateCollection
	createErr error
	deleted   []string
	deleteErr error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	resp := &pb.ListCollectionsResponse{}
	for _, n := range m.existing {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: n})
	}
	return resp, nil
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = in
	return &pb.CollectionOperationResponse{Result: m.createErr == nil}, m.createErr
}

func (m *mockCollections) Delete(_ context.Context, in *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.deleted = append(m.deleted, in.GetCollectionName())
	return &pb.CollectionOperationResponse{Result: m.deleteErr == nil}, m.deleteErr
}

// --- Tests ---

func TestNewWithClients(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "docs")
	if vs.Name() != "docs" {
		t.Fatalf("name = %q", vs.Name())
	}
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDeleteCollection_Absent(t *testing.T) {
	cols := &mockCollections{existing: []string{"other"}}
	vs := NewWithClients(&mockPoints{}, cols, "docs")
	if err := vs.DeleteCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cols.deleted) != 0 {
		t.Fatal("should not delete an absent collection")
	}
}

func TestDeleteCollection_Present(t *testing.T) {
	cols := &mockCollections{existing: []string{"docs"}}
	vs := NewWithClients(&mockPoints{}, cols, "docs")
	if err := vs.DeleteCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != "docs" {
		t.Fatalf("deleted = %v", cols.deleted)
	}
}

func TestDeleteCollection_Errors(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{listErr: errors.New("rpc")}, "docs")
	if err := vs.DeleteCollection(context.Background()); err == nil {
		t.Fatal("expected list error")
	}
	vs = NewWithClients(&mockPoints{}, &mockCollections{existing: []string{"docs"}, deleteErr: errors.New("rpc")}, "docs")
	if err := vs.DeleteCollection(context.Background()); err == nil {
		t.Fatal("expected delete error")
	}
}

func TestCreateCollection(t *testing.T) {
	pts := &mockPoints{}
	cols := &mockCollections{}
	vs := NewWithClients(pts, cols, "docs")
	if err := vs.CreateCollection(context.Background(), DefaultSchema(1536)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params := cols.created.GetVectorsConfig().GetParamsMap().GetMap()[domain.FieldEmbedding]
	if params == nil {
		t.Fatal("expected named embedding vector")
	}
	if params.GetSize() != 1536 || params.GetDistance() != pb.Distance_Cosine {
		t.Fatalf("unexpected params %v", params)
	}
	if params.GetHnswConfig().GetM() != 16 {
		t.Fatalf("unexpected hnsw %v", params.GetHnswConfig())
	}

	types := map[string]pb.FieldType{}
	for _, f := range pts.fieldIdx {
		types[f.GetFieldName()] = f.GetFieldType()
	}
	if types[domain.FieldContent] != pb.FieldType_FieldTypeText {
		t.Errorf("content should be full-text indexed, got %v", types[domain.FieldContent])
	}
	if types[domain.FieldSourceFile] != pb.FieldType_FieldTypeKeyword {
		t.Errorf("source_file should be keyword indexed, got %v", types[domain.FieldSourceFile])
	}
}

func TestCreateCollection_Errors(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "docs")
	if err := vs.CreateCollection(context.Background(), DefaultSchema(0)); err == nil {
		t.Fatal("expected error for zero dimensions")
	}
	vs = NewWithClients(&mockPoints{}, &mockCollections{createErr: errors.New("exists")}, "docs")
	if err := vs.CreateCollection(context.Background(), DefaultSchema(4)); err == nil {
		t.Fatal("expected create error")
	}
	vs = NewWithClients(&mockPoints{fieldIdxErr: errors.New("bad")}, &mockCollections{}, "docs")
	if err := vs.CreateCollection(context.Background(), DefaultSchema(4)); err == nil {
		t.Fatal("expected field index error")
	}
}

func TestUpsert_Empty(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "docs")
	if err := vs.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts.upserts) != 0 {
		t.Fatal("empty upsert should not call qdrant")
	}
}

func TestUpsert_Success(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "docs")

	docs := []domain.IndexedDocument{
		{ID: "report_q3_pdf-1a2b3c4d_0", Content: "first", SourceFile: "report/q3.pdf", Embedding: []float32{1, 0}},
		{ID: "report_q3_pdf-1a2b3c4d_1", Content: "second", SourceFile: "report/q3.pdf", Embedding: []float32{0, 1}},
	}
	if err := vs.Upsert(context.Background(), docs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := pts.upserts[0]
	if !req.GetWait() || len(req.GetPoints()) != 2 {
		t.Fatalf("unexpected request %v", req)
	}
	p := req.GetPoints()[1]
	if p.GetId().GetUuid() != PointID(docs[1].ID) {
		t.Fatal("point id not derived from document id")
	}
	if p.GetPayload()[domain.FieldContent].GetStringValue() != "second" ||
		p.GetPayload()[domain.FieldSourceFile].GetStringValue() != "report/q3.pdf" ||
		p.GetPayload()[domain.FieldID].GetStringValue() != docs[1].ID {
		t.Fatalf("unexpected payload %v", p.GetPayload())
	}
	vec := p.GetVectors().GetVectors().GetVectors()[domain.FieldEmbedding]
	if len(vec.GetData()) != 2 || vec.GetData()[1] != 1 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestUpsert_Error(t *testing.T) {
	vs := NewWithClients(&mockPoints{upsertErr: errors.New("fail")}, &mockCollections{}, "docs")
	docs := []domain.IndexedDocument{{ID: "a_0", Embedding: []float32{1}}}
	if err := vs.Upsert(context.Background(), docs); err == nil {
		t.Fatal("expected error")
	}
}

func TestPointIDDeterministic(t *testing.T) {
	if PointID("a_0") != PointID("a_0") {
		t.Fatal("point id not deterministic")
	}
	if PointID("a_0") == PointID("a_1") {
		t.Fatal("different keys share a point id")
	}
}

func TestSearch(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
					Score: 0.95,
					Payload: map[string]*pb.Value{
						domain.FieldContent:    stringValue("warranty terms"),
						domain.FieldSourceFile: stringValue("contracts/a.pdf"),
					},
				},
				{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p2"}}, Score: 0.5},
			},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "docs")
	fields := []string{domain.FieldID, domain.FieldContent, domain.FieldSourceFile}
	hits, err := vs.Search(context.Background(), []float32{1, 0}, 3, fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 || hits[0].Score != 0.95 || hits[0].Fields[domain.FieldContent] != "warranty terms" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	req := pts.searchReq
	if req.GetLimit() != 3 || req.GetVectorName() != domain.FieldEmbedding {
		t.Fatalf("unexpected request %v", req)
	}
	if got := req.GetWithPayload().GetInclude().GetFields(); len(got) != 3 {
		t.Fatalf("unexpected payload selector %v", got)
	}
}

func TestSearch_TruncatesToK(t *testing.T) {
	resp := &pb.SearchResponse{}
	for i := 0; i < 5; i++ {
		resp.Result = append(resp.Result, &pb.ScoredPoint{Score: float32(5 - i)})
	}
	vs := NewWithClients(&mockPoints{searchResp: resp}, &mockCollections{}, "docs")
	hits, err := vs.Search(context.Background(), []float32{1}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
}

func TestSearch_ZeroK(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "docs")
	hits, err := vs.Search(context.Background(), []float32{1}, 0, nil)
	if err != nil || len(hits) != 0 {
		t.Fatalf("got %v, %v", hits, err)
	}
	if pts.searchReq != nil {
		t.Fatal("k=0 should not reach qdrant")
	}
}

func TestSearch_Error(t *testing.T) {
	vs := NewWithClients(&mockPoints{searchErr: errors.New("unavailable")}, &mockCollections{}, "docs")
	if _, err := vs.Search(context.Background(), []float32{1}, 3, nil); err == nil {
		t.Fatal("expected error")
	}
}
