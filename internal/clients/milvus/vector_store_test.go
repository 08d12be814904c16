package milvus

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/notewise/notewise-backend/internal/logger"
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("development")
	if err != nil {
		tb.Fatalf("logger init: %v", err)
	}
	return log
}

type fakeClient struct {
	hasCollection bool
	created       *CreateCollectionRequest
	searchHits    []SearchHit
	queryRows     []map[string]any
	queryPages    [][]map[string]any
	lastSearch    *SearchRequest
	lastDelete    *DeleteRequest
	lastQuery     *QueryRequest
	deleteCalls   []DeleteRequest
	insertCount   int64
}

func (f *fakeClient) HasCollection(ctx context.Context, name string) (bool, error) {
	return f.hasCollection, nil
}

func (f *fakeClient) CreateCollection(ctx context.Context, req CreateCollectionRequest) error {
	f.created = &req
	return nil
}

func (f *fakeClient) Insert(ctx context.Context, req InsertRequest) (*InsertResult, error) {
	f.insertCount += int64(len(req.Data))
	return &InsertResult{InsertCount: int64(len(req.Data))}, nil
}

func (f *fakeClient) Search(ctx context.Context, req SearchRequest) ([]SearchHit, error) {
	f.lastSearch = &req
	return f.searchHits, nil
}

func (f *fakeClient) Query(ctx context.Context, req QueryRequest) ([]map[string]any, error) {
	f.lastQuery = &req
	if len(f.queryPages) > 0 {
		page := f.queryPages[0]
		f.queryPages = f.queryPages[1:]
		return page, nil
	}
	return f.queryRows, nil
}

func (f *fakeClient) Delete(ctx context.Context, req DeleteRequest) error {
	f.lastDelete = &req
	f.deleteCalls = append(f.deleteCalls, req)
	return nil
}

func TestFilterExpr(t *testing.T) {
	cases := []struct {
		name string
		f    Filter
		want string
	}{
		{"user only", Filter{UserID: "u1"}, `metadata["user_id"] == "u1"`},
		{
			"user and kb",
			Filter{UserID: "u1", KBID: "k1"},
			`metadata["user_id"] == "u1" and metadata["kb_id"] == "k1"`,
		},
		{
			"user and doc",
			Filter{UserID: "u1", DocID: "d1"},
			`metadata["user_id"] == "u1" and metadata["doc_id"] == "d1"`,
		},
		{"empty", Filter{}, ""},
	}
	for _, tc := range cases {
		if got := tc.f.Expr(); got != tc.want {
			t.Fatalf("%s: want %q got %q", tc.name, tc.want, got)
		}
	}
}

func TestEnsureCollection_SkipsWhenPresent(t *testing.T) {
	fc := &fakeClient{hasCollection: true}
	vs, err := NewVectorStore(testLogger(t), fc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := vs.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.created != nil {
		t.Fatalf("existing collection must not be recreated")
	}
}

func TestEnsureCollection_CreatesSchemaAndIndex(t *testing.T) {
	fc := &fakeClient{}
	vs, _ := NewVectorStore(testLogger(t), fc)
	if err := vs.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.created == nil {
		t.Fatalf("expected create call")
	}
	if !fc.created.Schema.AutoID {
		t.Fatalf("expected autoID primary key")
	}
	var dim any
	for _, f := range fc.created.Schema.Fields {
		if f.FieldName == "embedding" {
			dim = f.ElementTypeParams["dim"]
		}
	}
	if dim != 768 {
		t.Fatalf("expected embedding dim 768, got %v", dim)
	}
	idx := fc.created.IndexParams[0]
	if idx.IndexType != "IVF_FLAT" || idx.MetricType != "L2" {
		t.Fatalf("unexpected index params: %+v", idx)
	}
	if idx.Params["nlist"] != 128 {
		t.Fatalf("expected nlist=128, got %v", idx.Params["nlist"])
	}
}

func TestSearch_ScoresAndSortsHits(t *testing.T) {
	fc := &fakeClient{searchHits: []SearchHit{
		{PK: 30, Content: "far", Distance: 3},
		{PK: 10, Content: "near", Distance: 1},
		{PK: 21, Content: "tie-b", Distance: 2},
		{PK: 20, Content: "tie-a", Distance: 2},
	}}
	vs, _ := NewVectorStore(testLogger(t), fc)

	hits, err := vs.Search(context.Background(), []float32{1, 0}, 4, Filter{UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []int64{10, 20, 21, 30}
	for i, want := range wantOrder {
		if hits[i].PK != want {
			t.Fatalf("position %d: want pk=%d got pk=%d", i, want, hits[i].PK)
		}
	}
	if hits[0].Score != 0.5 {
		t.Fatalf("expected score 1/(1+1)=0.5, got %f", hits[0].Score)
	}
	if hits[0].Score <= hits[3].Score {
		t.Fatalf("closer hits must score higher")
	}

	if fc.lastSearch.AnnsField != "embedding" {
		t.Fatalf("unexpected anns field %q", fc.lastSearch.AnnsField)
	}
	if !strings.Contains(fc.lastSearch.Filter, `metadata["user_id"] == "u1"`) {
		t.Fatalf("search must carry the ownership filter, got %q", fc.lastSearch.Filter)
	}
	params := fc.lastSearch.SearchParams["params"].(map[string]any)
	if params["nprobe"] != 10 {
		t.Fatalf("expected nprobe=10, got %v", params["nprobe"])
	}
}

func TestDelete_CountsMatchesFirst(t *testing.T) {
	fc := &fakeClient{queryRows: []map[string]any{{"pk": 1}, {"pk": 2}, {"pk": 3}}}
	vs, _ := NewVectorStore(testLogger(t), fc)

	n, err := vs.Delete(context.Background(), Filter{UserID: "u1", DocID: "d1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 removed, got %d", n)
	}
	if fc.lastQuery == nil || fc.lastDelete == nil {
		t.Fatalf("delete must query matches first")
	}
	if !strings.Contains(fc.lastQuery.Filter, `metadata["doc_id"] == "d1"`) {
		t.Fatalf("query must carry the caller's filter, got %q", fc.lastQuery.Filter)
	}
	if fc.lastDelete.Filter != "pk in [1, 2, 3]" {
		t.Fatalf("delete must target the counted pks, got %q", fc.lastDelete.Filter)
	}
}

func TestDelete_PagesLargeNamespaces(t *testing.T) {
	full := make([]map[string]any, deleteQueryLimit)
	for i := range full {
		full[i] = map[string]any{"pk": int64(i)}
	}
	fc := &fakeClient{queryPages: [][]map[string]any{
		full,
		{{"pk": int64(deleteQueryLimit)}, {"pk": int64(deleteQueryLimit + 1)}},
	}}
	vs, _ := NewVectorStore(testLogger(t), fc)

	n, err := vs.Delete(context.Background(), Filter{UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := int64(deleteQueryLimit + 2); n != want {
		t.Fatalf("expected %d removed, got %d", want, n)
	}
	if len(fc.deleteCalls) != 2 {
		t.Fatalf("expected one delete per page, got %d", len(fc.deleteCalls))
	}
	if !strings.HasSuffix(fc.deleteCalls[1].Filter, fmt.Sprintf("%d, %d]", deleteQueryLimit, deleteQueryLimit+1)) {
		t.Fatalf("second delete must target the tail page, got %q", fc.deleteCalls[1].Filter)
	}
}

func TestDelete_RequiresFilter(t *testing.T) {
	vs, _ := NewVectorStore(testLogger(t), &fakeClient{})
	if _, err := vs.Delete(context.Background(), Filter{}); err == nil {
		t.Fatalf("expected error for empty filter")
	}
}

func TestInsert_StampsCreatedAt(t *testing.T) {
	fc := &fakeClient{}
	vs, _ := NewVectorStore(testLogger(t), fc)

	n, err := vs.Insert(context.Background(), []Record{
		{Embedding: []float32{1}, Content: "c", Source: "s", Metadata: Metadata{UserID: "u1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 inserted, got %d", n)
	}
}
