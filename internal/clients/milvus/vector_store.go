package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/notewise/notewise-backend/internal/logger"
)

// Metadata is stored as a JSON field on every chunk and drives ownership
// filtering. user_id is always present; the remaining keys describe the
// chunk's origin.
type Metadata struct {
	UserID     string `json:"user_id"`
	KBID       string `json:"kb_id"`
	DocID      string `json:"doc_id"`
	DocType    string `json:"doc_type"`
	DocName    string `json:"doc_name"`
	ChunkIndex int    `json:"chunk_index"`
}

type Record struct {
	Embedding []float32
	Content   string
	Source    string
	Metadata  Metadata
}

type Hit struct {
	PK       int64
	Content  string
	Source   string
	Metadata map[string]any
	Distance float64
	Score    float64
}

// Filter selects chunks by metadata equality. Empty fields are skipped; at
// least one must be set for delete operations.
type Filter struct {
	UserID string
	KBID   string
	DocID  string
}

func (f Filter) Expr() string {
	parts := make([]string, 0, 3)
	if strings.TrimSpace(f.UserID) != "" {
		parts = append(parts, fmt.Sprintf(`metadata["user_id"] == %q`, f.UserID))
	}
	if strings.TrimSpace(f.KBID) != "" {
		parts = append(parts, fmt.Sprintf(`metadata["kb_id"] == %q`, f.KBID))
	}
	if strings.TrimSpace(f.DocID) != "" {
		parts = append(parts, fmt.Sprintf(`metadata["doc_id"] == %q`, f.DocID))
	}
	return strings.Join(parts, " and ")
}

type VectorStore interface {
	// EnsureCollection creates the chunk collection and its IVF_FLAT index
	// when missing. Safe to call on every boot.
	EnsureCollection(ctx context.Context, dim int) error
	Insert(ctx context.Context, records []Record) (int64, error)
	Search(ctx context.Context, vector []float32, topK int, f Filter) ([]Hit, error)
	// Delete removes all chunks matching the filter and returns how many
	// rows matched beforehand.
	Delete(ctx context.Context, f Filter) (int64, error)
}

type vectorStore struct {
	log        *logger.Logger
	mc         Client
	collection string
	nprobe     int
}

func NewVectorStore(log *logger.Logger, mc Client) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if mc == nil {
		return nil, fmt.Errorf("milvus client required")
	}
	collection := strings.TrimSpace(os.Getenv("MILVUS_COLLECTION"))
	if collection == "" {
		collection = "kb_documents"
	}
	return &vectorStore{
		log:        log.With("service", "MilvusVectorStore"),
		mc:         mc,
		collection: collection,
		nprobe:     10,
	}, nil
}

func (s *vectorStore) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("embedding dimension required")
	}
	has, err := s.mc.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("milvus has_collection: %w", err)
	}
	if has {
		return nil
	}

	req := CreateCollectionRequest{CollectionName: s.collection}
	req.Schema.AutoID = true
	req.Schema.Fields = []FieldSchema{
		{FieldName: "pk", DataType: "Int64", IsPrimary: true},
		{FieldName: "embedding", DataType: "FloatVector", ElementTypeParams: map[string]any{"dim": dim}},
		{FieldName: "content", DataType: "VarChar", ElementTypeParams: map[string]any{"max_length": 65535}},
		{FieldName: "source", DataType: "VarChar", ElementTypeParams: map[string]any{"max_length": 512}},
		{FieldName: "metadata", DataType: "JSON"},
		{FieldName: "created_at", DataType: "Int64"},
	}
	req.IndexParams = []IndexParam{
		{
			FieldName:  "embedding",
			IndexName:  "embedding_idx",
			MetricType: "L2",
			IndexType:  "IVF_FLAT",
			Params:     map[string]any{"nlist": 128},
		},
	}

	if err := s.mc.CreateCollection(ctx, req); err != nil {
		return fmt.Errorf("milvus create_collection: %w", err)
	}
	s.log.Info("Created vector collection", "collection", s.collection, "dim", dim)
	return nil
}

func (s *vectorStore) Insert(ctx context.Context, records []Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	now := time.Now().UnixMilli()
	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]any{
			"embedding":  r.Embedding,
			"content":    r.Content,
			"source":     r.Source,
			"metadata":   r.Metadata,
			"created_at": now,
		})
	}
	res, err := s.mc.Insert(ctx, InsertRequest{
		CollectionName: s.collection,
		Data:           rows,
	})
	if err != nil {
		return 0, fmt.Errorf("milvus insert: %w", err)
	}
	return res.InsertCount, nil
}

func (s *vectorStore) Search(ctx context.Context, vector []float32, topK int, f Filter) ([]Hit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if topK <= 0 {
		topK = 5
	}
	raw, err := s.mc.Search(ctx, SearchRequest{
		CollectionName: s.collection,
		Data:           [][]float32{vector},
		AnnsField:      "embedding",
		Filter:         f.Expr(),
		Limit:          topK,
		OutputFields:   []string{"content", "source", "metadata"},
		SearchParams:   map[string]any{"params": map[string]any{"nprobe": s.nprobe}},
	})
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		hits = append(hits, Hit{
			PK:       h.PK,
			Content:  h.Content,
			Source:   h.Source,
			Metadata: h.Metadata,
			Distance: h.Distance,
			Score:    1.0 / (1.0 + h.Distance),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].PK < hits[j].PK
	})
	return hits, nil
}

const deleteQueryLimit = 16384

func (s *vectorStore) Delete(ctx context.Context, f Filter) (int64, error) {
	expr := f.Expr()
	if expr == "" {
		return 0, fmt.Errorf("delete filter required")
	}

	// The delete endpoint does not report a count, so matching pks are
	// counted first. The query endpoint caps a single page, so larger
	// namespaces are drained page by page, each delete removing exactly
	// the pks its page returned.
	var deleted int64
	for {
		rows, err := s.mc.Query(ctx, QueryRequest{
			CollectionName: s.collection,
			Filter:         expr,
			OutputFields:   []string{"pk"},
			Limit:          deleteQueryLimit,
		})
		if err != nil {
			return deleted, fmt.Errorf("milvus query: %w", err)
		}
		if len(rows) == 0 {
			return deleted, nil
		}
		pks := make([]string, 0, len(rows))
		for _, row := range rows {
			pks = append(pks, pkLiteral(row["pk"]))
		}
		if err := s.mc.Delete(ctx, DeleteRequest{
			CollectionName: s.collection,
			Filter:         fmt.Sprintf("pk in [%s]", strings.Join(pks, ", ")),
		}); err != nil {
			return deleted, fmt.Errorf("milvus delete: %w", err)
		}
		deleted += int64(len(rows))
		if len(rows) < deleteQueryLimit {
			return deleted, nil
		}
	}
}

func pkLiteral(v any) string {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
