package milvus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/notewise/notewise-backend/internal/logger"
)

// Client wraps the Milvus RESTful v2 vector database API.
type Client interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req CreateCollectionRequest) error
	Insert(ctx context.Context, req InsertRequest) (*InsertResult, error)
	Search(ctx context.Context, req SearchRequest) ([]SearchHit, error)
	Query(ctx context.Context, req QueryRequest) ([]map[string]any, error)
	Delete(ctx context.Context, req DeleteRequest) error
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "http://localhost:19530"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &client{
		log:  log.With("client", "MilvusClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// -------------------- Collections --------------------

type FieldSchema struct {
	FieldName         string         `json:"fieldName"`
	DataType          string         `json:"dataType"`
	IsPrimary         bool           `json:"isPrimary,omitempty"`
	ElementTypeParams map[string]any `json:"elementTypeParams,omitempty"`
}

type IndexParam struct {
	FieldName  string         `json:"fieldName"`
	IndexName  string         `json:"indexName,omitempty"`
	MetricType string         `json:"metricType"`
	IndexType  string         `json:"indexType,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
}

type CreateCollectionRequest struct {
	CollectionName string `json:"collectionName"`
	Schema         struct {
		AutoID bool          `json:"autoID"`
		Fields []FieldSchema `json:"fields"`
	} `json:"schema"`
	IndexParams []IndexParam `json:"indexParams,omitempty"`
}

type hasCollectionResponse struct {
	Has bool `json:"has"`
}

func (c *client) HasCollection(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("collection name required")
	}
	out, err := doJSON[hasCollectionResponse](c, ctx, "/v2/vectordb/collections/has", map[string]any{
		"collectionName": name,
	})
	if err != nil {
		return false, err
	}
	return out.Has, nil
}

func (c *client) CreateCollection(ctx context.Context, req CreateCollectionRequest) error {
	if strings.TrimSpace(req.CollectionName) == "" {
		return fmt.Errorf("collection name required")
	}
	_, err := doJSON[struct{}](c, ctx, "/v2/vectordb/collections/create", req)
	return err
}

// -------------------- Entities --------------------

type InsertRequest struct {
	CollectionName string           `json:"collectionName"`
	Data           []map[string]any `json:"data"`
}

type InsertResult struct {
	InsertCount int64 `json:"insertCount"`
	InsertIDs   []any `json:"insertIds"`
}

func (c *client) Insert(ctx context.Context, req InsertRequest) (*InsertResult, error) {
	if strings.TrimSpace(req.CollectionName) == "" {
		return nil, fmt.Errorf("collection name required")
	}
	if len(req.Data) == 0 {
		return &InsertResult{}, nil
	}
	return doJSON[InsertResult](c, ctx, "/v2/vectordb/entities/insert", req)
}

type SearchRequest struct {
	CollectionName string         `json:"collectionName"`
	Data           [][]float32    `json:"data"`
	AnnsField      string         `json:"annsField"`
	Filter         string         `json:"filter,omitempty"`
	Limit          int            `json:"limit"`
	OutputFields   []string       `json:"outputFields,omitempty"`
	SearchParams   map[string]any `json:"searchParams,omitempty"`
}

type SearchHit struct {
	PK       int64          `json:"pk"`
	Distance float64        `json:"distance"`
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata"`
}

func (c *client) Search(ctx context.Context, req SearchRequest) ([]SearchHit, error) {
	if strings.TrimSpace(req.CollectionName) == "" {
		return nil, fmt.Errorf("collection name required")
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	out, err := doJSON[[]SearchHit](c, ctx, "/v2/vectordb/entities/search", req)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

type QueryRequest struct {
	CollectionName string   `json:"collectionName"`
	Filter         string   `json:"filter"`
	OutputFields   []string `json:"outputFields,omitempty"`
	Limit          int      `json:"limit,omitempty"`
}

func (c *client) Query(ctx context.Context, req QueryRequest) ([]map[string]any, error) {
	if strings.TrimSpace(req.CollectionName) == "" {
		return nil, fmt.Errorf("collection name required")
	}
	if strings.TrimSpace(req.Filter) == "" {
		return nil, fmt.Errorf("filter required")
	}
	out, err := doJSON[[]map[string]any](c, ctx, "/v2/vectordb/entities/query", req)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

type DeleteRequest struct {
	CollectionName string `json:"collectionName"`
	Filter         string `json:"filter"`
}

func (c *client) Delete(ctx context.Context, req DeleteRequest) error {
	if strings.TrimSpace(req.CollectionName) == "" {
		return fmt.Errorf("collection name required")
	}
	if strings.TrimSpace(req.Filter) == "" {
		return fmt.Errorf("filter required")
	}
	_, err := doJSON[struct{}](c, ctx, "/v2/vectordb/entities/delete", req)
	return err
}

// -------------------- helpers --------------------

type restEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON[T any](c *client, ctx context.Context, path string, body any) (*T, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(defaultCtx(ctx), "POST", c.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.cfg.Token) != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("milvus http %d: %s", resp.StatusCode, string(raw))
	}

	var env restEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("milvus decode error: %w; raw=%s", err, string(raw))
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("milvus api error %d: %s", env.Code, env.Message)
	}

	var out T
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &out); err != nil {
			return nil, fmt.Errorf("milvus decode error: %w; data=%s", err, string(env.Data))
		}
	}
	return &out, nil
}

func defaultCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
