package index

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeES struct {
	mu          sync.Mutex
	indexExists bool
	created     bool
	bulkLines   []string
	bulkReply   string
	bulkStatus  int
}

func (f *fakeES) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/products":
			if f.indexExists {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case r.Method == http.MethodPut && r.URL.Path == "/products":
			f.created = true
			_, _ = w.Write([]byte(`{"acknowledged":true,"index":"products"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/_bulk":
			assert.Equal(t, "wait_for", r.URL.Query().Get("refresh"))
			scanner := bufio.NewScanner(r.Body)
			scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
			for scanner.Scan() {
				f.bulkLines = append(f.bulkLines, scanner.Text())
			}
			if f.bulkStatus != 0 {
				w.WriteHeader(f.bulkStatus)
			}
			_, _ = w.Write([]byte(f.bulkReply))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

func newTestIndex(t *testing.T, fake *fakeES) *ProductIndex {
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)

	idx := NewProductIndex(client, "products", logger.NewTestLogger(t))
	idx.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	return idx
}

func sampleProducts() []models.ScrapedProduct {
	return []models.ScrapedProduct{
		{
			PageURL:                   "https://www.amazon.eg/dp/B01",
			ProductTitle:              "De'Longhi Dedica",
			ProductPrice:              "EGP 9,999",
			ProductSpecs:              []models.ProductSpec{{Name: "Pressure", Value: "15 bar"}},
			AgentRecommendationRank:   5,
			AgentRecommendationReason: "Best value",
		},
		{
			PageURL:                   "https://www.jumia.com.eg/mienta",
			ProductTitle:              "Mienta Barista",
			ProductPrice:              "EGP 3,499",
			ProductSpecs:              []models.ProductSpec{{Name: "Capacity", Value: "1.5 L"}},
			AgentRecommendationRank:   3,
			AgentRecommendationReason: "Cheap",
		},
	}
}

// ==========================
// Tests
// ==========================

func TestProductIndex_EnsureIndex(t *testing.T) {
	fake := &fakeES{}
	idx := newTestIndex(t, fake)

	require.NoError(t, idx.EnsureIndex(context.Background()))
	assert.True(t, fake.created)

	fake.created = false
	fake.indexExists = true
	require.NoError(t, idx.EnsureIndex(context.Background()))
	assert.False(t, fake.created)
}

func TestProductIndex_IndexProducts(t *testing.T) {
	fake := &fakeES{bulkReply: `{"took":3,"errors":false,"items":[
		{"index":{"_id":"run-1-0","status":201}},
		{"index":{"_id":"run-1-1","status":201}}
	]}`}
	idx := newTestIndex(t, fake)

	n, err := idx.IndexProducts(context.Background(), "run-1", "coffee machine", sampleProducts())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, fake.bulkLines, 4)

	var meta map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(fake.bulkLines[0]), &meta))
	assert.Equal(t, "products", meta["index"]["_index"])
	assert.Equal(t, "run-1-0", meta["index"]["_id"])

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(fake.bulkLines[1]), &doc))
	assert.Equal(t, "run-1", doc["run_id"])
	assert.Equal(t, "coffee machine", doc["product_name"])
	assert.Equal(t, "De'Longhi Dedica", doc["product_title"])
	assert.EqualValues(t, 5, doc["agent_recommendation_rank"])
	assert.Equal(t, "2026-10-15T12:00:00Z", doc["indexed_at"])
	assert.NotContains(t, doc, "old_product_price")
}

func TestProductIndex_PartialFailure(t *testing.T) {
	fake := &fakeES{bulkReply: `{"errors":true,"items":[
		{"index":{"_id":"run-1-0","status":201}},
		{"index":{"_id":"run-1-1","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}
	]}`}
	idx := newTestIndex(t, fake)

	n, err := idx.IndexProducts(context.Background(), "run-1", "coffee machine", sampleProducts())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIndexWriteFailed))
	assert.True(t, strings.Contains(err.Error(), "mapper_parsing_exception"))
}

func TestProductIndex_BulkRejected(t *testing.T) {
	fake := &fakeES{bulkStatus: http.StatusForbidden, bulkReply: `{"error":"forbidden"}`}
	idx := newTestIndex(t, fake)

	_, err := idx.IndexProducts(context.Background(), "run-1", "coffee machine", sampleProducts())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIndexWriteFailed))
}

func TestProductIndex_NothingToIndex(t *testing.T) {
	fake := &fakeES{}
	idx := newTestIndex(t, fake)

	n, err := idx.IndexProducts(context.Background(), "run-1", "coffee machine", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, fake.bulkLines)
}
