// Package index writes scraped products to Elasticsearch so prices can be
// compared across runs.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/models"
)

const productMapping = `{
	"mappings": {
		"properties": {
			"run_id":                      {"type": "keyword"},
			"product_name":                {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"page_url":                    {"type": "keyword"},
			"product_title":               {"type": "text"},
			"product_price":               {"type": "keyword"},
			"old_product_price":           {"type": "keyword"},
			"product_discount":            {"type": "keyword"},
			"product_image_url":           {"type": "keyword", "index": false},
			"product_specs":               {"type": "nested"},
			"agent_recommendation_rank":   {"type": "integer"},
			"agent_recommendation_reason": {"type": "text"},
			"indexed_at":                  {"type": "date"}
		}
	}
}`

// ProductDocument is one scraped product as stored in the index.
type ProductDocument struct {
	models.ScrapedProduct
	RunID       string    `json:"run_id"`
	ProductName string    `json:"product_name"`
	IndexedAt   time.Time `json:"indexed_at"`
}

type ProductIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
	now    func() time.Time
}

func NewProductIndex(client *elasticsearch.Client, index string, log logger.Logger) *ProductIndex {
	return &ProductIndex{
		client: client,
		index:  index,
		logger: log.With(map[string]interface{}{"component": "product-index", "index": index}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (p *ProductIndex) EnsureIndex(ctx context.Context) error {
	res, err := p.client.Indices.Exists([]string{p.index}, p.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return apperrors.NewElasticsearchConnectionFailedError(err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = p.client.Indices.Create(p.index,
		p.client.Indices.Create.WithContext(ctx),
		p.client.Indices.Create.WithBody(strings.NewReader(productMapping)),
	)
	if err != nil {
		return apperrors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	// another worker may have created it in the meantime
	if res.IsError() && !strings.Contains(readBody(res), "resource_already_exists_exception") {
		return apperrors.NewIndexWriteFailedError(p.index, fmt.Errorf("create index: %s", res.Status()))
	}
	p.logger.Info("product index ready", nil)
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// IndexProducts bulk-indexes the products of a run. Document ids are derived
// from the run id and position, so indexing the same run twice overwrites.
func (p *ProductIndex) IndexProducts(ctx context.Context, runID, productName string, products []models.ScrapedProduct) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	var body bytes.Buffer
	now := p.now()
	for i, product := range products {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": p.index, "_id": DocumentID(runID, i)},
		}
		doc := ProductDocument{ScrapedProduct: product, RunID: runID, ProductName: productName, IndexedAt: now}
		if err := writeLine(&body, meta); err != nil {
			return 0, err
		}
		if err := writeLine(&body, doc); err != nil {
			return 0, err
		}
	}

	req := esapi.BulkRequest{
		Body:    &body,
		Refresh: "wait_for",
	}
	res, err := req.Do(ctx, p.client)
	if err != nil {
		return 0, apperrors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, apperrors.NewIndexWriteFailedError(p.index, fmt.Errorf("bulk request: %s", res.Status()))
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, apperrors.NewIndexWriteFailedError(p.index, fmt.Errorf("decode bulk response: %w", err))
	}

	indexed := 0
	var failures []string
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error != nil || result.Status >= 300 {
				reason := "status " + strconv.Itoa(result.Status)
				if result.Error != nil {
					reason = result.Error.Type + ": " + result.Error.Reason
				}
				failures = append(failures, result.ID+" "+reason)
				continue
			}
			indexed++
		}
	}

	p.logger.Info("products indexed", map[string]interface{}{
		"runId":    runID,
		"indexed":  indexed,
		"failures": len(failures),
	})
	if len(failures) > 0 {
		return indexed, apperrors.NewIndexWriteFailedError(p.index, fmt.Errorf("%d documents rejected: %s", len(failures), strings.Join(failures, "; ")))
	}
	return indexed, nil
}

func DocumentID(runID string, position int) string {
	return runID + "-" + strconv.Itoa(position)
}

func writeLine(buf *bytes.Buffer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	buf.WriteByte('\n')
	return nil
}

func readBody(res *esapi.Response) string {
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return string(data)
}
