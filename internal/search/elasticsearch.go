package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"example.com/backstage/services/erpgateway/config"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ItemDocument is the indexed projection of an ERP item
type ItemDocument struct {
	ItemCode     string    `json:"item_code"`
	ItemName     string    `json:"item_name"`
	PurchaseUnit string    `json:"purchase_unit,omitempty"`
	GroupCode    *int      `json:"group_code,omitempty"`
	Frozen       bool      `json:"frozen"`
	Organic      bool      `json:"organic"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source ItemDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

func (c *ElasticClient) index() string {
	return config.FormatIndex(c.config, c.config.Index)
}

// IndexItems upserts docs keyed by item code in a single bulk request
func (c *ElasticClient) IndexItems(ctx context.Context, docs []ItemDocument) error {
	if len(docs) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, doc := range docs {
		meta := map[string]interface{}{
			"index": map[string]string{"_index": c.index(), "_id": doc.ItemCode},
		}
		if err := enc.Encode(meta); err != nil {
			return errors.Wrap(err, "failed to marshal bulk metadata")
		}
		if err := enc.Encode(doc); err != nil {
			return errors.Wrapf(err, "failed to marshal item %s", doc.ItemCode)
		}
	}

	req := esapi.BulkRequest{
		Body: &body,
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch bulk request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.Errorf("Elasticsearch bulk error: %s", res.Status())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return errors.Wrap(err, "failed to parse Elasticsearch bulk response")
	}

	if parsed.Errors {
		failed := 0
		for _, item := range parsed.Items {
			for _, result := range item {
				if result.Status >= http.StatusMultipleChoices {
					failed++
					log.Error().
						Str("item_code", result.ID).
						Str("type", result.Error.Type).
						Str("reason", result.Error.Reason).
						Msg("Failed to index item")
				}
			}
		}
		return errors.Errorf("failed to index %d of %d items", failed, len(docs))
	}

	log.Info().Int("count", len(docs)).Str("index", c.index()).Msg("Items indexed")
	return nil
}

// SearchItems matches text against item codes and names
func (c *ElasticClient) SearchItems(ctx context.Context, text string, size int) ([]ItemDocument, error) {
	q := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"item_code^2", "item_name"},
			},
		},
	}
	queryJSON, err := json.Marshal(q)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{c.index()},
		Body:  bytes.NewReader(queryJSON),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	docs := make([]ItemDocument, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}
