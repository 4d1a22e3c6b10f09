package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Avi18971911/augur-span-reporter/internal/collector/model"
	"github.com/elastic/go-elasticsearch/v8"
)

type RefreshRate string

const (
	// Wait for the changes made by the request to be made visible by a refresh before replying.
	Wait RefreshRate = "wait_for"
	// Async takes no refresh related actions.
	Async RefreshRate = "false"
)

type SpanStore interface {
	// BulkIndex indexes closed spans keyed by span id, so a span indexed twice is overwritten.
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/docs-bulk.html
	BulkIndex(ctx context.Context, spans []model.SpanRecord) error
}

type ElasticsearchSpanStore struct {
	es          *elasticsearch.Client
	index       string
	refreshRate string
}

func NewElasticsearchSpanStore(es *elasticsearch.Client, index string, refreshRate RefreshRate) *ElasticsearchSpanStore {
	return &ElasticsearchSpanStore{
		es:          es,
		index:       index,
		refreshRate: string(refreshRate),
	}
}

func (ess *ElasticsearchSpanStore) BulkIndex(ctx context.Context, spans []model.SpanRecord) error {
	if len(spans) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, span := range spans {
		meta := map[string]interface{}{
			"index": map[string]interface{}{
				"_id": span.SpanID,
			},
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("error marshaling meta to bulk index: %w", err)
		}
		buf.Write(metaJSON)
		buf.WriteByte('\n')

		dataJSON, err := json.Marshal(span)
		if err != nil {
			return fmt.Errorf("error marshaling span to bulk index: %w", err)
		}
		buf.Write(dataJSON)
		buf.WriteByte('\n')
	}

	res, err := ess.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		ess.es.Bulk.WithIndex(ess.index),
		ess.es.Bulk.WithContext(ctx),
		ess.es.Bulk.WithRefresh(ess.refreshRate),
	)
	if err != nil {
		return fmt.Errorf("error bulk indexing: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	var bulkRes bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return fmt.Errorf("error decoding bulk index response: %w", err)
	}
	if bulkRes.Errors {
		return fmt.Errorf("bulk index error: %s", bulkRes.firstFailure())
	}
	return nil
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

func (br bulkResponse) firstFailure() string {
	for _, item := range br.Items {
		for _, result := range item {
			if result.Status >= 300 {
				return fmt.Sprintf("span %s: %s: %s", result.ID, result.Error.Type, result.Error.Reason)
			}
		}
	}
	return "unknown failure"
}
