package sink

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
)

var spanIndex = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"span_id":        map[string]interface{}{"type": "keyword"},
			"trace_id":       map[string]interface{}{"type": "keyword"},
			"parent_span_id": map[string]interface{}{"type": "keyword"},
			"service":        map[string]interface{}{"type": "keyword"},
			"operation":      map[string]interface{}{"type": "keyword"},
			"message":        map[string]interface{}{"type": "text"},
			"start_time":     map[string]interface{}{"type": "date_nanos"},
			"end_time":       map[string]interface{}{"type": "date_nanos"},
			"status":         map[string]interface{}{"type": "keyword"},
		},
	},
}

type Bootstrapper struct {
	esClient *elasticsearch.Client
	logger   *zap.Logger
}

func NewBootstrapper(esClient *elasticsearch.Client, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		esClient: esClient,
		logger:   logger,
	}
}

// BootstrapSpanIndex creates the span index unless it already exists.
func (bs *Bootstrapper) BootstrapSpanIndex(indexName string) error {
	body, err := json.Marshal(spanIndex)
	if err != nil {
		return fmt.Errorf("error marshaling index input during bootstrap: %w", err)
	}

	res, err := bs.esClient.Indices.Create(
		indexName,
		bs.esClient.Indices.Create.WithBody(strings.NewReader(string(body))),
	)
	if err != nil {
		return fmt.Errorf("error creating index during bootstrap %s: %w", indexName, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusBadRequest && strings.Contains(res.String(), "resource_already_exists_exception") {
		bs.logger.Info("Index already exists", zap.String("index_name", indexName))
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("error response for index %s: %s", indexName, res.String())
	}

	bs.logger.Info("Successfully created index", zap.String("index_name", indexName))
	return nil
}
