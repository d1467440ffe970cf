package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// OperationLogsIndexName is the index that receives operation log entries.
const OperationLogsIndexName = "operation-logs"

func operationLogsMapping() ([]byte, error) {
	keyword := map[string]interface{}{"type": "keyword"}
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"user_id":     keyword,
				"action":      keyword,
				"status":      keyword,
				"type":        keyword,
				"error":       map[string]interface{}{"type": "text"},
				"duration_ms": map[string]interface{}{"type": "long"},
				"payload":     map[string]interface{}{"type": "object", "enabled": false},
				"created_at":  map[string]interface{}{"type": "date"},
			},
		},
	}
	b, err := json.Marshal(mapping)
	if err != nil {
		return nil, fmt.Errorf("error marshalling operation logs mapping to JSON: %w", err)
	}
	return b, nil
}

// CreateOperationLogsIndexIfNotExists creates the operation logs index with
// its mapping unless it already exists.
func CreateOperationLogsIndexIfNotExists(ctx context.Context, client *ESClientWrapper, logger *zap.Logger) error {
	log := logger.Named("elasticsearch_index_setup")

	existsRes, err := esapi.IndicesExistsRequest{Index: []string{OperationLogsIndexName}}.Do(ctx, client.Client)
	if err != nil {
		return fmt.Errorf("error checking if %s index exists: %w", OperationLogsIndexName, err)
	}
	existsRes.Body.Close()

	if existsRes.StatusCode == http.StatusOK {
		log.Info("Index already exists", zap.String("index_name", OperationLogsIndexName))
		return nil
	}
	if existsRes.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status checking index %s: %s", OperationLogsIndexName, existsRes.Status())
	}

	mapping, err := operationLogsMapping()
	if err != nil {
		return err
	}
	res, err := esapi.IndicesCreateRequest{
		Index: OperationLogsIndexName,
		Body:  bytes.NewReader(mapping),
	}.Do(ctx, client.Client)
	if err != nil {
		return fmt.Errorf("error creating %s index: %w", OperationLogsIndexName, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		_ = decodeJSONResponse(res.Body, &e)
		log.Error("Failed to create index", zap.String("status", res.Status()), zap.Any("error_details", e))
		return fmt.Errorf("failed to create %s index: %s", OperationLogsIndexName, res.Status())
	}

	log.Info("Index created", zap.String("index_name", OperationLogsIndexName))
	return nil
}
