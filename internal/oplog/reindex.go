package oplog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"buildinghub_backend/internal/platform/elasticsearch"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReindexResult counts the entries of a reindex run.
type ReindexResult struct {
	Indexed int
	Failed  int
	Batches int
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string                 `json:"_id"`
			Status int                    `json:"status"`
			Error  map[string]interface{} `json:"error,omitempty"`
		} `json:"index"`
	} `json:"items"`
}

// Reindex copies the operation_logs table into the Elasticsearch index in
// batches with the bulk API. Entries keep their IDs, so a rerun overwrites
// instead of duplicating.
func Reindex(ctx context.Context, db *gorm.DB, es *elasticsearch.ESClientWrapper, logger *zap.Logger, batchSize int, refresh string) (ReindexResult, error) {
	var res ReindexResult
	if batchSize <= 0 {
		batchSize = 500
	}

	for offset := 0; ; offset += batchSize {
		var entries []Entry
		if err := db.WithContext(ctx).Order("created_at ASC, id ASC").Offset(offset).Limit(batchSize).Find(&entries).Error; err != nil {
			return res, fmt.Errorf("failed to fetch operation logs at offset %d: %w", offset, err)
		}
		if len(entries) == 0 {
			break
		}
		res.Batches++

		var body strings.Builder
		queued := 0
		for i := range entries {
			doc, err := json.Marshal(&entries[i])
			if err != nil {
				logger.Error("Failed to encode operation log", zap.String("id", entries[i].ID.String()), zap.Error(err))
				res.Failed++
				continue
			}
			fmt.Fprintf(&body, `{"index":{"_index":"%s","_id":"%s"}}`+"\n", elasticsearch.OperationLogsIndexName, entries[i].ID)
			body.Write(doc)
			body.WriteString("\n")
			queued++
		}
		if queued == 0 {
			continue
		}

		indexed, failed, err := sendBulk(ctx, es, body.String(), refresh, logger)
		if err != nil {
			logger.Error("Bulk request failed", zap.Int("batch", res.Batches), zap.Error(err))
			res.Failed += queued
			continue
		}
		res.Indexed += indexed
		res.Failed += failed
		logger.Info("Operation log batch indexed",
			zap.Int("batch", res.Batches),
			zap.Int("indexed", indexed),
			zap.Int("failed", failed))

		if len(entries) < batchSize {
			break
		}
	}

	if res.Failed > 0 {
		return res, fmt.Errorf("%d operation logs failed to index", res.Failed)
	}
	return res, nil
}

func sendBulk(ctx context.Context, es *elasticsearch.ESClientWrapper, body, refresh string, logger *zap.Logger) (indexed, failed int, err error) {
	resp, err := esapi.BulkRequest{
		Body:    strings.NewReader(body),
		Refresh: refresh,
	}.Do(ctx, es.Client)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return 0, 0, fmt.Errorf("bulk request rejected: %s", resp.Status())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, 0, fmt.Errorf("failed to decode bulk response: %w", err)
	}
	for _, item := range parsed.Items {
		if item.Index.Error != nil {
			logger.Warn("Operation log rejected by Elasticsearch",
				zap.String("id", item.Index.ID),
				zap.Int("status", item.Index.Status),
				zap.Any("error", item.Index.Error))
			failed++
			continue
		}
		indexed++
	}
	return indexed, failed, nil
}
