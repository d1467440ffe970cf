package oplog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"buildinghub_backend/internal/config"
	"buildinghub_backend/internal/platform/elasticsearch"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sink persists operation log entries.
type Sink interface {
	Append(ctx context.Context, entry *Entry) error
}

// GORMSink writes entries to the operation_logs table.
type GORMSink struct {
	db *gorm.DB
}

func NewGORMSink(db *gorm.DB) *GORMSink {
	return &GORMSink{db: db}
}

func (s *GORMSink) Append(ctx context.Context, entry *Entry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to insert operation log %q: %w", entry.Action, err)
	}
	return nil
}

// ElasticsearchSink indexes entries into the operation logs index.
type ElasticsearchSink struct {
	client *elasticsearch.ESClientWrapper
}

func NewElasticsearchSink(client *elasticsearch.ESClientWrapper) *ElasticsearchSink {
	return &ElasticsearchSink{client: client}
}

func (s *ElasticsearchSink) Append(ctx context.Context, entry *Entry) error {
	doc, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode operation log: %w", err)
	}
	res, err := esapi.IndexRequest{
		Index:      elasticsearch.OperationLogsIndexName,
		DocumentID: entry.ID.String(),
		Body:       bytes.NewReader(doc),
	}.Do(ctx, s.client.Client)
	if err != nil {
		return fmt.Errorf("failed to index operation log: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch rejected operation log: %s", res.Status())
	}
	return nil
}

// MultiSink appends to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, entry *Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewSink builds the sinks listed in OPLOG_SINKS.
func NewSink(cfg *config.Config, db *gorm.DB, es *elasticsearch.ESClientWrapper, logger *zap.Logger) (Sink, error) {
	var sinks MultiSink
	for _, name := range cfg.OplogSinks {
		switch name {
		case "db":
			sinks = append(sinks, NewGORMSink(db))
		case "elasticsearch":
			if es == nil {
				return nil, fmt.Errorf("operation log sink %q requires an Elasticsearch client", name)
			}
			sinks = append(sinks, NewElasticsearchSink(es))
		default:
			return nil, fmt.Errorf("unknown operation log sink %q", name)
		}
	}
	logger.Info("Operation log sinks configured", zap.Strings("sinks", cfg.OplogSinks))
	return sinks, nil
}
