package elasticsearch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"buildinghub_backend/internal/config"
)

// requestTimeout bounds how long the client waits for a response header.
const requestTimeout = 10 * time.Second

// ESClientWrapper wraps the elasticsearch.Client so Wire can tell it apart.
type ESClientWrapper struct {
	*elasticsearch.Client
}

// ZapLogger is an adapter from zap.Logger to elastictransport.Logger.
type ZapLogger struct {
	logger *zap.Logger
}

var _ elastictransport.Logger = (*ZapLogger)(nil)

// LogRoundTrip prints the request-response metrics.
func (l *ZapLogger) LogRoundTrip(req *http.Request, res *http.Response, err error, start time.Time, dur time.Duration) error {
	var statusCode int
	if res != nil {
		statusCode = res.StatusCode
	}
	l.logger.Debug("Elasticsearch RoundTrip",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status_code", statusCode),
		zap.Duration("duration", dur),
		zap.Error(err),
	)
	return nil
}

// RequestBodyEnabled makes the client pass a copy of request body to the logger.
func (l *ZapLogger) RequestBodyEnabled() bool { return false }

// ResponseBodyEnabled makes the client pass a copy of response body to the logger.
func (l *ZapLogger) ResponseBodyEnabled() bool { return false }

// NewClient creates the Elasticsearch client. It returns (nil, nil) when
// ELASTICSEARCH_URL is empty so callers can treat the index as optional.
func NewClient(cfg *config.Config, logger *zap.Logger) (*ESClientWrapper, error) {
	if cfg.ElasticsearchURL == "" {
		logger.Info("ELASTICSEARCH_URL not set, Elasticsearch client disabled")
		return nil, nil
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = requestTimeout

	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.ElasticsearchURL},
		Transport: transport,
		Logger:    &ZapLogger{logger: logger.Named("elasticsearch_client")},
		// Retry on 429 TooManyRequests and gateway errors
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
		MaxRetries: 5,
	}

	esClient, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		logger.Error("Error creating Elasticsearch client", zap.Error(err))
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}

	res, err := esClient.Info()
	if err != nil {
		logger.Error("Error pinging Elasticsearch", zap.Error(err))
		return nil, fmt.Errorf("esClient.Info: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := decodeJSONResponse(res.Body, &e); err != nil {
			logger.Error("Error decoding Elasticsearch error response", zap.Error(err), zap.String("status", res.Status()))
			return nil, fmt.Errorf("error decoding Elasticsearch error response: %s", res.Status())
		}
		logger.Error("Elasticsearch client initialization error", zap.String("status", res.Status()), zap.Any("error_details", e))
		return nil, fmt.Errorf("elasticsearch client initialization error: %s", res.Status())
	}

	logger.Info("Elasticsearch client initialized and connected successfully",
		zap.String("url", cfg.ElasticsearchURL),
		zap.String("es_version", elasticsearch.Version))
	return &ESClientWrapper{Client: esClient}, nil
}

func decodeJSONResponse(body io.Reader, target interface{}) error {
	if body == nil {
		return fmt.Errorf("response body is nil")
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode JSON response (body: %s): %w", string(raw), err)
	}
	return nil
}
