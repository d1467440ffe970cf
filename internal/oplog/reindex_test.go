package oplog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"buildinghub_backend/internal/platform/elasticsearch"

	es8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// fakeES answers bulk and index requests like an Elasticsearch node, failing
// the bulk items whose id is in reject.
type fakeES struct {
	mu      sync.Mutex
	bulkIDs []string
	indexed []string
	reject  map[string]bool
	// failBulk answers every bulk request with a 500.
	failBulk bool
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.HasSuffix(r.URL.Path, "/_bulk") && f.failBulk:
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"node down"}`)
	case strings.HasSuffix(r.URL.Path, "/_bulk"):
		var items []string
		scanner := bufio.NewScanner(r.Body)
		scanner.Buffer(make([]byte, 1<<20), 1<<20)
		for line := 0; scanner.Scan(); line++ {
			if line%2 != 0 {
				continue
			}
			var action struct {
				Index struct {
					ID string `json:"_id"`
				} `json:"index"`
			}
			_ = json.Unmarshal(scanner.Bytes(), &action)
			f.bulkIDs = append(f.bulkIDs, action.Index.ID)
			if f.reject[action.Index.ID] {
				items = append(items, fmt.Sprintf(`{"index":{"_id":%q,"status":400,"error":{"type":"mapper_parsing_exception"}}}`, action.Index.ID))
			} else {
				items = append(items, fmt.Sprintf(`{"index":{"_id":%q,"status":201}}`, action.Index.ID))
			}
		}
		fmt.Fprintf(w, `{"errors":%t,"items":[%s]}`, len(f.reject) > 0, strings.Join(items, ","))
	case strings.Contains(r.URL.Path, "/_doc/"):
		f.indexed = append(f.indexed, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"result":"created"}`)
	default:
		fmt.Fprint(w, `{}`)
	}
}

func newFakeESClient(t *testing.T, f *fakeES) *elasticsearch.ESClientWrapper {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	client, err := es8.NewClient(es8.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return &elasticsearch.ESClientWrapper{Client: client}
}

func seedEntries(t *testing.T, r Recorder, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		r.Record(context.Background(), NewEntry(fmt.Sprintf("action.%d", i), TypeAction, time.Now(), nil, nil))
	}
}

func TestReindex_CopiesEveryEntryInBatches(t *testing.T) {
	db := setupOplogDB(t)
	seedEntries(t, NewRecorder(NewGORMSink(db), zap.NewNop()), 5)
	f := &fakeES{}

	res, err := Reindex(context.Background(), db, newFakeESClient(t, f), zap.NewNop(), 2, "false")

	require.NoError(t, err)
	assert.Equal(t, 5, res.Indexed)
	assert.Equal(t, 3, res.Batches)
	assert.Len(t, f.bulkIDs, 5)
}

func TestReindex_CountsRejectedItems(t *testing.T) {
	db := setupOplogDB(t)
	seedEntries(t, NewRecorder(NewGORMSink(db), zap.NewNop()), 3)
	var first Entry
	require.NoError(t, db.Order("created_at ASC, id ASC").First(&first).Error)
	f := &fakeES{reject: map[string]bool{first.ID.String(): true}}

	res, err := Reindex(context.Background(), db, newFakeESClient(t, f), zap.NewNop(), 10, "")

	assert.Error(t, err)
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, 1, res.Failed)
}

func TestReindex_FailedBulkCountsOnlyQueuedEntries(t *testing.T) {
	db := setupOplogDB(t)
	seedEntries(t, NewRecorder(NewGORMSink(db), zap.NewNop()), 2)
	// A stored payload that is not valid JSON cannot be encoded for the bulk body.
	broken := Entry{Action: "broken", Type: TypeAction, Status: StatusSuccess, Payload: datatypes.JSON(`{"unterminated"`), CreatedAt: time.Now().UTC()}
	require.NoError(t, db.Create(&broken).Error)
	f := &fakeES{failBulk: true}

	res, err := Reindex(context.Background(), db, newFakeESClient(t, f), zap.NewNop(), 10, "")

	assert.Error(t, err)
	assert.Equal(t, 0, res.Indexed)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, 1, res.Batches)
}

func TestElasticsearchSink_IndexesByEntryID(t *testing.T) {
	f := &fakeES{}
	r := NewRecorder(NewElasticsearchSink(newFakeESClient(t, f)), zap.NewNop())

	r.Record(context.Background(), NewEntry("polls.publish", TypeAction, time.Now(), nil, nil))

	require.Len(t, f.indexed, 1)
	assert.Len(t, f.indexed[0], 36)
}
