// internal/search/indexer_test.go
package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-portal/internal/common/logger"
	"loan-portal/internal/models"
)

func testIndexer(t *testing.T, handler http.HandlerFunc) *Indexer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewIndexer(es, "loan-applications", logger.NewTestLogger(t))
}

func TestIndexApplication(t *testing.T) {
	var path string
	var doc map[string]interface{}
	idx := testIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &doc)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":"created"}`))
	})

	err := idx.IndexApplication(context.Background(), &models.LoanApplication{
		ID:                "app-1",
		ApplicationNumber: "HBF-2026-074-52245",
		FirstName:         "Maria",
		Status:            models.StatusUnderReview,
	})

	require.NoError(t, err)
	assert.Equal(t, "/loan-applications/_doc/app-1", path)
	assert.Equal(t, "HBF-2026-074-52245", doc["applicationNumber"])
}

func TestIndexApplication_ServerError(t *testing.T) {
	idx := testIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"shard failure"}`))
	})

	err := idx.IndexApplication(context.Background(), &models.LoanApplication{ID: "app-1"})

	assert.Error(t, err)
}
