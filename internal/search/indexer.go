// internal/search/indexer.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"loan-portal/internal/common/logger"
	"loan-portal/internal/models"
)

// Indexer writes applications into the admin search index. Indexing is
// best-effort from the submission path's point of view.
type Indexer struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(es *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search-indexer"}),
	}
}

// IndexApplication upserts the full application document under its id.
func (i *Indexer) IndexApplication(ctx context.Context, app *models.LoanApplication) error {
	doc, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("marshal application document: %w", err)
	}

	res, err := i.es.Index(
		i.index,
		bytes.NewReader(doc),
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(app.ID),
		i.es.Index.WithRefresh("false"),
	)
	if err != nil {
		return fmt.Errorf("index application: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index application: %s", res.Status())
	}

	i.logger.Debug("application indexed", map[string]interface{}{
		"applicationId": app.ID,
	})
	return nil
}
