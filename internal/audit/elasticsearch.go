// Package audit writes execution records to an append-only Elasticsearch index.
package audit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	apperrors "template-engine/internal/common/errors"
	"template-engine/internal/common/logger"
	"template-engine/internal/domain"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// executionDocument is the indexed form of a NotificationExecution. The
// content hash lets auditors verify a stored rendering was not altered.
type executionDocument struct {
	domain.NotificationExecution
	ContentHash string    `json:"contentHash"`
	IndexedAt   time.Time `json:"indexedAt"`
}

// IndexMapping is the mapping for the execution index. Variables are kept
// in the source but not indexed, since their keys differ per template.
const IndexMapping = `{
  "mappings": {
    "dynamic": "strict",
    "properties": {
      "id":              {"type": "keyword"},
      "templateId":      {"type": "keyword"},
      "versionId":       {"type": "keyword"},
      "version":         {"type": "keyword"},
      "orgId":           {"type": "keyword"},
      "workspaceId":     {"type": "keyword"},
      "channel":         {"type": "keyword"},
      "recipients":      {"type": "keyword"},
      "variables":       {"type": "object", "enabled": false},
      "renderedSubject": {"type": "text"},
      "renderedContent": {"type": "text"},
      "status":          {"type": "keyword"},
      "errorCode":       {"type": "keyword"},
      "executedOn":      {"type": "date"},
      "contentHash":     {"type": "keyword"},
      "indexedAt":       {"type": "date"}
    }
  }
}`

type ElasticsearchLog struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
	now    func() time.Time
}

func NewElasticsearchLog(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchLog {
	return &ElasticsearchLog{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "execution-log"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Save indexes the execution with op_type=create, so an id can be written once only.
func (l *ElasticsearchLog) Save(ctx context.Context, e *domain.NotificationExecution) error {
	doc := executionDocument{
		NotificationExecution: *e,
		ContentHash:           ContentHash(e.RenderedSubject, e.RenderedContent),
		IndexedAt:             l.now(),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return apperrors.NewAuditWriteFailedError(err)
	}

	req := esapi.CreateRequest{
		Index:      l.index,
		DocumentID: e.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return apperrors.NewAuditWriteFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return apperrors.NewAuditWriteFailedError(fmt.Errorf("index %s: %s: %s", l.index, res.Status(), bytes.TrimSpace(msg)))
	}

	l.logger.Debug("execution indexed", map[string]interface{}{
		"executionId": e.ID,
		"templateId":  e.TemplateID,
		"status":      string(e.Status),
	})
	return nil
}

// ContentHash is the hex sha256 of subject and body, separated by a NUL byte.
func ContentHash(subject, body string) string {
	h := sha256.New()
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}
