package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrNotFound is returned by Get when no document has the requested id.
var ErrNotFound = errors.New("document not found")

// Document is one append-only record in a collection. UserID and Day are
// copied out of the record so stores can filter on them without decoding Data.
type Document struct {
	ID         string
	Collection string
	UserID     string
	Day        int
	Data       json.RawMessage
	CreatedAt  time.Time
}

// Filter narrows a Query. An empty UserID matches every user and a zero Day
// matches every day.
type Filter struct {
	UserID string
	Day    int
}

func (f Filter) matches(doc Document) bool {
	if f.UserID != "" && doc.UserID != f.UserID {
		return false
	}
	if f.Day != 0 && doc.Day != f.Day {
		return false
	}
	return true
}

// DocumentStore is a collection-style store: records are appended and queried,
// never updated or deleted.
type DocumentStore interface {
	Insert(ctx context.Context, collection string, doc Document) (string, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, collection string, filter Filter) ([]Document, error)
}

// prepare assigns the id and creation time of a new document and stamps the
// creation time into the record's "timestamp" field when the caller left it out.
func prepare(collection string, doc Document, now time.Time) (Document, error) {
	if collection == "" {
		return Document{}, fmt.Errorf("collection name is required")
	}
	if !gjson.ValidBytes(doc.Data) {
		return Document{}, fmt.Errorf("document data for %s is not valid JSON", collection)
	}

	doc.Collection = collection
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now.UTC()
	}

	ts := gjson.GetBytes(doc.Data, "timestamp")
	if gjson.ParseBytes(doc.Data).IsObject() && (!ts.Exists() || ts.Type == gjson.Null || ts.String() == "") {
		stamped, err := sjson.SetBytes(doc.Data, "timestamp", doc.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return Document{}, fmt.Errorf("failed to stamp timestamp: %w", err)
		}
		doc.Data = stamped
	}
	return doc, nil
}
