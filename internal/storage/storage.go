package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileStore provides a file-based DocumentStore: one JSON file per document
// under <basePath>/<collection>/.
type FileStore struct {
	basePath string
	now      func() time.Time

	mu      sync.Mutex
	lastSeq int64
}

// fileEnvelope is the on-disk shape of a document. Seq orders documents
// written within the same instant.
type fileEnvelope struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Day       int             `json:"day"`
	CreatedAt time.Time       `json:"created_at"`
	Seq       int64           `json:"seq"`
	Data      json.RawMessage `json:"data"`
}

// NewFileStore creates a new FileStore and ensures the base directory exists.
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &FileStore{basePath: basePath, now: time.Now}, nil
}

func (s *FileStore) collectionDir(collection string) (string, error) {
	if !safeName.MatchString(collection) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	return filepath.Join(s.basePath, collection), nil
}

// Insert writes a new document file.
func (s *FileStore) Insert(_ context.Context, collection string, doc Document) (string, error) {
	dir, err := s.collectionDir(collection)
	if err != nil {
		return "", err
	}
	doc, err = prepare(collection, doc, s.now())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create collection directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(fileEnvelope{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Day:       doc.Day,
		CreatedAt: doc.CreatedAt,
		Seq:       s.nextSeq(),
		Data:      doc.Data,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	filePath := filepath.Join(dir, doc.ID+".json")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write document file: %w", err)
	}
	return doc.ID, nil
}

// nextSeq returns a strictly increasing sequence number. It follows the wall
// clock so numbers keep increasing across restarts.
func (s *FileStore) nextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := time.Now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

// Get reads a document file by id.
func (s *FileStore) Get(_ context.Context, collection, id string) (*Document, error) {
	dir, err := s.collectionDir(collection)
	if err != nil {
		return nil, err
	}
	if !safeName.MatchString(id) {
		return nil, ErrNotFound
	}

	doc, err := readDocument(collection, filepath.Join(dir, id+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// Query scans the collection directory and returns matching documents, oldest first.
func (s *FileStore) Query(_ context.Context, collection string, filter Filter) ([]Document, error) {
	dir, err := s.collectionDir(collection)
	if err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob documents: %w", err)
	}

	var docs []Document
	var seqs []int64
	for _, match := range matches {
		doc, seq, err := readEnvelope(collection, match)
		if err != nil {
			return nil, err
		}
		if filter.matches(doc) {
			docs = append(docs, doc)
			seqs = append(seqs, seq)
		}
	}
	sort.Sort(bySeq{docs: docs, seqs: seqs})
	return docs, nil
}

// bySeq sorts documents by creation time, then by write order.
type bySeq struct {
	docs []Document
	seqs []int64
}

func (b bySeq) Len() int { return len(b.docs) }

func (b bySeq) Less(i, j int) bool {
	if !b.docs[i].CreatedAt.Equal(b.docs[j].CreatedAt) {
		return b.docs[i].CreatedAt.Before(b.docs[j].CreatedAt)
	}
	return b.seqs[i] < b.seqs[j]
}

func (b bySeq) Swap(i, j int) {
	b.docs[i], b.docs[j] = b.docs[j], b.docs[i]
	b.seqs[i], b.seqs[j] = b.seqs[j], b.seqs[i]
}

func readDocument(collection, path string) (Document, error) {
	doc, _, err := readEnvelope(collection, path)
	return doc, err
}

func readEnvelope(collection, path string) (Document, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, 0, fmt.Errorf("failed to read document file: %w", err)
	}

	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Document{}, 0, fmt.Errorf("failed to unmarshal document %s: %w", path, err)
	}
	return Document{
		ID:         env.ID,
		Collection: collection,
		UserID:     env.UserID,
		Day:        env.Day,
		Data:       env.Data,
		CreatedAt:  env.CreatedAt,
	}, env.Seq, nil
}
