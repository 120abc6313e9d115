package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Entry kinds written to the file and Kafka backends.
const (
	KindOrder = "order"
	KindTask  = "task"
)

// Entry is one line of the JSON lines file and the value of one Kafka
// message.
type Entry struct {
	Kind  string       `json:"kind"`
	Order *OrderRecord `json:"order,omitempty"`
	Task  *TaskRecord  `json:"task,omitempty"`
}

// FileStore appends records as JSON lines to a local file. It suits single
// node deployments and development.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore writing to path. Missing parent
// directories are created; the file itself is created on first write.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: mkdir: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Path returns the file the store appends to.
func (fs *FileStore) Path() string { return fs.path }

// WriteOrder implements [Store].
func (fs *FileStore) WriteOrder(_ context.Context, rec OrderRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return fs.append(Entry{Kind: KindOrder, Order: &rec})
}

// WriteTask implements [Store].
func (fs *FileStore) WriteTask(_ context.Context, rec TaskRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return fs.append(Entry{Kind: KindTask, Task: &rec})
}

func (fs *FileStore) append(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ledger: marshal: %w", err)
	}
	data = append(data, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("ledger: write: %w", err)
	}
	return nil
}
