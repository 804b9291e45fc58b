package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"astra/internal/logging"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Keys of the local fallback store.
const (
	KeyUserID   = "astra_user_id"
	KeyMemory   = "astra_memory"
	KeyTasks    = "astra_tasks"
	KeyCSS      = "astra_css"
	KeyMessages = "astra_messages"
	KeySandbox  = "astra_sandbox"
	KeyTerminal = "astra_terminal"
)

var localBucket = []byte("astra")

// keyColumns maps local keys to the column encoding they share.
var keyColumns = map[string]string{
	KeyMemory:   ColMemory,
	KeyTasks:    ColTasks,
	KeyCSS:      ColCustomCSS,
	KeyMessages: ColChatHistory,
	KeySandbox:  ColSandboxConfig,
	KeyTerminal: ColTerminalLogs,
}

// BoltStore is the local key-value fallback. The database file is opened
// per operation so several astra processes can share it.
type BoltStore struct {
	path string
}

// NewBoltStore returns a store over the file at path, creating its directory.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &BoltStore{path: path}, nil
}

// Path returns the database file.
func (s *BoltStore) Path() string { return s.path }

func (s *BoltStore) open() (*bolt.DB, error) {
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	return db, nil
}

// Get returns the value stored under key.
func (s *BoltStore) Get(key string) (string, bool, error) {
	db, err := s.open()
	if err != nil {
		return "", false, err
	}
	defer func() { _ = db.Close() }()

	var val []byte
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(localBucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			val = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return string(val), val != nil, nil
}

// PutAll writes every key/value pair in a single transaction.
func (s *BoltStore) PutAll(kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(localBucket)
		if err != nil {
			return err
		}
		for k, v := range kv {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// UserID returns the persistent anonymous user id, creating one on first use.
func (s *BoltStore) UserID() (string, error) {
	db, err := s.open()
	if err != nil {
		return "", err
	}
	defer func() { _ = db.Close() }()

	var id string
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(localBucket)
		if err != nil {
			return err
		}
		if v := b.Get([]byte(KeyUserID)); len(v) > 0 {
			id = string(v)
			return nil
		}
		id = uuid.NewString()
		logging.Store("Created anonymous user id %s", id)
		return b.Put([]byte(KeyUserID), []byte(id))
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve user id: %w", err)
	}
	return id, nil
}

// Load reads every locally stored session field. Missing keys stay nil.
func (s *BoltStore) Load() (*Record, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	rec := &Record{}
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(localBucket)
		if b == nil {
			return nil
		}
		for key, col := range keyColumns {
			v := b.Get([]byte(key))
			if v == nil {
				continue
			}
			if err := rec.setColumn(col, string(v)); err != nil {
				// Skip malformed entries instead of failing the whole load
				logging.StoreWarn("Skipping corrupt local key %s: %v", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Save writes the set fields of p.
func (s *BoltStore) Save(p Patch) error {
	cols, err := p.columns()
	if err != nil {
		return err
	}
	byCol := make(map[string]string, len(keyColumns))
	for k, c := range keyColumns {
		byCol[c] = k
	}
	kv := make(map[string]string, len(cols))
	for _, c := range cols {
		kv[byCol[c.name]] = c.value
	}
	return s.PutAll(kv)
}
