package object

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketCommits = []byte("commits")
	bucketBlobs   = []byte("blobs")
	bucketTrees   = []byte("trees")
	bucketRefs    = []byte("refs")
	bucketConfig  = []byte("config")
)

// BoltStore implements Store using BoltDB. Objects are content-addressed
// (key = oid); refs and config are plain key/value buckets. Ref CAS runs
// inside a single write transaction, which is what gives two racing writer
// sessions their exactly-one-wins guarantee.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a BoltDB-backed object store under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "warp.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketCommits, bucketBlobs, bucketTrees, bucketRefs, bucketConfig}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Commit(ctx context.Context, message string, parents []string, tree string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sha := CommitOID(message, parents, tree)
	rec := commitRecord{
		Message: message,
		Tree:    tree,
		Parents: append([]string(nil), parents...),
		Author:  "warp",
		Date:    time.Now().UTC(),
	}
	data, err := json.Marshal(&rec)
	if err != nil {
		return "", err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCommits)
		if b.Get([]byte(sha)) != nil {
			return nil // content-addressed: identical commit already stored
		}
		return b.Put([]byte(sha), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write commit: %w", err)
	}
	return sha, nil
}

func (s *BoltStore) getCommit(sha string) (*commitRecord, error) {
	var rec commitRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCommits).Get([]byte(sha))
		if data == nil {
			return fmt.Errorf("commit %s: %w", sha, ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) ShowCommit(ctx context.Context, sha string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec, err := s.getCommit(sha)
	if err != nil {
		return "", err
	}
	return rec.Message, nil
}

func (s *BoltStore) GetNodeInfo(ctx context.Context, sha string) (*CommitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := s.getCommit(sha)
	if err != nil {
		return nil, err
	}
	return rec.info(sha), nil
}

func (s *BoltStore) LogStream(ctx context.Context, ref string, limit int) (<-chan *CommitInfo, <-chan error) {
	out := make(chan *CommitInfo)
	errs := make(chan error, 1)
	tip, err := s.ReadRef(ctx, ref)
	if err != nil {
		close(out)
		errs <- err
		close(errs)
		return out, errs
	}
	return logStream(ctx, tip, limit, s.GetNodeInfo)
}

func (s *BoltStore) WriteBlob(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	oid := BlobOID(data)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		if b.Get([]byte(oid)) != nil {
			return nil
		}
		return b.Put([]byte(oid), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return oid, nil
}

func (s *BoltStore) ReadBlob(ctx context.Context, oid string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlobs).Get([]byte(oid))
		if v == nil {
			return fmt.Errorf("blob %s: %w", oid, ErrNotFound)
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

func (s *BoltStore) WriteTree(ctx context.Context, entries []TreeEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	oid, err := TreeOID(entries)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTrees).Put([]byte(oid), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write tree: %w", err)
	}
	return oid, nil
}

func (s *BoltStore) ReadTree(ctx context.Context, oid string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []TreeEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTrees).Get([]byte(oid))
		if v == nil {
			return fmt.Errorf("tree %s: %w", oid, ErrNotFound)
		}
		return json.Unmarshal(v, &entries)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Path] = e.OID
	}
	return out, nil
}

func (s *BoltStore) UpdateRef(ctx context.Context, ref, oid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRefs).Put([]byte(ref), []byte(oid))
	})
}

func (s *BoltStore) CompareAndSwapRef(ctx context.Context, ref, expected, oid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRefs)
		cur := string(b.Get([]byte(ref)))
		if cur != expected {
			return fmt.Errorf("ref %s at %q, expected %q: %w", ref, cur, expected, ErrRefCASMismatch)
		}
		return b.Put([]byte(ref), []byte(oid))
	})
}

func (s *BoltStore) ReadRef(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var oid string
	err := s.db.View(func(tx *bolt.Tx) error {
		oid = string(tx.Bucket(bucketRefs).Get([]byte(ref)))
		return nil
	})
	return oid, err
}

func (s *BoltStore) DeleteRef(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRefs).Delete([]byte(ref))
	})
}

func (s *BoltStore) ListRefs(ctx context.Context, prefix string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRefs).ForEach(func(k, v []byte) error {
			if strings.HasPrefix(string(k), prefix) {
				out[string(k)] = string(v)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ConfigGet(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var val string
	err := s.db.View(func(tx *bolt.Tx) error {
		val = string(tx.Bucket(bucketConfig).Get([]byte(key)))
		return nil
	})
	return val, err
}

func (s *BoltStore) ConfigSet(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConfig).Put([]byte(key), []byte(value))
	})
}

func (s *BoltStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketCommits) == nil {
			return fmt.Errorf("commits bucket missing")
		}
		return nil
	})
}

func (s *BoltStore) CountNodes(ctx context.Context, ref string) (int, error) {
	tip, err := s.ReadRef(ctx, ref)
	if err != nil {
		return 0, err
	}
	return countReachable(ctx, tip, s.GetNodeInfo)
}
