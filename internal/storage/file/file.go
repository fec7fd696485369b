// Package file keeps orders in memory and persists the full set as a JSON
// snapshot on every write. Suitable for low write volume only.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/storage"
	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/types/order"
)

type Store struct {
	path string

	mu     sync.RWMutex
	orders []order.Order
	index  map[string]int
}

var _ storage.OrderStore = (*Store)(nil)

// Open loads the snapshot at path, creating its directory when missing.
func Open(path string) (*Store, error) {
	s := &Store{path: path, index: make(map[string]int)}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.writeSnapshot(nil); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.orders); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
		}
	}
	for i, o := range s.orders {
		s.index[o.OrderID] = i
	}
	return s, nil
}

func (s *Store) UpsertOrder(ctx context.Context, o *order.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]order.Order, len(s.orders), len(s.orders)+1)
	copy(next, s.orders)
	i, exists := s.index[o.OrderID]
	if exists {
		next[i] = *o
	} else {
		next = append(next, *o)
	}

	if err := s.writeSnapshot(next); err != nil {
		return err
	}
	s.orders = next
	if !exists {
		s.index[o.OrderID] = len(next) - 1
	}
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[orderID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	o := s.orders[i]
	return &o, nil
}

func (s *Store) ListOrders(_ context.Context) ([]order.Order, error) {
	s.mu.RLock()
	out := make([]order.Order, len(s.orders))
	copy(out, s.orders)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Close() error {
	return nil
}

// writeSnapshot replaces the file atomically: a crash mid-write leaves the
// previous snapshot intact.
func (s *Store) writeSnapshot(orders []order.Order) error {
	if orders == nil {
		orders = []order.Order{}
	}
	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return syncDir(filepath.Dir(s.path))
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open snapshot dir: %w", err)
	}
	defer d.Close()
	// Some filesystems do not support fsync on directories.
	_ = d.Sync()
	return nil
}
