package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

// fileStore keeps everything in memory and persists to two files:
//   - <prefix>.shops.json    (snapshot, rewritten atomically)
//   - <prefix>.orders.jsonl  (append-only order journal)
//
// Orders older than the longest timeframe are dropped when the journal is
// compacted into a fresh file.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	shopsPath   string
	ordersPath  string
	ordersFile  *os.File
	shops       map[string]ShopSettings
	orders      map[string][]feed.PurchaseEvent // per shop, any order
	ids         map[string]struct{}             // shop + "\x00" + id
	orderWrites int
}

const compactEvery = 1000

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:        log,
		shopsPath:  prefix + ".shops.json",
		ordersPath: prefix + ".orders.jsonl",
		shops:      map[string]ShopSettings{},
		orders:     map[string][]feed.PurchaseEvent{},
		ids:        map[string]struct{}{},
	}
	if err := loadShops(s.shopsPath, s.shops); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := s.replayOrders(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	f, err := os.OpenFile(s.ordersPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	s.ordersFile = f
	log.Debug("file store opened", logx.Int("shops", len(s.shops)), logx.Int("orders", len(s.ids)))
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ordersFile == nil {
		return nil
	}
	err := s.ordersFile.Close()
	s.ordersFile = nil
	return err
}

func (s *fileStore) GetShop(ctx context.Context, shop string) (ShopSettings, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.shops[shop]
	if !ok {
		return ShopSettings{}, ErrNotFound
	}
	return v, nil
}

func (s *fileStore) PutShop(ctx context.Context, v ShopSettings) error {
	_ = ctx
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.shops[v.Shop]; ok {
		v.TotalShows = old.TotalShows
	}
	s.shops[v.Shop] = v
	return s.writeShopsLocked()
}

func (s *fileStore) IncrementShows(ctx context.Context, shop string) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.shops[shop]
	if !ok {
		return 0, ErrNotFound
	}
	v.TotalShows++
	s.shops[shop] = v
	return v.TotalShows, s.writeShopsLocked()
}

func (s *fileStore) InsertOrder(ctx context.Context, ev feed.PurchaseEvent) (bool, error) {
	_ = ctx
	if ev.ID == "" || ev.Shop == "" {
		return false, errors.New("order id and shop are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ordersFile == nil {
		return false, errors.New("order journal closed")
	}
	key := ev.Shop + "\x00" + ev.ID
	if _, dup := s.ids[key]; dup {
		return false, nil
	}
	if err := json.NewEncoder(s.ordersFile).Encode(ev); err != nil {
		return false, err
	}
	s.addLocked(ev)
	s.orderWrites++
	if s.orderWrites%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("order journal compact failed", logx.Err(err))
		}
	}
	return true, nil
}

func (s *fileStore) RecentOrders(ctx context.Context, shop string, since time.Time, limit int) ([]feed.PurchaseEvent, error) {
	_ = ctx
	limit = clampLimit(limit)
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.orders[shop]
	out := make([]feed.PurchaseEvent, 0, min(limit, len(all)))
	// all is kept newest first.
	for _, ev := range all {
		if ev.CreatedAt.Before(since) {
			break
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fileStore) addLocked(ev feed.PurchaseEvent) {
	s.ids[ev.Shop+"\x00"+ev.ID] = struct{}{}
	list := s.orders[ev.Shop]
	i := sort.Search(len(list), func(i int) bool { return !list[i].CreatedAt.After(ev.CreatedAt) })
	list = append(list, feed.PurchaseEvent{})
	copy(list[i+1:], list[i:])
	list[i] = ev
	s.orders[ev.Shop] = list
}

func (s *fileStore) writeShopsLocked() error {
	tmp := s.shopsPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.shops); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.shopsPath)
}

// compactLocked rewrites the journal without orders no shop can still serve.
func (s *fileStore) compactLocked() error {
	maxDays := DefaultTimeframeDays
	for _, v := range s.shops {
		maxDays = max(maxDays, v.OrdersTimeframeDays)
	}
	cutoff := time.Now().AddDate(0, 0, -maxDays)

	tmp := s.ordersPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for shop, list := range s.orders {
		keep := list[:0]
		for _, ev := range list {
			if ev.CreatedAt.Before(cutoff) {
				delete(s.ids, shop+"\x00"+ev.ID)
				continue
			}
			keep = append(keep, ev)
		}
		s.orders[shop] = keep
		for i := len(keep) - 1; i >= 0; i-- {
			if err := enc.Encode(keep[i]); err != nil {
				_ = f.Close()
				return err
			}
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := s.ordersFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.ordersPath); err != nil {
		return err
	}
	s.ordersFile, err = os.OpenFile(s.ordersPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	return err
}

func (s *fileStore) replayOrders() error {
	f, err := os.Open(s.ordersPath)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		var ev feed.PurchaseEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			continue
		}
		if ev.ID == "" || ev.Shop == "" {
			continue
		}
		if _, dup := s.ids[ev.Shop+"\x00"+ev.ID]; dup {
			continue
		}
		s.addLocked(ev)
	}
	return sc.Err()
}

func loadShops(path string, out map[string]ShopSettings) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]ShopSettings
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}
