package sharestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

// durableIndexKey lists the keys a Durable store wrote so Clear can find
// them again after a restart.
const durableIndexKey = "share_access_keys"

// Durable keeps share-access tokens in the session database so an unlock
// survives between CLI runs. Entries carry their expiry and are dropped
// once it passed; Clear wipes them on logout.
type Durable struct {
	kv  ports.KeyValueStore
	ttl time.Duration
	now func() time.Time

	mu sync.Mutex
}

var (
	_ ports.KeyValueStore = (*Durable)(nil)
	_ ports.Clearer       = (*Durable)(nil)
)

func NewDurable(kv ports.KeyValueStore, ttl time.Duration) *Durable {
	return &Durable{kv: kv, ttl: ttl, now: time.Now}
}

func (d *Durable) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := d.kv.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	value, expires, valid := decodeDurable(raw)
	if valid && (expires.IsZero() || d.now().Before(expires)) {
		return value, true, nil
	}
	// Expired, or written without an expiry by an older client.
	if err := d.Delete(ctx, key); err != nil {
		return "", false, err
	}
	return "", false, nil
}

func (d *Durable) Set(ctx context.Context, key, value string) error {
	var expires time.Time
	if d.ttl > 0 {
		expires = d.now().Add(d.ttl)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	keys, err := d.indexLocked(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(keys, key) {
		if err := d.kv.Set(ctx, durableIndexKey, strings.Join(append(keys, key), "\n")); err != nil {
			return fmt.Errorf("update share index: %w", err)
		}
	}
	return d.kv.Set(ctx, key, encodeDurable(value, expires))
}

func (d *Durable) Delete(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.kv.Delete(ctx, key); err != nil {
		return err
	}
	keys, err := d.indexLocked(ctx)
	if err != nil {
		return err
	}
	idx := slices.Index(keys, key)
	if idx < 0 {
		return nil
	}
	keys = slices.Delete(keys, idx, idx+1)
	if len(keys) == 0 {
		return d.kv.Delete(ctx, durableIndexKey)
	}
	return d.kv.Set(ctx, durableIndexKey, strings.Join(keys, "\n"))
}

// Clear removes every entry this store wrote. Other values in the same
// database, like the session token, are left alone.
func (d *Durable) Clear(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys, err := d.indexLocked(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, key := range keys {
		if err := d.kv.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("clear share access: %w", errors.Join(errs...))
	}
	return d.kv.Delete(ctx, durableIndexKey)
}

func (d *Durable) indexLocked(ctx context.Context) ([]string, error) {
	raw, ok, err := d.kv.Get(ctx, durableIndexKey)
	if err != nil {
		return nil, fmt.Errorf("read share index: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	return strings.Split(raw, "\n"), nil
}

// encodeDurable stores "<unix expiry>|<value>"; 0 means no expiry.
func encodeDurable(value string, expires time.Time) string {
	var unix int64
	if !expires.IsZero() {
		unix = expires.Unix()
	}
	return strconv.FormatInt(unix, 10) + "|" + value
}

func decodeDurable(raw string) (string, time.Time, bool) {
	head, value, found := strings.Cut(raw, "|")
	if !found {
		return "", time.Time{}, false
	}
	unix, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	if unix == 0 {
		return value, time.Time{}, true
	}
	return value, time.Unix(unix, 0), true
}
