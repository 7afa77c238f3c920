// Package cart holds the driver's reservation cart: a set of posting ids persisted in one
// key-value slot and flushed to the backend in a single batch.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"pickup-market/internal/domain/contact"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
)

const DefaultKey = "reservation_cart"

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrCommitInFlight = errors.New("cart commit already in progress")
	ErrInvalidPostID  = errors.New("post id must be positive")
)

// Cart is safe for concurrent use. Every operation reads and writes through the store,
// so two agents sharing a store see each other's changes.
type Cart struct {
	store  ports.KVStore
	key    string
	logger *logger.Logger

	mu         sync.Mutex
	committing bool
	// committed ids the store still lists because pruning failed; hidden until the
	// next successful write
	stale []int64
}

// New returns a cart persisted under key in store. log may be nil.
func New(store ports.KVStore, key string, log *logger.Logger) *Cart {
	if key == "" {
		key = DefaultKey
	}
	return &Cart{store: store, key: key, logger: log}
}

// Add puts postID in the cart. Adding twice is a no-op.
func (c *Cart) Add(ctx context.Context, postID int64) error {
	if postID <= 0 {
		return ErrInvalidPostID
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.load(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(ids, postID) {
		return nil
	}
	return c.save(ctx, append(ids, postID))
}

// Remove takes postID out of the cart. Removing an absent id is a no-op.
func (c *Cart) Remove(ctx context.Context, postID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.load(ctx)
	if err != nil {
		return err
	}
	idx := slices.Index(ids, postID)
	if idx < 0 {
		return nil
	}
	return c.save(ctx, slices.Delete(ids, idx, idx+1))
}

// Contains reports whether postID is in the cart.
func (c *Cart) Contains(ctx context.Context, postID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.load(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, postID), nil
}

// List returns the cart contents in ascending order.
func (c *Cart) List(ctx context.Context) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	c.stale = nil
	return nil
}

// Commit sends every id in one CreateContacts call. On success the committed ids leave
// the cart; on failure the cart is untouched and the creator's error is returned wrapped.
// Once the contacts exist Commit reports success even if the store cannot be pruned:
// the committed ids are hidden from the cart until a later write drops them.
func (c *Cart) Commit(ctx context.Context, creator ports.ContactCreator) ([]contact.Contact, error) {
	c.mu.Lock()
	if c.committing {
		c.mu.Unlock()
		return nil, ErrCommitInFlight
	}
	ids, err := c.load(ctx)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if len(ids) == 0 {
		c.mu.Unlock()
		return nil, ErrEmptyCart
	}
	c.committing = true
	c.mu.Unlock()

	slices.Sort(ids)
	created, callErr := creator.CreateContacts(ctx, ids)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.committing = false

	if callErr != nil {
		return nil, fmt.Errorf("commit cart: %w", callErr)
	}

	if err := c.prune(ctx, ids); err != nil {
		c.stale = append(c.stale, ids...)
		if c.logger != nil {
			c.logger.Error(ctx, "cart_prune_failed", "Contacts created but committed ids are still stored", err, map[string]any{
				"post_ids": ids,
			})
		}
	}
	return created, nil
}

// prune drops committed ids from the store. Ids added while the call was in flight
// stay for the next commit.
func (c *Cart) prune(ctx context.Context, committed []int64) error {
	current, err := c.load(ctx)
	if err != nil {
		return err
	}
	remaining := slices.DeleteFunc(current, func(id int64) bool { return slices.Contains(committed, id) })
	if len(remaining) == 0 {
		if err := c.store.Delete(ctx, c.key); err != nil {
			return fmt.Errorf("clear committed ids: %w", err)
		}
		c.stale = nil
		return nil
	}
	return c.save(ctx, remaining)
}

// load reads the id list. A slot that does not decode is treated as empty.
func (c *Cart) load(ctx context.Context) ([]int64, error) {
	raw, found, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !found {
		return []int64{}, nil
	}

	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return []int64{}, nil
	}

	ids = slices.DeleteFunc(ids, func(id int64) bool { return slices.Contains(c.stale, id) })

	// older writers may have stored duplicates
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

func (c *Cart) save(ctx context.Context, ids []int64) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := c.store.Put(ctx, c.key, raw); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	// ids always come from load, so stale ids are no longer stored
	c.stale = nil
	return nil
}
