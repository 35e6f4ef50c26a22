// Package cache holds the richest known record per contact id.
//
// Summaries arrive in bulk from the list endpoint; full details are fetched
// lazily, one request per id, and once held a detail is never replaced by
// summary data. Each id moves through the states Summary, Fetching and
// Detail. Invalidation bumps a generation so fetches started earlier cannot
// write their result back.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mmcdole/rolo/internal/domain"
)

// State is the fidelity of a cached record
type State int

const (
	StateSummary  State = iota // only summary fields are known
	StateFetching              // summary known, detail request in flight
	StateDetail                // full detail cached
)

func (s State) String() string {
	switch s {
	case StateSummary:
		return "summary"
	case StateFetching:
		return "fetching"
	case StateDetail:
		return "detail"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Record is the best known version of a contact. Phones is nil unless
// State is StateDetail.
type Record struct {
	domain.ContactDetail
	State State
}

type entry struct {
	summary  domain.ContactSummary
	detail   *domain.ContactDetail
	fetching int // callers currently waiting on a fetch
}

// Cache maps contact ids to summaries and details
type Cache struct {
	fetcher domain.ContactFetcher
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	epoch   uint64            // bumped by InvalidateAll
	gens    map[string]uint64 // bumped by Invalidate(id)

	group singleflight.Group
}

// New creates an empty cache that loads details through fetcher
func New(fetcher domain.ContactFetcher, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
		entries: make(map[string]*entry),
		gens:    make(map[string]uint64),
	}
}

// Load stores summaries from the list endpoint. Ids that already hold a
// detail keep it untouched.
func (c *Cache) Load(summaries []domain.ContactSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range summaries {
		e, ok := c.entries[s.ID]
		if !ok {
			c.entries[s.ID] = &entry{summary: s}
			continue
		}
		if e.detail == nil {
			e.summary = s
		}
	}
}

// Get returns the richest record held for id without touching the network
func (c *Cache) Get(id string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return Record{}, false
	}
	return e.record(), true
}

func (e *entry) record() Record {
	if e.detail != nil {
		return Record{ContactDetail: cloneDetail(*e.detail), State: StateDetail}
	}
	state := StateSummary
	if e.fetching > 0 {
		state = StateFetching
	}
	return Record{ContactDetail: domain.ContactDetail{ContactSummary: e.summary}, State: state}
}

// EnsureDetail returns the cached detail for id or fetches it. Concurrent
// calls for the same id share one fetch. A failed fetch leaves any summary
// in place and returns the error to every waiter.
func (c *Cache) EnsureDetail(ctx context.Context, id string) (domain.ContactDetail, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if ok && e.detail != nil {
		d := cloneDetail(*e.detail)
		c.mu.Unlock()
		return d, nil
	}
	if ok {
		e.fetching++
	}
	epoch, gen := c.epoch, c.gens[id]
	c.mu.Unlock()

	if ok {
		defer c.doneFetching(id, e)
	}

	// The key carries the generation so a fetch started after an
	// invalidation does not join one started before it
	key := fmt.Sprintf("%s@%d.%d", id, epoch, gen)
	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.fetch(ctx, id, epoch, gen)
	})
	if shared {
		c.logger.Debug("joined in-flight detail fetch", "id", id)
	}
	if err != nil {
		return domain.ContactDetail{}, err
	}
	return cloneDetail(v.(domain.ContactDetail)), nil
}

func (c *Cache) doneFetching(id string, e *entry) {
	c.mu.Lock()
	if e.fetching > 0 {
		e.fetching--
	}
	c.mu.Unlock()
}

func (c *Cache) fetch(ctx context.Context, id string, epoch, gen uint64) (domain.ContactDetail, error) {
	// A flight for this key may have finished and stored its result
	// between the caller's lookup and its entry into the group
	c.mu.Lock()
	if e, ok := c.entries[id]; ok && e.detail != nil && c.epoch == epoch && c.gens[id] == gen {
		d := cloneDetail(*e.detail)
		c.mu.Unlock()
		return d, nil
	}
	c.mu.Unlock()

	c.logger.Debug("fetching contact detail", "id", id)

	// Outstanding fetches run to completion for every waiter
	detail, err := c.fetcher.GetContact(context.WithoutCancel(ctx), id)
	if err != nil {
		c.logger.Warn("contact detail fetch failed", "id", id, "error", err)
		return domain.ContactDetail{}, fmt.Errorf("fetch contact %s: %w", id, err)
	}
	if detail.Phones == nil {
		detail.Phones = []domain.PhoneNumber{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch || c.gens[id] != gen {
		c.logger.Debug("discarding stale detail", "id", id)
		return *detail, nil
	}

	stored := cloneDetail(*detail)
	e, ok := c.entries[id]
	if !ok {
		e = &entry{}
		c.entries[id] = e
	}
	e.summary = stored.ContactSummary
	e.detail = &stored
	return *detail, nil
}

// Put stores a detail known from another source, such as the response
// to a create or update call
func (c *Cache) Put(detail domain.ContactDetail) {
	stored := cloneDetail(detail)
	if stored.Phones == nil {
		stored.Phones = []domain.PhoneNumber{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Writes from fetches already in flight are now stale
	c.gens[detail.ID]++
	c.entries[detail.ID] = &entry{summary: stored.ContactSummary, detail: &stored}
}

// Invalidate drops the record for id. A fetch already in flight for id
// completes but does not store its result.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, id)
	c.gens[id]++
}

// InvalidateAll drops every record and starts a new epoch
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.gens = make(map[string]uint64)
	c.epoch++
}

// Len returns the number of cached contacts
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Records returns every cached record sorted by name, then id
func (c *Cache) Records() []Record {
	c.mu.Lock()
	records := make([]Record, 0, len(c.entries))
	for _, e := range c.entries {
		records = append(records, e.record())
	}
	c.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		a, b := strings.ToLower(records[i].Name), strings.ToLower(records[j].Name)
		if a != b {
			return a < b
		}
		return records[i].ID < records[j].ID
	})
	return records
}

func cloneDetail(d domain.ContactDetail) domain.ContactDetail {
	if d.Phones != nil {
		d.Phones = append([]domain.PhoneNumber(nil), d.Phones...)
	}
	return d
}
