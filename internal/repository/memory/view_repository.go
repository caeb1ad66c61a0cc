package memory

import (
	"sync"
	"time"

	"psvs-console-be/pkg/timeline"

	"github.com/patrickmn/go-cache"
)

// ViewRepository holds at most one open timeline per practitioner. Views
// expire after a period without use; expiry and removal close the view.
type ViewRepository struct {
	cache *cache.Cache
	mu    sync.Mutex
}

// EvictFunc runs after a view has been removed and closed.
type EvictFunc func(practitionerID string, view *timeline.View)

func NewViewRepository(ttl time.Duration, onEvict EvictFunc) *ViewRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := cache.New(ttl, time.Minute)
	c.OnEvicted(func(key string, v interface{}) {
		view, ok := v.(*timeline.View)
		if !ok {
			return
		}
		view.Close()
		if onEvict != nil {
			onEvict(key, view)
		}
	})
	return &ViewRepository{cache: c}
}

// Save registers view for the practitioner and returns the view it replaced,
// already closed, if any.
func (r *ViewRepository) Save(practitionerID string, view *timeline.View) *timeline.View {
	r.mu.Lock()
	defer r.mu.Unlock()

	var previous *timeline.View
	if x, found := r.cache.Get(practitionerID); found {
		previous = x.(*timeline.View)
	}
	// Set does not fire OnEvicted for overwritten entries.
	r.cache.Set(practitionerID, view, cache.DefaultExpiration)
	if previous != nil && previous != view {
		previous.Close()
		return previous
	}
	return nil
}

func (r *ViewRepository) Get(practitionerID string) (*timeline.View, bool) {
	if x, found := r.cache.Get(practitionerID); found {
		return x.(*timeline.View), true
	}
	return nil, false
}

// Touch extends the view's lifetime. Every practitioner action calls it.
func (r *ViewRepository) Touch(practitionerID string) (*timeline.View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	x, found := r.cache.Get(practitionerID)
	if !found {
		return nil, false
	}
	r.cache.Set(practitionerID, x, cache.DefaultExpiration)
	return x.(*timeline.View), true
}

// Delete removes and closes the practitioner's view.
func (r *ViewRepository) Delete(practitionerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found := r.cache.Get(practitionerID); !found {
		return false
	}
	r.cache.Delete(practitionerID)
	return true
}

// FindByClient returns every open view on the client's timeline, keyed by
// practitioner.
func (r *ViewRepository) FindByClient(clientID string) map[string]*timeline.View {
	out := make(map[string]*timeline.View)
	for key, item := range r.cache.Items() {
		view, ok := item.Object.(*timeline.View)
		if ok && view.ClientID() == clientID {
			out[key] = view
		}
	}
	return out
}

func (r *ViewRepository) Count() int {
	return r.cache.ItemCount()
}

// Flush closes every view.
func (r *ViewRepository) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.cache.Items() {
		r.cache.Delete(key)
	}
}
