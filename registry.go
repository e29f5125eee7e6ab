package mt

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Registry maps logical content type names to the numeric IDs the CMS
// assigned them within one site. It starts from a static table and acts
// as a cache over the live CMS: Refresh repopulates it from the
// contentTypes endpoint, and Lookup falls through to a dynamic
// resolution when the table is stale.
//
// The mapping is injective: no two names may share an ID.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]string
	byID   map[string]string
}

// NewRegistry builds a Registry from a name→ID table. Names are matched
// case-insensitively. Returns an error when two names map to one ID.
func NewRegistry(table map[string]string) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]string, len(table)),
		byID:   make(map[string]string, len(table)),
	}
	for name, id := range table {
		key := strings.ToUpper(name)
		if other, ok := r.byID[id]; ok {
			return nil, fmt.Errorf("mt: content type ID %s assigned to both %s and %s", id, other, key)
		}
		r.byName[key] = id
		r.byID[id] = key
	}
	return r, nil
}

// DefaultRegistry returns the static table for the site's known content
// types.
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(map[string]string{
		"PRODUCTS": "2",
		"CASES":    "3",
	})
	return r
}

// IDFor returns the content type ID for a logical name. Fails with an
// UnknownContentTypeError when the name is not in the table.
func (r *Registry) IDFor(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.byName[strings.ToUpper(name)]; ok {
		return id, nil
	}
	return "", &UnknownContentTypeError{Name: name}
}

// NameFor returns the logical name for an ID. Many CMS-side IDs are
// irrelevant to the application, so absence returns ok=false rather
// than an error.
func (r *Registry) NameFor(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byID[id]
	return name, ok
}

// Lookup resolves a logical name to an ID, consulting the static table
// first and the live CMS on a miss. A dynamic hit is stored so later
// lookups stay local. When neither source knows the name, the CMS is
// authoritative and an UnknownContentTypeError is returned.
func (r *Registry) Lookup(ctx context.Context, client *Client, name string) (string, error) {
	if id, err := r.IDFor(name); err == nil {
		return id, nil
	}

	id, ok, err := client.ResolveContentTypeID(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &UnknownContentTypeError{Name: name}
	}

	r.store(name, id)
	return id, nil
}

// Refresh replaces the table with the live CMS mapping. Existing static
// entries are overwritten; the CMS wins when the two disagree.
func (r *Registry) Refresh(ctx context.Context, client *Client) error {
	types, err := client.ListContentTypes(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName = make(map[string]string, len(types))
	r.byID = make(map[string]string, len(types))
	for _, ct := range types {
		key := strings.ToUpper(ct.Name)
		r.byName[key] = ct.ID
		r.byID[ct.ID] = key
	}
	return nil
}

func (r *Registry) store(name, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToUpper(name)
	r.byName[key] = id
	r.byID[id] = key
}
