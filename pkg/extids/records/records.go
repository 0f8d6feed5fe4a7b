// Package records is the bridge to the host's business records. Record types
// adopt external ids by registering a Source; the registry resolves
// (type, id) handles in bulk and degrades gracefully when a type or row is gone.
package records

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mikepea/extids/pkg/extids/errs"
)

// Record is an opaque handle on a host record
type Record struct {
	Type        string `json:"type"`
	ID          uint   `json:"id"`
	DisplayName string `json:"display_name"`
	CompanyID   *uint  `json:"company_id,omitempty"`
}

// Source loads records of a single type
type Source interface {
	// Lookup returns the records that still exist, keyed by id. Missing ids are
	// simply absent from the map.
	Lookup(ctx context.Context, ids []uint) (map[uint]Record, error)
}

// Status describes how a (type, id) reference resolved
type Status int

const (
	Live Status = iota
	Deleted
	Invalid
)

func (s Status) String() string {
	switch s {
	case Live:
		return "live"
	case Deleted:
		return "deleted"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// Resolution is the outcome of resolving one reference
type Resolution struct {
	Record
	Status Status
}

// Label returns the display name, or a sentinel when the record cannot be resolved
func (r Resolution) Label() string {
	switch r.Status {
	case Deleted:
		return DeletedLabel(r.Type)
	case Invalid:
		return InvalidLabel(r.Type)
	default:
		return r.DisplayName
	}
}

// DeletedLabel is shown for a reference whose row no longer exists
func DeletedLabel(recordType string) string {
	return fmt.Sprintf("[Deleted %s]", recordType)
}

// InvalidLabel is shown for a reference whose type is not registered
func InvalidLabel(recordType string) string {
	return fmt.Sprintf("[Invalid %s]", recordType)
}

// Registry holds the record types that adopted external ids.
// It is populated at startup and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	types   []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds or replaces the source for a record type
func (r *Registry) Register(recordType string, src Source) error {
	if recordType == "" {
		return &errs.ValidationError{Field: "record_type", Message: "must not be empty"}
	}
	if src == nil {
		return fmt.Errorf("record type %q: nil source", recordType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[recordType] = src
	r.types = nil
	return nil
}

// Types returns the registered record types, sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	cached := r.types
	r.mu.RUnlock()
	if cached != nil {
		return append([]string(nil), cached...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.types == nil {
		types := make([]string, 0, len(r.sources))
		for t := range r.sources {
			types = append(types, t)
		}
		sort.Strings(types)
		r.types = types
	}
	return append([]string(nil), r.types...)
}

// Has reports whether recordType is registered
func (r *Registry) Has(recordType string) bool {
	_, ok := r.source(recordType)
	return ok
}

func (r *Registry) source(recordType string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[recordType]
	return src, ok
}

// Get returns the record, or nil if the row is gone.
// An unregistered type yields UnknownRecordTypeError.
func (r *Registry) Get(ctx context.Context, recordType string, id uint) (*Record, error) {
	src, ok := r.source(recordType)
	if !ok {
		return nil, &errs.UnknownRecordTypeError{Type: recordType}
	}
	found, err := src.Lookup(ctx, []uint{id})
	if err != nil {
		return nil, fmt.Errorf("lookup %s %d: %w", recordType, id, err)
	}
	rec, ok := found[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Exists reports whether the record is still present
func (r *Registry) Exists(ctx context.Context, recordType string, id uint) (bool, error) {
	rec, err := r.Get(ctx, recordType, id)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// DisplayName returns the record's name or the matching sentinel label
func (r *Registry) DisplayName(ctx context.Context, recordType string, id uint) (string, error) {
	res, err := r.Resolve(ctx, recordType, []uint{id})
	if err != nil {
		return "", err
	}
	return res[id].Label(), nil
}

// Company returns the record's company, or nil when it has none or cannot be resolved
func (r *Registry) Company(ctx context.Context, recordType string, id uint) (*uint, error) {
	rec, err := r.Get(ctx, recordType, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.CompanyID, nil
}

// Resolve looks up many records of one type in a single call. Every requested
// id gets a Resolution; unknown types resolve as Invalid rather than failing.
func (r *Registry) Resolve(ctx context.Context, recordType string, ids []uint) (map[uint]Resolution, error) {
	out := make(map[uint]Resolution, len(ids))
	src, ok := r.source(recordType)
	if !ok {
		for _, id := range ids {
			out[id] = Resolution{Record: Record{Type: recordType, ID: id}, Status: Invalid}
		}
		return out, nil
	}

	found, err := src.Lookup(ctx, dedupe(ids))
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", recordType, err)
	}
	for _, id := range ids {
		if rec, ok := found[id]; ok {
			rec.Type = recordType
			rec.ID = id
			out[id] = Resolution{Record: rec, Status: Live}
		} else {
			out[id] = Resolution{Record: Record{Type: recordType, ID: id}, Status: Deleted}
		}
	}
	return out, nil
}

// Ref is a (type, id) pair
type Ref struct {
	Type string
	ID   uint
}

// ResolveAll resolves a mixed batch with one Lookup per record type
func (r *Registry) ResolveAll(ctx context.Context, refs []Ref) (map[Ref]Resolution, error) {
	byType := make(map[string][]uint)
	for _, ref := range refs {
		byType[ref.Type] = append(byType[ref.Type], ref.ID)
	}

	out := make(map[Ref]Resolution, len(refs))
	for recordType, ids := range byType {
		res, err := r.Resolve(ctx, recordType, ids)
		if err != nil {
			return nil, err
		}
		for id, resolution := range res {
			out[Ref{Type: recordType, ID: id}] = resolution
		}
	}
	return out, nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
