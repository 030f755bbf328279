// Package tenant resolves the short tenant codes analyze/recommend/
// execute accept (spec §6) to the warehouse view identifier the Metric
// Store Adapter queries against. The registry is built once at startup
// from the operator-supplied tenant list and is immutable thereafter:
// reads are lock-free after construction, so there's no hot path
// contention between concurrent analyze() calls for different tenants.
package tenant

import (
	"fmt"

	adierrors "github.com/adinsight/adinsight/internal/adierrors"
)

// Record is one tenant's warehouse binding.
type Record struct {
	Code         string // short code callers pass, e.g. "acme"
	WarehouseView string // fully-qualified view the Metric Store Adapter queries
	DisplayName  string
}

// Registry is a process-wide, read-only lookup from tenant code to
// Record. Safe for concurrent reads from any number of goroutines; it
// is never mutated after New returns.
type Registry struct {
	byCode map[string]Record
}

// New builds a Registry from the given records. Duplicate codes are
// rejected so startup fails loudly rather than silently shadowing a
// tenant's warehouse view.
func New(records []Record) (*Registry, error) {
	byCode := make(map[string]Record, len(records))
	for _, r := range records {
		if r.Code == "" {
			return nil, fmt.Errorf("tenant record missing code: %+v", r)
		}
		if _, exists := byCode[r.Code]; exists {
			return nil, fmt.Errorf("duplicate tenant code %q", r.Code)
		}
		byCode[r.Code] = r
	}
	return &Registry{byCode: byCode}, nil
}

// Resolve looks up a tenant by its short code.
func (r *Registry) Resolve(code string) (Record, error) {
	rec, ok := r.byCode[code]
	if !ok {
		return Record{}, adierrors.UnknownTenant(code)
	}
	return rec, nil
}

// Count returns the number of registered tenants.
func (r *Registry) Count() int {
	return len(r.byCode)
}

// Codes returns all registered tenant codes, in no particular order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.byCode))
	for c := range r.byCode {
		codes = append(codes, c)
	}
	return codes
}
