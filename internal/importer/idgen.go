package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/worshipplan/server/internal/domain"
)

// Allocator hands out human-readable identifiers ("SV001", "S042", ...)
// that are monotonically increasing per (tenant, kind) and never reused.
// The counter is seeded once per (tenant, kind) by scanning the repository
// for the current maximum, then incremented under a mutex, so sequential
// creations within a batch and concurrent allocations within a process can
// never collide. Deployments that run several importer processes against
// one tenant must add their own mutual exclusion around the batch.
type Allocator struct {
	repo Repository

	mu   sync.Mutex
	next map[allocKey]int
}

type allocKey struct {
	tenant domain.Tenant
	kind   domain.EntityKind
}

// NewAllocator returns an allocator backed by the given repository.
func NewAllocator(repo Repository) *Allocator {
	return &Allocator{
		repo: repo,
		next: make(map[allocKey]int),
	}
}

// Next allocates the next identifier for the tenant and kind.
func (a *Allocator) Next(ctx context.Context, tenant domain.Tenant, kind domain.EntityKind) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := allocKey{tenant: tenant, kind: kind}
	n, ok := a.next[key]
	if !ok {
		max, err := a.repo.MaxIdentifier(ctx, tenant, kind)
		if err != nil {
			return "", fmt.Errorf("seed %s identifier counter: %w", kind, err)
		}
		n = max + 1
	}
	a.next[key] = n + 1

	return FormatIdentifier(kind, n), nil
}

// Observe advances the counter past an identifier that was created
// outside the allocator, such as a source-supplied song ID. Without this
// a later Next could hand out an identifier an earlier row of the same
// batch already used. Identifiers of other kinds or shapes are ignored,
// as is an unseeded counter: its seeding scan will see the persisted
// record anyway.
func (a *Allocator) Observe(tenant domain.Tenant, kind domain.EntityKind, id string) {
	n, ok := IdentifierNumber(kind, id)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := allocKey{tenant: tenant, kind: kind}
	if next, seeded := a.next[key]; seeded && n >= next {
		a.next[key] = n + 1
	}
}

// FormatIdentifier renders an identifier number in the kind's external
// format: prefix plus a zero-padded number ("SV001"). The number widens
// naturally past three digits ("SV1000").
func FormatIdentifier(kind domain.EntityKind, n int) string {
	return fmt.Sprintf("%s%03d", kind.IDPrefix(), n)
}

// IdentifierNumber extracts the numeric suffix from an identifier of the
// kind's prefix. Returns false for identifiers of other kinds or with
// non-numeric suffixes. Repository implementations use this for the
// max-scan that seeds the Allocator.
func IdentifierNumber(kind domain.EntityKind, id string) (int, bool) {
	prefix := kind.IDPrefix()
	if prefix == "" || !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	suffix := id[len(prefix):]
	if suffix == "" {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
