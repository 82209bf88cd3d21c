// Package registry bootstraps the in-code step catalog against a
// persisted catalog table at process startup, reconciling the two and
// exposing a read-only id -> variant lookup for the remainder of the
// process lifetime.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smilemakc/printflow/internal/catalog"
)

// CatalogStore is the C6 collaborator the registry reconciles against.
type CatalogStore interface {
	CatalogIds(ctx context.Context) ([]catalog.KindId, error)
	InsertCatalogId(ctx context.Context, id catalog.KindId) error
	// RemoveCatalogId fails with ErrReferentialIntegrity if any persisted
	// workflow still references id.
	RemoveCatalogId(ctx context.Context, id catalog.KindId) error
}

// ErrReferentialIntegrity is returned by CatalogStore.RemoveCatalogId when a
// live workflow still references the kind id being retired.
var ErrReferentialIntegrity = fmt.Errorf("registry: referential integrity violation")

// CatalogDrift is returned by Bootstrap when reconciliation can't proceed
// safely: a persisted kind id would need to be removed, but a workflow
// still references it.
type CatalogDrift struct {
	ID    catalog.KindId
	Cause error
}

func (e *CatalogDrift) Error() string {
	return fmt.Sprintf("registry: catalog drift removing kind %d: %v", e.ID, e.Cause)
}

func (e *CatalogDrift) Unwrap() error { return e.Cause }

// Registry owns the id -> variant lookup for the lifetime of the process.
// It must not be used before Bootstrap has completed successfully.
type Registry struct {
	store     CatalogStore
	bootstrap bool
	kinds     map[catalog.KindId]bool
}

// New constructs a Registry bound to store. Call Bootstrap before use.
func New(store CatalogStore) *Registry {
	return &Registry{store: store}
}

// Bootstrap reconciles the in-code catalog with the persisted catalog
// table: it inserts ids the code introduced and removes ids the code no
// longer declares, failing with CatalogDrift if a removal would violate
// referential integrity. Idempotent: a second call is a no-op.
func (r *Registry) Bootstrap(ctx context.Context) error {
	if r.bootstrap {
		return nil
	}

	persisted, err := r.store.CatalogIds(ctx)
	if err != nil {
		return fmt.Errorf("registry: failed to load persisted catalog ids: %w", err)
	}
	persistedSet := make(map[catalog.KindId]bool, len(persisted))
	for _, id := range persisted {
		persistedSet[id] = true
	}

	codeSet := make(map[catalog.KindId]bool)
	for _, kind := range catalog.AllKinds() {
		codeSet[kind] = true
		if !persistedSet[kind] {
			if err := r.store.InsertCatalogId(ctx, kind); err != nil {
				return fmt.Errorf("registry: failed to insert catalog id %d: %w", kind, err)
			}
			slog.Default().Info("registry: inserted new catalog kind", "kind", kind)
		}
	}

	for id := range persistedSet {
		if codeSet[id] {
			continue
		}
		if err := r.store.RemoveCatalogId(ctx, id); err != nil {
			slog.Default().Warn("registry: catalog drift, kind still referenced", "kind", id, "error", err)
			return &CatalogDrift{ID: id, Cause: err}
		}
		slog.Default().Info("registry: removed retired catalog kind", "kind", id)
	}

	r.kinds = codeSet
	r.bootstrap = true
	slog.Default().Info("registry: bootstrap complete", "kind_count", len(codeSet))
	return nil
}

// VariantOf resolves a kind id after Bootstrap has completed. Constant
// time. Returns UnknownKindId for ids outside the reconciled catalog.
func (r *Registry) VariantOf(id catalog.KindId) (catalog.KindId, error) {
	if !r.bootstrap {
		return 0, fmt.Errorf("registry: VariantOf called before Bootstrap completed")
	}
	if !r.kinds[id] {
		return 0, &catalog.UnknownKindId{ID: id}
	}
	return id, nil
}

// Bootstrapped reports whether Bootstrap has completed successfully.
func (r *Registry) Bootstrapped() bool {
	return r.bootstrap
}
