package cache

import (
	"context"

	"registri/internal/books"
	"registri/internal/core"
)

// CategoryCache fronts a CategoryLister. Entries are keyed by tenant; the
// credential is not part of the key.
type CategoryCache struct {
	source books.CategoryLister
	store  Cache[[]core.Category]
}

func NewCategoryCache(source books.CategoryLister, store Cache[[]core.Category]) *CategoryCache {
	return &CategoryCache{source: source, store: store}
}

func (c *CategoryCache) ListCategories(ctx context.Context, scope core.Scope) ([]core.Category, error) {
	key := categoryKey(scope)
	if cats, ok := c.store.Get(key); ok {
		return append([]core.Category(nil), cats...), nil
	}

	cats, err := c.source.ListCategories(ctx, scope)
	if err != nil {
		return nil, err
	}
	c.store.Set(key, append([]core.Category(nil), cats...))
	return cats, nil
}

// Invalidate drops the tenant's cached list.
func (c *CategoryCache) Invalidate(scope core.Scope) {
	c.store.Delete(categoryKey(scope))
}

func categoryKey(scope core.Scope) string {
	return "categories:" + scope.TenantID
}
