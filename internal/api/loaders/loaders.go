package loaders

import (
	"context"
	"fmt"
	"net/http"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
)

// Loaders batches the lookups of the items and services that child links
// point at. A Loaders value belongs to one request.
type Loaders struct {
	ItemLoader    *dataloader.Loader[int64, *entities.Item]
	ServiceLoader *dataloader.Loader[int64, *entities.Service]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(store repositories.CatalogStore) *Loaders {
	return &Loaders{
		ItemLoader: dataloader.NewBatchedLoader(batchByID("item", store.Items().GetByIDs),
			dataloader.WithCache[int64, *entities.Item](&dataloader.NoCache[int64, *entities.Item]{})),
		ServiceLoader: dataloader.NewBatchedLoader(batchByID("service", store.Services().GetByIDs),
			dataloader.WithCache[int64, *entities.Service](&dataloader.NoCache[int64, *entities.Service]{})),
	}
}

func batchByID[T entities.CatalogEntry](kind string, fetch func(ctx context.Context, ids []int64) ([]T, error)) dataloader.BatchFunc[int64, T] {
	return func(ctx context.Context, keys []int64) []*dataloader.Result[T] {
		results := make([]*dataloader.Result[T], len(keys))
		rows, err := fetch(ctx, keys)

		byID := make(map[int64]T, len(rows))
		if err == nil {
			for _, row := range rows {
				byID[row.Base().ID] = row
			}
		}

		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[T]{Error: err}
			} else if row, ok := byID[key]; ok {
				results[i] = &dataloader.Result[T]{Data: row}
			} else {
				results[i] = &dataloader.Result[T]{Error: fmt.Errorf("%s %d not found", kind, key)}
			}
		}
		return results
	}
}

// ResolveChildren fills the Item and Service of every child link of
// services. All references are fetched in one batch per kind.
func (l *Loaders) ResolveChildren(ctx context.Context, services []*entities.Service) error {
	var (
		itemLinks    []*entities.ServiceItem
		itemIDs      []int64
		serviceLinks []*entities.ServiceService
		serviceIDs   []int64
	)
	for _, svc := range services {
		for _, link := range svc.Items {
			itemLinks = append(itemLinks, link)
			itemIDs = append(itemIDs, link.ItemID)
		}
		for _, link := range svc.Services {
			serviceLinks = append(serviceLinks, link)
			serviceIDs = append(serviceIDs, link.ServiceID)
		}
	}

	if len(itemIDs) > 0 {
		items, errs := l.ItemLoader.LoadMany(ctx, itemIDs)()
		if err := firstError(errs); err != nil {
			return err
		}
		for i, link := range itemLinks {
			link.Item = items[i]
		}
	}
	if len(serviceIDs) > 0 {
		subServices, errs := l.ServiceLoader.LoadMany(ctx, serviceIDs)()
		if err := firstError(errs); err != nil {
			return err
		}
		for i, link := range serviceLinks {
			link.Service = subServices[i]
		}
	}
	return nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// For returns the loaders attached to ctx, or nil
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches fresh loaders to every request
func Middleware(store repositories.CatalogStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithLoaders(r.Context(), NewLoaders(store))))
		})
	}
}
