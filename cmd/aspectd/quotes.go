package main

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-aspect-cache/aspect"
	"github.com/goliatone/go-aspect-cache/pkg/di"
)

type Quote struct {
	ID     int    `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

func defaultCatalog() map[int]Quote {
	quotes := []Quote{
		{ID: 1, Author: "Ada Lovelace", Text: "The Analytical Engine weaves algebraic patterns."},
		{ID: 2, Author: "Grace Hopper", Text: "It is easier to ask forgiveness than it is to get permission."},
		{ID: 3, Author: "Grace Hopper", Text: "The most dangerous phrase is: we have always done it this way."},
		{ID: 4, Author: "Edsger Dijkstra", Text: "Simplicity is prerequisite for reliability."},
	}

	catalog := make(map[int]Quote, len(quotes))
	for _, q := range quotes {
		catalog[q.ID] = q
	}
	return catalog
}

// quoteService serves a fixed catalog with simulated backend latency. Reads go
// through the container's interceptor.
type quoteService struct {
	catalog map[int]Quote
	latency time.Duration
	fetches atomic.Int64

	get      *aspect.Decorator[Quote]
	getAsync *aspect.Decorator[Quote]
	byAuthor *aspect.Decorator[[]Quote]
}

func newQuoteService(container *di.Container, catalog map[int]Quote, latency time.Duration) *quoteService {
	s := &quoteService{catalog: catalog, latency: latency}
	s.get = di.NewDecorator[Quote](container, aspect.MethodOf(s, "Get"))
	s.getAsync = di.NewDecorator[Quote](container, aspect.MethodOf(s, "GetAsync"))
	s.byAuthor = di.NewDecorator[[]Quote](container, aspect.MethodOf(s, "ByAuthor"), aspect.WithDecoratorTTL(time.Minute))
	return s
}

// Fetches reports how many lookups reached the catalog.
func (s *quoteService) Fetches() int64 {
	return s.fetches.Load()
}

func (s *quoteService) Get(ctx context.Context, id int) (Quote, error) {
	return s.get.Call(ctx, func(ctx context.Context) (Quote, error) {
		return s.fetch(ctx, id)
	}, id)
}

func (s *quoteService) GetAsync(ctx context.Context, id int) *aspect.Future[Quote] {
	return s.getAsync.CallAsync(ctx, func(ctx context.Context) (Quote, error) {
		return s.fetch(ctx, id)
	}, id)
}

func (s *quoteService) ByAuthor(ctx context.Context, author string) ([]Quote, error) {
	return s.byAuthor.Call(ctx, func(ctx context.Context) ([]Quote, error) {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}

		var out []Quote
		for _, q := range s.catalog {
			if strings.EqualFold(q.Author, author) {
				out = append(out, q)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out, nil
	}, strings.ToLower(author))
}

func (s *quoteService) fetch(ctx context.Context, id int) (Quote, error) {
	if err := s.wait(ctx); err != nil {
		return Quote{}, err
	}

	q, ok := s.catalog[id]
	if !ok {
		return Quote{}, goerrors.New("quote not found", goerrors.CategoryNotFound).
			WithMetadata(map[string]any{"quote_id": id})
	}
	return q, nil
}

func (s *quoteService) wait(ctx context.Context) error {
	s.fetches.Add(1)

	timer := time.NewTimer(s.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
