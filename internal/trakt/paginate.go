// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package trakt

import (
	"context"
	"fmt"
	"maps"

	json "github.com/goccy/go-json"
	"github.com/sourcegraph/conc/pool"

	"github.com/tomtom215/traktrelay/internal/models"
)

// maxConcurrentPages bounds the fan-out of a single auto-paginated fetch so
// one large collection cannot monopolize the upstream rate budget.
const maxConcurrentPages = 4

// fetchAll fetches every page of a paginated collection and concatenates
// the decoded items in page order. Page 1 is fetched first to learn the
// page count; pages 2..N are then fetched concurrently and recombined by
// page index, never by completion order.
//
// limit caps the total item count: the last page fetched is
// min(pageCount, ceil(limit/pageSize)) and the concatenation is truncated
// to limit. A non-positive limit fetches everything.
func fetchAll[T any](ctx context.Context, c *Client, template string, params map[string]any, limit int) ([]T, models.Pagination, error) {
	firstParams := maps.Clone(params)
	if firstParams == nil {
		firstParams = make(map[string]any)
	}
	firstParams["page"] = 1

	body, pg, err := c.get(ctx, c.buildURL(template, firstParams))
	if err != nil {
		return nil, models.Pagination{}, err
	}

	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, models.Pagination{}, fmt.Errorf("decode page 1: %w", err)
	}

	lastPage := pg.PageCount
	if limit > 0 && pg.Limit > 0 {
		byLimit := (limit + pg.Limit - 1) / pg.Limit
		if byLimit < lastPage {
			lastPage = byLimit
		}
	}
	if lastPage <= 1 {
		return truncate(items, limit), pg, nil
	}

	// Pages 2..N land in fixed slots so recombination is by page number,
	// not arrival order.
	pages := make([][]T, lastPage+1)
	pages[1] = items

	p := pool.New().WithContext(ctx).WithMaxGoroutines(maxConcurrentPages).WithCancelOnError()
	for page := 2; page <= lastPage; page++ {
		p.Go(func(ctx context.Context) error {
			pageParams := maps.Clone(firstParams)
			pageParams["page"] = page

			body, _, err := c.get(ctx, c.buildURL(template, pageParams))
			if err != nil {
				return fmt.Errorf("fetch page %d: %w", page, err)
			}
			var pageItems []T
			if err := json.Unmarshal(body, &pageItems); err != nil {
				return fmt.Errorf("decode page %d: %w", page, err)
			}
			pages[page] = pageItems
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, models.Pagination{}, err
	}

	all := pages[1]
	for page := 2; page <= lastPage; page++ {
		all = append(all, pages[page]...)
	}
	return truncate(all, limit), pg, nil
}

// fetchOne fetches a single non-paginated resource.
func fetchOne[T any](ctx context.Context, c *Client, template string, params map[string]any) (T, error) {
	var out T
	body, _, err := c.get(ctx, c.buildURL(template, params))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
