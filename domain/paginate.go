// ABOUTME: This file implements generic early-exit pagination over sorted sources
// ABOUTME: Pages are walked newest-first and the walk stops once past the window

package domain

import (
	"context"
	"log/slog"
	"time"

	"funnel-dashboard/models"
)

// DefaultMaxPages bounds a pagination walk against broken or unbounded
// cursors. It is a safety limit, not a correctness feature.
const DefaultMaxPages = 50

// Page is one page of records from a source adapter. NextCursor is empty on
// the final page. Total carries the source's global record count when the
// source reports one (meaningful on the first page only).
type Page[T any] struct {
	Records    []T
	NextCursor string
	Total      int
}

// PageFunc retrieves one page. An empty cursor requests the first page.
//
// Precondition: records must arrive in non-increasing order of their recency
// timestamp across the whole walk. The early-exit logic in CollectWindowed is
// only correct under that ordering, so every source adapter must document and
// honor it.
type PageFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// TimeExtractor pulls a timestamp out of a record. ok is false when the
// record has no usable value, in which case the record contributes nothing to
// filtering or early exit.
type TimeExtractor[T any] func(T) (t time.Time, ok bool)

// Collected is the outcome of a pagination walk. Partial is true when a page
// request failed and the walk returned what it had: partial data beats a
// broken dashboard panel, so page failures never propagate to callers.
type Collected[T any] struct {
	Records []T
	Total   int
	Pages   int
	Partial bool
}

// CollectWindowed walks pages and keeps every record whose date falls inside
// the window bounds. Independently, any record whose recency timestamp
// precedes the window start flags the walk to stop — after the current page
// has been fully classified, never mid-page. The walk also stops on a missing
// next cursor or after maxPages pages (DefaultMaxPages when <= 0).
func CollectWindowed[T any](
	ctx context.Context,
	window models.DateWindow,
	fetch PageFunc[T],
	recordDate TimeExtractor[T],
	recency TimeExtractor[T],
	maxPages int,
	logger *slog.Logger,
) Collected[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	lo, _ := window.Bounds()
	var out Collected[T]
	cursor := ""

	for out.Pages < maxPages {
		page, err := fetch(ctx, cursor)
		if err != nil {
			logger.Warn("page fetch failed, returning partial results",
				"window", window.String(),
				"pages_fetched", out.Pages,
				"records_collected", len(out.Records),
				"error", err)
			out.Partial = true
			return out
		}

		if out.Pages == 0 {
			out.Total = page.Total
		}
		out.Pages++

		stop := false
		for _, rec := range page.Records {
			if ts, ok := recency(rec); ok && ts.Before(lo) {
				stop = true
			}
			if ts, ok := recordDate(rec); ok && window.Contains(ts) {
				out.Records = append(out.Records, rec)
			}
		}

		if stop || page.NextCursor == "" || len(page.Records) == 0 {
			return out
		}
		cursor = page.NextCursor
	}

	logger.Warn("pagination stopped at page cap",
		"window", window.String(),
		"max_pages", maxPages,
		"records_collected", len(out.Records))
	return out
}

// CollectAll walks every page without window filtering. It is used for the
// auxiliary lookups (owner maps, pipelines, product and offer catalogs) that
// have no date dimension. The same page cap and fail-soft rules apply.
func CollectAll[T any](ctx context.Context, fetch PageFunc[T], maxPages int, logger *slog.Logger) Collected[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var out Collected[T]
	cursor := ""

	for out.Pages < maxPages {
		page, err := fetch(ctx, cursor)
		if err != nil {
			logger.Warn("page fetch failed, returning partial results",
				"pages_fetched", out.Pages,
				"records_collected", len(out.Records),
				"error", err)
			out.Partial = true
			return out
		}

		if out.Pages == 0 {
			out.Total = page.Total
		}
		out.Pages++
		out.Records = append(out.Records, page.Records...)

		if page.NextCursor == "" || len(page.Records) == 0 {
			return out
		}
		cursor = page.NextCursor
	}

	logger.Warn("pagination stopped at page cap",
		"max_pages", maxPages,
		"records_collected", len(out.Records))
	return out
}
