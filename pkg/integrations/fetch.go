package integrations

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

// CollectionFetch names one provider collection and the function that fetches
// and maps it. The int return is the number of objects that failed to map.
type CollectionFetch struct {
	Name  string
	Fetch func(ctx context.Context) ([]Item, int, error)
}

// FetchAll runs the collection fetches concurrently and merges the results in
// collection order. A collection that errors is skipped and logged; it never
// aborts the other collections.
func FetchAll(ctx context.Context, logger ectologger.Logger, integration string, collections []CollectionFetch) ([]Item, int) {
	type result struct {
		items  []Item
		failed int
	}

	results := make([]result, len(collections))

	var wg sync.WaitGroup
	for i, collection := range collections {
		wg.Add(1)
		go func(i int, collection CollectionFetch) {
			defer wg.Done()

			start := time.Now()
			items, failed, err := collection.Fetch(ctx)
			metrics.ItemFetchDuration.WithLabelValues(integration, collection.Name).Observe(time.Since(start).Seconds())

			if err != nil {
				logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"integration": integration,
					"collection":  collection.Name,
				}).Warn("Collection fetch failed, skipping")
				return
			}

			results[i] = result{items: items, failed: failed}
		}(i, collection)
	}
	wg.Wait()

	var (
		items  []Item
		failed int
	)
	for i, res := range results {
		items = append(items, res.items...)
		failed += res.failed

		metrics.ItemsFetchedTotal.WithLabelValues(integration, collections[i].Name).Add(float64(len(res.items)))
		if res.failed > 0 {
			metrics.ItemMappingErrorsTotal.WithLabelValues(integration, collections[i].Name).Add(float64(res.failed))
		}
	}

	return items, failed
}

// BearerHeaders builds the authorization headers for a provider API call
func BearerHeaders(accessToken string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + accessToken,
		"Content-Type":  "application/json",
	}
}

// ParseTime parses an RFC 3339 timestamp, returning nil when the value is
// empty or unparseable. Provider payloads routinely omit these fields.
func ParseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &parsed
}

// StringPtr returns a pointer to the value, or nil for the empty string
func StringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
