package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"finishtime/bfsp/internal/models"
	"finishtime/bfsp/internal/storage"
)

// Entry is one per-coverage-key outcome recorded in the run report.
type Entry struct {
	Key   models.CoverageKey
	Link  string
	Error string
}

// Report accumulates per-key outcomes for one batch run. Appends are
// mutex-guarded so worker-pool runs can share a single report; ordering
// across workers is not observable and not required.
type Report struct {
	mu         sync.Mutex
	Successful []Entry
	Failed     []Entry
}

func NewReport() *Report {
	return &Report{}
}

func (r *Report) AddSuccess(key models.CoverageKey, link string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Successful = append(r.Successful, Entry{Key: key, Link: link})
}

func (r *Report) AddFailure(key models.CoverageKey, link string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = append(r.Failed, Entry{Key: key, Link: link, Error: err.Error()})
}

// Render produces the human-readable report: successes grouped by
// country and type, failures grouped by error message, then the
// detailed failure list.
func (r *Report) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	b.WriteString("Download Report\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "\nTotal files processed: %d\n", len(r.Successful)+len(r.Failed))
	fmt.Fprintf(&b, "Successful downloads: %d\n", len(r.Successful))
	fmt.Fprintf(&b, "Failed downloads: %d\n", len(r.Failed))

	b.WriteString("\nSuccessful Downloads by Country/Type:\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")

	byCountry := make(map[string]map[models.MarketType]int)
	for _, e := range r.Successful {
		if byCountry[e.Key.Country] == nil {
			byCountry[e.Key.Country] = make(map[models.MarketType]int)
		}
		byCountry[e.Key.Country][e.Key.Type]++
	}
	for _, country := range sortedKeys(byCountry) {
		fmt.Fprintf(&b, "\n%s:\n", strings.ToUpper(country))
		types := byCountry[country]
		for _, mt := range models.AllMarketTypes {
			if n, ok := types[mt]; ok {
				fmt.Fprintf(&b, "  - %s: %d files\n", mt, n)
			}
		}
	}

	if len(r.Failed) > 0 {
		byError := make(map[string]int)
		for _, e := range r.Failed {
			byError[e.Error]++
		}

		b.WriteString("\nFailures by Error Type:\n")
		b.WriteString(strings.Repeat("-", 40) + "\n")
		for _, msg := range sortedKeys(byError) {
			fmt.Fprintf(&b, "\n%s: %d occurrences\n", msg, byError[msg])
		}

		b.WriteString("\nDetailed Failure List:\n")
		b.WriteString(strings.Repeat("-", 40) + "\n")
		for _, e := range r.Failed {
			fmt.Fprintf(&b, "\n%s/%s/%s\n", e.Key.Country, e.Key.Type, e.Key.Date.Format("2006-01-02"))
			fmt.Fprintf(&b, "Error: %s\n", e.Error)
		}
	}

	return b.String()
}

// Persist stores the rendered report under the report prefix and returns
// the object key. Persistence failure is the caller's cue to emit the
// report to the log as a last resort.
func (r *Report) Persist(ctx context.Context, store storage.ObjectStore, prefix string) (string, error) {
	key := fmt.Sprintf("%srefresh_%s.txt", prefix, time.Now().UTC().Format("20060102_150405"))
	if err := store.Put(ctx, key, []byte(r.Render()), "text/plain"); err != nil {
		return "", err
	}
	return key, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
