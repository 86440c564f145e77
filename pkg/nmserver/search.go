package nmserver

import (
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/docspp/docspp/pkg/ssreg"
)

// fanOutSearch queries every active Storage Server for keyword in
// parallel. Each SS's own pkg/blobstore.Search already lower-cases and
// de-duplicates within itself; this layer de-duplicates across SSes (a
// replica and its primary both answering the same filename).
func fanOutSearch(sss []*ssreg.Record, keyword string) []string {
	var (
		mu      sync.Mutex
		matches = make(map[string]bool)
		g       errgroup.Group
	)
	for _, rec := range sss {
		rec := rec
		g.Go(func() error {
			_, lines, err := adminCmdBlock(rec, "SEARCH "+keyword)
			if err != nil {
				return nil // an unreachable SS just contributes nothing
			}
			mu.Lock()
			for _, l := range lines {
				if name, ok := stripArrow(l); ok {
					matches[name] = true
				}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(matches))
	for name := range matches {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func stripArrow(line string) (string, bool) {
	const prefix = "--> "
	if len(line) > len(prefix) && line[:len(prefix)] == prefix {
		return line[len(prefix):], true
	}
	return "", false
}
