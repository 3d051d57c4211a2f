package aspect

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// MethodStats is a snapshot of the interceptor counters of one method.
type MethodStats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Writes      int64 `json:"writes"`
	StoreErrors int64 `json:"store_errors"`
}

type methodCounters struct {
	hits        *xsync.Counter
	misses      *xsync.Counter
	writes      *xsync.Counter
	storeErrors *xsync.Counter
}

func (ic *Interceptor) counters(method string) *methodCounters {
	c, _ := ic.stats.LoadOrCompute(method, func() *methodCounters {
		return &methodCounters{
			hits:        xsync.NewCounter(),
			misses:      xsync.NewCounter(),
			writes:      xsync.NewCounter(),
			storeErrors: xsync.NewCounter(),
		}
	})
	return c
}

// Stats returns the counters of every method seen so far, keyed by method name.
func (ic *Interceptor) Stats() map[string]MethodStats {
	out := make(map[string]MethodStats, ic.stats.Size())
	ic.stats.Range(func(method string, c *methodCounters) bool {
		out[method] = MethodStats{
			Hits:        c.hits.Value(),
			Misses:      c.misses.Value(),
			Writes:      c.writes.Value(),
			StoreErrors: c.storeErrors.Value(),
		}
		return true
	})
	return out
}
