package registry

import "golang.org/x/sync/singleflight"

// flightGroup collapses identical in-flight upstream calls. Overlapping
// aggregation cycles (concurrent requests during a cache-miss window each
// run their own cycle) ask for the same branch, tag, manifest and npm
// documents; deduping them keeps rate-limit pressure down without changing
// results, since every probe is idempotent.
type flightGroup struct {
	g singleflight.Group
}

func (g *flightGroup) Do(key string, fn func() (any, error)) (any, error) {
	v, err, _ := g.g.Do(key, fn)
	return v, err
}
