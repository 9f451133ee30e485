// Package hostselect picks which ensemble host a connecting attempt
// should dial next, deprioritizing hosts that have recently dropped
// the connection. It backs the randomize_hosts behavior of a parsed
// connection string (spec.md section 6).
package hostselect

import (
	"math/rand"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultFailureMemory = 64

// Picker orders a fixed host list, skipping hosts seen in its bounded
// failure LRU when an alternative is available.
type Picker struct {
	hosts      []string
	randomize  bool
	recentFail *lru.Cache[string, struct{}]
}

// New constructs a Picker over hosts. If randomize is false, hosts keep
// their given order within the healthy and the recently-failed groups;
// recently-failed hosts still come last.
func New(hosts []string, randomize bool) *Picker {
	cache, _ := lru.New[string, struct{}](defaultFailureMemory)
	cp := make([]string, len(hosts))
	copy(cp, hosts)
	return &Picker{hosts: cp, randomize: randomize, recentFail: cache}
}

// MarkFailed records host as recently failed, so the next Order call
// places it last among otherwise-equal candidates.
func (p *Picker) MarkFailed(host string) {
	p.recentFail.Add(host, struct{}{})
}

// Order returns the host list for a fresh connecting attempt: healthy
// hosts first (shuffled if randomize is set), recently-failed hosts
// appended at the end rather than dropped, since a host that failed
// once may already have recovered by the time every other host has
// also been tried.
func (p *Picker) Order() []string {
	healthy := make([]string, 0, len(p.hosts))
	failed := make([]string, 0)
	for _, h := range p.hosts {
		if p.recentFail.Contains(h) {
			failed = append(failed, h)
		} else {
			healthy = append(healthy, h)
		}
	}
	if p.randomize {
		rand.Shuffle(len(healthy), func(i, j int) { healthy[i], healthy[j] = healthy[j], healthy[i] })
		rand.Shuffle(len(failed), func(i, j int) { failed[i], failed[j] = failed[j], failed[i] })
	}
	return append(healthy, failed...)
}
