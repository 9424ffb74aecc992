package engine

import (
	"context"
	"os/exec"
	"regexp"
	"sync"
)

// versionedName matches names like "python@3.13".
var versionedName = regexp.MustCompile(`^([a-zA-Z0-9_.+-]+)@([0-9][0-9.]*)$`)

// ExecLookup answers system package queries by searching PATH for a matching
// executable. Versioned names are normalized: "python@3.13" is looked up as
// "python3.13" and then as "python".
type ExecLookup struct{}

// Has implements SystemPackages.
func (ExecLookup) Has(_ context.Context, name string) (bool, error) {
	for _, candidate := range lookupCandidates(name) {
		if _, err := exec.LookPath(candidate); err == nil {
			return true, nil
		}
	}
	return false, nil
}

// lookupCandidates returns the executable names to probe for a package name.
func lookupCandidates(name string) []string {
	if m := versionedName.FindStringSubmatch(name); m != nil {
		return []string{m[1] + m[2], m[1]}
	}
	return []string{name}
}

// MapSystemPackages is a fixed availability set, used in tests and for
// --assume-present style overrides.
type MapSystemPackages map[string]bool

// Has implements SystemPackages.
func (m MapSystemPackages) Has(_ context.Context, name string) (bool, error) {
	return m[name], nil
}

// cachingSystemPackages memoizes availability answers. A fresh cache is
// created per resolution call; answers are never carried across invocations
// because availability can change between runs.
type cachingSystemPackages struct {
	inner SystemPackages

	mu    sync.Mutex
	known map[string]bool
}

func newCachingSystemPackages(inner SystemPackages) *cachingSystemPackages {
	return &cachingSystemPackages{
		inner: inner,
		known: make(map[string]bool),
	}
}

// Has implements SystemPackages.
func (c *cachingSystemPackages) Has(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	if v, ok := c.known[name]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.inner.Has(ctx, name)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.known[name] = v
	c.mu.Unlock()
	return v, nil
}
