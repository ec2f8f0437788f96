// Package mixed routes file, folder and stream calls to one of several backends based on the
// first segment of the tenant relative path, e.g. "/system/..." to the local disk and everything
// else to the CQL store.
package mixed

import (
	"context"
	"slices"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/magiccloud/cqldata"
)

// Backend names.
const (
	Local = "local"
	CQL   = "cql"
)

// Route maps a path namespace (first segment of the tenant relative path) to a backend.
type Route struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Backend   string `yaml:"backend" json:"backend"`
	ReadOnly  bool   `yaml:"read_only" json:"read_only"`
}

// DefaultRoutes sends "system" and "misc" to the local disk.
func DefaultRoutes() []Route {
	return []Route{
		{Namespace: "system", Backend: Local},
		{Namespace: "misc", Backend: Local},
	}
}

// Router resolves the backend of a path. It is immutable after construction.
type Router struct {
	root     cqldata.RootResolver
	routes   map[string]Route
	fallback string
}

// NewRouter returns a router sending unmatched namespaces to fallback. A namespace listed
// twice is a configuration error. Paths are relativized against the root resolver carried
// by the call context, or root when there is none.
func NewRouter(root cqldata.RootResolver, routes []Route, fallback string) (*Router, error) {
	if fallback == "" {
		return nil, cqldata.Errorf(cqldata.ConfigurationError, "routing needs a fallback backend")
	}
	r := &Router{
		root:     root,
		routes:   make(map[string]Route, len(routes)),
		fallback: fallback,
	}
	for _, route := range routes {
		if route.Namespace == "" || route.Backend == "" {
			return nil, cqldata.Errorf(cqldata.ConfigurationError, "route %+v needs a namespace and a backend", route)
		}
		if _, ok := r.routes[route.Namespace]; ok {
			return nil, cqldata.Errorf(cqldata.ConfigurationError, "namespace '%s' is routed twice", route.Namespace)
		}
		r.routes[route.Namespace] = route
	}
	return r, nil
}

// Resolve returns the backend of path. A path outside the caller's root is a precondition
// error and a write to a read only namespace fails with a ReadOnly error.
func (r *Router) Resolve(ctx context.Context, path string, write bool) (string, error) {
	rel, err := cqldata.Relativize(cqldata.RootOf(ctx, r.root), path)
	if err != nil {
		return "", err
	}
	route, ok := r.routes[cqldata.FirstSegment(rel)]
	if !ok {
		return r.fallback, nil
	}
	if write && route.ReadOnly {
		return "", cqldata.Errorf(cqldata.ReadOnly, "'%s' is read only", path)
	}
	return route.Backend, nil
}

// IsRoot reports whether path is the tenant root folder, whose listings span every backend.
func (r *Router) IsRoot(ctx context.Context, path string) bool {
	rel, err := cqldata.RelativizeFolder(cqldata.RootOf(ctx, r.root), path)
	return err == nil && rel == "/"
}

// Backends returns the distinct backends the router can resolve to, sorted.
func (r *Router) Backends() []string {
	seen := map[string]bool{r.fallback: true}
	names := []string{r.fallback}
	for _, route := range r.routes {
		if !seen[route.Backend] {
			seen[route.Backend] = true
			names = append(names, route.Backend)
		}
	}
	sort.Strings(names)
	return names
}

// backendsOf checks that every routed backend has an implementation.
func backendsOf[T any](r *Router, impls map[string]T) (map[string]T, error) {
	for _, name := range r.Backends() {
		if _, ok := impls[name]; !ok {
			return nil, cqldata.Errorf(cqldata.ConfigurationError, "no implementation for backend '%s'", name)
		}
	}
	return impls, nil
}

// mergeAll runs list against every backend concurrently and merges the results.
func mergeAll[S any, T any](ctx context.Context, r *Router, impls map[string]S, list func(context.Context, S) ([]T, error)) ([]T, error) {
	names := r.Backends()
	results := make([][]T, len(names))
	eg, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		eg.Go(func() error {
			items, err := list(ctx, impls[name])
			results[i] = items
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	var merged []T
	for _, items := range results {
		merged = append(merged, items...)
	}
	return merged, nil
}

func sortedUnique(items []string) []string {
	slices.Sort(items)
	return slices.Compact(items)
}
