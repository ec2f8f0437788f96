package cqldata

import (
	"context"
	"strings"
)

// Scope is the two level multi-tenancy key prepended to every table's partition key.
type Scope struct {
	Tenant   string
	Cloudlet string
}

func (s Scope) String() string {
	return s.Tenant + "/" + s.Cloudlet
}

// RootResolver supplies the active tenant root folder and relativizes paths against it.
type RootResolver interface {
	// RootFolder is the absolute root of the tenant, e.g. "/acme/prod/".
	RootFolder() string
	// DynamicFiles is the absolute root of the tenant's dynamic (user) files.
	DynamicFiles() string
	// RelativePath returns path relative to DynamicFiles, beginning with "/".
	RelativePath(path string) string
}

// ResolveScope derives tenant and cloudlet from a root folder: the first non-empty segment
// is the tenant, the remaining segments rejoined with "/" are the cloudlet.
func ResolveScope(rootFolder string) (Scope, error) {
	segments := splitSegments(rootFolder)
	if len(segments) == 0 {
		return Scope{}, Errorf(ConfigurationError, "root folder '%s' has no tenant segment", rootFolder)
	}
	if len(segments) == 1 {
		return Scope{}, Errorf(ConfigurationError, "root folder '%s' has no cloudlet segment", rootFolder)
	}
	return Scope{
		Tenant:   segments[0],
		Cloudlet: strings.Join(segments[1:], "/"),
	}, nil
}

// ScopeOf resolves the scope of the resolver's root folder.
func ScopeOf(r RootResolver) (Scope, error) {
	return ResolveScope(r.RootFolder())
}

type rootKey struct{}

// WithRoot returns a copy of ctx carrying the root resolver of the calling tenant.
func WithRoot(ctx context.Context, r RootResolver) context.Context {
	return context.WithValue(ctx, rootKey{}, r)
}

// RootOf returns the root resolver carried by ctx, or fallback when ctx carries none.
// Services resolve it once per call so one process can serve many tenants.
func RootOf(ctx context.Context, fallback RootResolver) RootResolver {
	if r, ok := ctx.Value(rootKey{}).(RootResolver); ok && r != nil {
		return r
	}
	return fallback
}

type staticRootResolver struct {
	root         string
	dynamicFiles string
}

// NewRootResolver returns a RootResolver with a fixed root folder. dynamicFiles defaults to root.
func NewRootResolver(root string, dynamicFiles string) RootResolver {
	root = NormalizeFolder(root)
	if dynamicFiles == "" {
		dynamicFiles = root
	}
	return &staticRootResolver{
		root:         root,
		dynamicFiles: NormalizeFolder(dynamicFiles),
	}
}

func (r *staticRootResolver) RootFolder() string {
	return r.root
}

func (r *staticRootResolver) DynamicFiles() string {
	return r.dynamicFiles
}

func (r *staticRootResolver) RelativePath(path string) string {
	return "/" + strings.TrimPrefix(path, r.dynamicFiles)
}

func splitSegments(path string) []string {
	parts := strings.Split(path, "/")
	r := parts[:0]
	for _, p := range parts {
		if p != "" {
			r = append(r, p)
		}
	}
	return r
}
