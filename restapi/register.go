package restapi

import (
	"fmt"
	"sort"

	"github.com/gin-gonic/gin"
)

// HTTPVerb enumerates supported HTTP operations.
type HTTPVerb int

const (
	// Unknown represents an unspecified HTTP verb.
	Unknown HTTPVerb = iota
	// GET lists or retrieves resources.
	GET
	// DELETE removes resources.
	DELETE
	// POST creates resources or invokes actions.
	POST
	// PUT replaces resources.
	PUT
)

func (v HTTPVerb) String() string {
	switch v {
	case GET:
		return "GET"
	case DELETE:
		return "DELETE"
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	}
	return "UNKNOWN"
}

// RestMethod describes a REST route handler.
type RestMethod struct {
	Verb    HTTPVerb
	Path    string
	Handler func(c *gin.Context)
}

// Methods is a registry of REST methods keyed by verb and path.
type Methods struct {
	methods map[string]RestMethod
}

// NewMethods returns an empty registry.
func NewMethods() *Methods {
	return &Methods{methods: make(map[string]RestMethod)}
}

// RegisterMethod builds a RestMethod and registers it using Register.
func (m *Methods) RegisterMethod(verb HTTPVerb, path string, h func(c *gin.Context)) error {
	return m.Register(RestMethod{
		Verb:    verb,
		Path:    path,
		Handler: h,
	})
}

// Register inserts a RestMethod preventing duplicates.
func (m *Methods) Register(rm RestMethod) error {
	key := fmt.Sprintf("%s_%s", rm.Verb, rm.Path)
	if _, exists := m.methods[key]; exists {
		return fmt.Errorf("can't add %s, an existing handler in REST method map exists", key)
	}
	m.methods[key] = rm
	return nil
}

// All returns the registered methods ordered by path then verb.
func (m *Methods) All() []RestMethod {
	r := make([]RestMethod, 0, len(m.methods))
	for _, rm := range m.methods {
		r = append(r, rm)
	}
	sort.Slice(r, func(i, j int) bool {
		if r[i].Path != r[j].Path {
			return r[i].Path < r[j].Path
		}
		return r[i].Verb < r[j].Verb
	})
	return r
}

// mount adds every method to group, each wrapped by guard.
func (m *Methods) mount(group *gin.RouterGroup, guards ...gin.HandlerFunc) {
	for _, rm := range m.All() {
		chain := append(append([]gin.HandlerFunc{}, guards...), rm.Handler)
		switch rm.Verb {
		case GET:
			group.GET(rm.Path, chain...)
		case DELETE:
			group.DELETE(rm.Path, chain...)
		case POST:
			group.POST(rm.Path, chain...)
		case PUT:
			group.PUT(rm.Path, chain...)
		default:
			panic(fmt.Sprintf("HTTP verb %d not supported", rm.Verb))
		}
	}
}
