package app

import (
	"fmt"
	"regexp"

	"github.com/iov-one/fedescrow"
	"github.com/iov-one/fedescrow/errors"
)

var isRoute = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`).MatchString

// QueryHandler answers a lookup of a single key. The result must be
// serializable to JSON.
type QueryHandler func(db fedescrow.ReadOnlyKVStore, key []byte) (interface{}, error)

// QueryRouter dispatches queries by path.
type QueryRouter struct {
	routes map[string]QueryHandler
}

func NewQueryRouter() *QueryRouter {
	return &QueryRouter{routes: make(map[string]QueryHandler)}
}

// Register panics if the path is invalid or already taken.
func (r *QueryRouter) Register(path string, h QueryHandler) {
	if !isRoute(path) {
		panic(fmt.Sprintf("invalid query path %q", path))
	}
	if _, ok := r.routes[path]; ok {
		panic(fmt.Sprintf("query path %q already registered", path))
	}
	r.routes[path] = h
}

// Handler returns the handler registered for the path or an ErrNotFound.
func (r *QueryRouter) Handler(path string) (QueryHandler, error) {
	h, ok := r.routes[path]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "query path %q", path)
	}
	return h, nil
}
