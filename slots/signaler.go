package slots

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/magiccloud/cqldata"
)

// Slot is invoked with the node it was signaled on and may rewrite that node in place.
type Slot func(ctx context.Context, s *Signaler, input *Node) error

// Signaler is a registry of named slots. It is safe for concurrent use.
type Signaler struct {
	mux   sync.RWMutex
	slots map[string]Slot
}

// NewSignaler returns a Signaler with the eval slot registered.
func NewSignaler() *Signaler {
	s := &Signaler{
		slots: make(map[string]Slot),
	}
	s.Register("eval", eval)
	return s
}

// Register adds or replaces the slot named name.
func (s *Signaler) Register(name string, slot Slot) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.slots[name] = slot
}

// Signal invokes the slot named name on input.
func (s *Signaler) Signal(ctx context.Context, name string, input *Node) error {
	s.mux.RLock()
	slot, ok := s.slots[name]
	s.mux.RUnlock()
	if !ok {
		return cqldata.Errorf(cqldata.NotFound, "no slot named '%s'", name)
	}
	return slot(ctx, s, input)
}

// Names returns the registered slot names, sorted.
func (s *Signaler) Names() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	r := make([]string, 0, len(s.slots))
	for k := range s.slots {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

// eval signals every child of input in order. Children whose name begins with "." are data
// and are skipped.
func eval(ctx context.Context, s *Signaler, input *Node) error {
	for _, c := range input.Children {
		if strings.HasPrefix(c.Name, ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Signal(ctx, c.Name, c); err != nil {
			return err
		}
	}
	return nil
}
