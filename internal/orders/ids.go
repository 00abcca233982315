package orders

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// IDLength is the length of every order id.
const IDLength = 32

// IDAllocator hands out order ids that are unique within the process.
type IDAllocator interface {
	Allocate() string
}

// RegistryAllocator remembers every id it issued and regenerates on a
// collision. It gives no guarantee across processes; the store's
// create-if-absent covers that case.
type RegistryAllocator struct {
	mu   sync.Mutex
	seen map[string]struct{}
	gen  func() string
}

func NewRegistryAllocator() *RegistryAllocator {
	return &RegistryAllocator{
		seen: make(map[string]struct{}),
		gen:  randomID,
	}
}

func (a *RegistryAllocator) Allocate() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	for {
		id := a.gen()
		if _, dup := a.seen[id]; dup {
			continue
		}
		a.seen[id] = struct{}{}
		return id
	}
}

func randomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
