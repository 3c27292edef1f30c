package banners

import (
	"math/rand/v2"
)

// Ordering controls how a group's visible entries are ordered.
type Ordering int

// Orderings.
const (
	// Fixed keeps declaration order.
	Fixed Ordering = iota
	// Shuffled yields a fresh uniform permutation on every selection.
	Shuffled
)

// String returns the configuration name of the ordering.
func (o Ordering) String() string {
	switch o {
	case Fixed:
		return "fixed"
	case Shuffled:
		return "shuffled"
	default:
		return "unknown"
	}
}

// Entry is a candidate payload with its visibility.
type Entry[P any] struct {
	ShouldRender bool
	Payload      P
}

// Group is an ordered list of entries.
type Group[P any] struct {
	Name     string
	Ordering Ordering
	Entries  []Entry[P]
}

// Shuffler permutes n elements through swap. *math/rand/v2.Rand
// satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// globalShuffler uses the concurrency-safe top-level math/rand/v2 source.
type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// Select returns the payloads of the visible entries of every group,
// concatenated in group order. Fixed groups keep their entry order;
// shuffled groups are permuted with shuffler, or with the package
// source when shuffler is nil. The result is never nil.
func Select[P any](groups []Group[P], shuffler Shuffler) []P {
	if shuffler == nil {
		shuffler = globalShuffler{}
	}

	n := 0
	for _, g := range groups {
		n += len(g.Entries)
	}
	out := make([]P, 0, n)

	for _, g := range groups {
		start := len(out)
		for _, e := range g.Entries {
			if e.ShouldRender {
				out = append(out, e.Payload)
			}
		}

		if g.Ordering == Shuffled {
			visible := out[start:]
			shuffler.Shuffle(len(visible), func(i, j int) {
				visible[i], visible[j] = visible[j], visible[i]
			})
		}
	}

	return out
}
