package registry

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
)

// HashRange is the half-open interval [Current, Next) of the hash space a
// config cell is authoritative for.  Current is always below Next.
type HashRange struct {
	Current ckb.Hash
	Next    ckb.Hash
}

// UniversalRange covers the whole hash space but the all-ones hash, the
// range a new registry starts with.
var UniversalRange = HashRange{Current: ckb.ZeroHash, Next: ckb.MaxHash}

// NewHashRange returns the range [current, next), failing with
// ErrInvalidLinkedList unless current < next.
func NewHashRange(current, next ckb.Hash) (HashRange, error) {
	if !current.Less(next) {
		str := fmt.Sprintf("range start %s is not below its end %s",
			current, next)
		return HashRange{}, registryError(ErrInvalidLinkedList, str)
	}
	return HashRange{Current: current, Next: next}, nil
}

// Within reports whether r lies entirely inside outer.
func (r HashRange) Within(outer HashRange) bool {
	return outer.Current.Compare(r.Current) <= 0 &&
		r.Current.Less(r.Next) &&
		r.Next.Compare(outer.Next) <= 0
}

// Overlaps reports whether r and other share any hash.  Two ranges are
// disjoint when one ends at or before the start of the other.
func (r HashRange) Overlaps(other HashRange) bool {
	if r.Next.Compare(other.Current) <= 0 {
		return false
	}
	if other.Next.Compare(r.Current) <= 0 {
		return false
	}
	return true
}

// Contains reports whether h lies in r.
func (r HashRange) Contains(h ckb.Hash) bool {
	return r.Current.Compare(h) <= 0 && h.Less(r.Next)
}

// String returns the range in interval notation.
func (r HashRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Current, r.Next)
}
