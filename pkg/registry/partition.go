package registry

import (
	"fmt"
	"sort"
)

// Cell is a config cell taking part in a transaction: the index of the input
// or output it sits at together with the range it claims.
type Cell struct {
	Index int
	Range HashRange
}

// String returns the cell as index@range.
func (c Cell) String() string {
	return fmt.Sprintf("%d@%s", c.Index, c.Range)
}

// Transforming is a consumed config cell together with the created config
// cells that claim to derive from it.  With AC for asset cell and CC for
// config cell, the transforms a transaction may perform are:
//
//	insert 1 config cell:  AC + CC -> CC + CC
//	insert N config cells: AC + ... + AC + CC -> CC + CC + ... + CC
//	update a config cell:  CC -> CC
//
// An update is an insert of zero cells.  A transaction may perform several
// transforms at once.
type Transforming struct {
	Input   Cell
	Outputs []Cell
}

// tryPush attaches c to the transform when c lies inside its input range.
func (t *Transforming) tryPush(c Cell) bool {
	if !c.Range.Within(t.Input.Range) {
		return false
	}
	t.Outputs = append(t.Outputs, c)
	return true
}

// sortOutputs orders the outputs by range start.
func (t *Transforming) sortOutputs() {
	sort.SliceStable(t.Outputs, func(i, j int) bool {
		return t.Outputs[i].Range.Current.Less(t.Outputs[j].Range.Current)
	})
}

// Inserted returns the cells an insert creates: every output but the lowest,
// which continues the split cell.
func (t *Transforming) Inserted() []Cell {
	if len(t.Outputs) < 2 {
		return nil
	}
	t.sortOutputs()
	return t.Outputs[1:]
}

// Validate sorts the outputs of the transform by range start and reports
// whether they tile the input range exactly: no gap, no overlap and the same
// endpoints.  A transform without outputs is invalid since every consumed
// range must persist.
func (t *Transforming) Validate() bool {
	if len(t.Outputs) == 0 {
		return false
	}

	t.sortOutputs()

	if t.Input.Range.Current != t.Outputs[0].Range.Current {
		return false
	}
	for i := 1; i < len(t.Outputs); i++ {
		if t.Outputs[i-1].Range.Next != t.Outputs[i].Range.Current {
			return false
		}
	}
	return t.Input.Range.Next == t.Outputs[len(t.Outputs)-1].Range.Next
}

// IsInserting reports whether the transform splits its input, as opposed to
// updating it in place.
func (t *Transforming) IsInserting() bool {
	return len(t.Outputs) > 1
}

// PartitionValidator accumulates the config cells of one transaction and
// proves that the created cells re-partition the consumed ranges.  It is
// built fresh for every validation.
type PartitionValidator struct {
	transforms []*Transforming
}

// NewPartitionValidator returns an empty validator.
func NewPartitionValidator() *PartitionValidator {
	return &PartitionValidator{}
}

// SetInput registers a consumed config cell.  It fails with ErrOverlapPair
// when the cell's range overlaps a range registered before.
func (v *PartitionValidator) SetInput(c Cell) error {
	for _, t := range v.transforms {
		if t.Input.Range.Overlaps(c.Range) {
			str := fmt.Sprintf("input %s overlaps input %s", c,
				t.Input)
			return registryError(ErrOverlapPair, str)
		}
	}
	v.transforms = append(v.transforms, &Transforming{Input: c})
	return nil
}

// SetOutput attaches a created config cell to the consumed cell whose range
// contains it.  It fails with ErrDanglingPair when no consumed range does.
func (v *PartitionValidator) SetOutput(c Cell) error {
	for _, t := range v.transforms {
		if t.tryPush(c) {
			return nil
		}
	}
	str := fmt.Sprintf("output %s lies outside every input range", c)
	return registryError(ErrDanglingPair, str)
}

// Validate reports whether every transform tiles its input range.
func (v *PartitionValidator) Validate() bool {
	for _, t := range v.transforms {
		if !t.Validate() {
			return false
		}
	}
	return true
}

// Transforms returns the accumulated transforms in the order their inputs
// were registered.
func (v *PartitionValidator) Transforms() []*Transforming {
	return v.transforms
}
