package layout

import (
	"fmt"
	"math"

	"github.com/born-ml/ani/internal/tensor"
)

// Atom is one atom of a host-side molecule description.
type Atom struct {
	Element Element
	Pos     [3]float64
}

// Molecule is an ordered list of atoms.
type Molecule struct {
	Name  string
	Atoms []Atom
}

// Pack flattens molecules into a Batch. Molecules are laid out in order,
// and within each element class rows are assigned in atom order.
func Pack[T tensor.Float](mols []Molecule) (*Batch[T], error) {
	total := 0
	for _, m := range mols {
		total += len(m.Atoms)
	}
	if total > math.MaxInt32 {
		return nil, fmt.Errorf("pack: %d atoms exceed int32 indexing", total)
	}

	b := &Batch[T]{
		Xs:            make([]T, 0, total),
		Ys:            make([]T, 0, total),
		Zs:            make([]T, 0, total),
		AtomTypes:     make([]int32, 0, total),
		ScatterIdx:    make([]int32, 0, total),
		MolOffsets:    make([]int32, 0, len(mols)),
		MolAtomCounts: make([]int32, 0, len(mols)),
	}

	for k, m := range mols {
		b.MolOffsets = append(b.MolOffsets, int32(len(b.Xs)))
		b.MolAtomCounts = append(b.MolAtomCounts, int32(len(m.Atoms)))
		for j, a := range m.Atoms {
			if !a.Element.Valid() {
				return nil, fmt.Errorf("pack: molecule %d atom %d: %w", k, j,
					rangeErr("atom_types", j, "unknown element %d", int32(a.Element)))
			}
			b.Xs = append(b.Xs, T(a.Pos[0]))
			b.Ys = append(b.Ys, T(a.Pos[1]))
			b.Zs = append(b.Zs, T(a.Pos[2]))
			b.AtomTypes = append(b.AtomTypes, int32(a.Element))
			b.ScatterIdx = append(b.ScatterIdx, b.ElementCounts[a.Element])
			b.ElementCounts[a.Element]++
		}
	}

	return b, nil
}

// Clone returns a deep copy of the batch.
func (b *Batch[T]) Clone() *Batch[T] {
	return &Batch[T]{
		Xs:            append([]T(nil), b.Xs...),
		Ys:            append([]T(nil), b.Ys...),
		Zs:            append([]T(nil), b.Zs...),
		AtomTypes:     append([]int32(nil), b.AtomTypes...),
		MolOffsets:    append([]int32(nil), b.MolOffsets...),
		MolAtomCounts: append([]int32(nil), b.MolAtomCounts...),
		ScatterIdx:    append([]int32(nil), b.ScatterIdx...),
		ElementCounts: b.ElementCounts,
	}
}
