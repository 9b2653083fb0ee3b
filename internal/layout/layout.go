// Package layout resolves the flat batch layout shared by every featurizer kernel:
// which molecule an atom belongs to, and which row of which per-element buffer it owns.
package layout

import (
	"slices"

	"github.com/born-ml/ani/internal/tensor"
)

// Batch holds the flat inputs of one featurizer call.
//
// Molecule k owns atoms [MolOffsets[k], MolOffsets[k]+MolAtomCounts[k]).
// Atom i writes row ScatterIdx[i] of the buffer for element AtomTypes[i].
// ElementCounts is host memory: it sizes the outputs before any kernel runs.
type Batch[T tensor.Float] struct {
	Xs, Ys, Zs    []T
	AtomTypes     []int32
	MolOffsets    []int32
	MolAtomCounts []int32
	ScatterIdx    []int32
	ElementCounts [NumElements]int32
}

// NumAtoms returns the number of atoms in the batch.
func (b *Batch[T]) NumAtoms() int {
	return len(b.Xs)
}

// NumMolecules returns the number of molecules in the batch.
func (b *Batch[T]) NumMolecules() int {
	return len(b.MolOffsets)
}

// Range is a contiguous span of atoms.
type Range struct {
	Offset int
	Count  int
}

// End returns one past the last atom of the range.
func (r Range) End() int {
	return r.Offset + r.Count
}

// Resolved is the validated lookup structure for one batch.
// It owns copies of the type and scatter arrays it validated.
// It is read-only once built and safe for concurrent use.
type Resolved struct {
	NumAtoms      int
	Molecules     []Range
	ElementCounts [NumElements]int

	molOf []int32
	types []int32
	rows  []int32
}

// Resolve validates the batch layout and builds the atom lookups.
// It never touches coordinates beyond checking their lengths.
func Resolve[T tensor.Float](b *Batch[T]) (*Resolved, error) {
	n := len(b.Xs)
	if len(b.Ys) != n || len(b.Zs) != n {
		return nil, shapeErr("coords", -1, "xs/ys/zs lengths differ: %d/%d/%d", len(b.Xs), len(b.Ys), len(b.Zs))
	}
	return resolve(n, b.AtomTypes, b.MolOffsets, b.MolAtomCounts, b.ScatterIdx, b.ElementCounts)
}

func resolve(n int, types, offsets, counts, scatter []int32, elementCounts [NumElements]int32) (*Resolved, error) {
	if len(types) != n {
		return nil, shapeErr("atom_types", -1, "length %d, want %d atoms", len(types), n)
	}
	if len(scatter) != n {
		return nil, shapeErr("scatter_idxs", -1, "length %d, want %d atoms", len(scatter), n)
	}
	if len(offsets) != len(counts) {
		return nil, shapeErr("mol_offsets", -1, "%d offsets for %d atom counts", len(offsets), len(counts))
	}

	r := &Resolved{
		NumAtoms:  n,
		Molecules: make([]Range, len(offsets)),
		molOf:     make([]int32, n),
		types:     slices.Clone(types),
		rows:      slices.Clone(scatter),
	}

	total := 0
	for e, c := range elementCounts {
		if c < 0 {
			return nil, shapeErr("element_counts", e, "negative count %d", c)
		}
		r.ElementCounts[e] = int(c)
		total += int(c)
	}
	if total != n {
		return nil, shapeErr("element_counts", -1, "sum %d != total atoms %d", total, n)
	}

	next := 0
	for k := range offsets {
		off, cnt := int(offsets[k]), int(counts[k])
		if cnt < 0 {
			return nil, shapeErr("mol_atom_counts", k, "negative count %d", cnt)
		}
		if off != next {
			return nil, shapeErr("mol_offsets", k, "molecule starts at %d, previous molecule ends at %d", off, next)
		}
		if off+cnt > n {
			return nil, shapeErr("mol_atom_counts", k, "molecule [%d,%d) exceeds %d atoms", off, off+cnt, n)
		}
		r.Molecules[k] = Range{Offset: off, Count: cnt}
		for i := off; i < off+cnt; i++ {
			r.molOf[i] = int32(k)
		}
		next = off + cnt
	}
	if next != n {
		return nil, shapeErr("mol_atom_counts", -1, "molecules cover %d of %d atoms", next, n)
	}

	var claimed [NumElements][]bool
	for e := range claimed {
		claimed[e] = make([]bool, r.ElementCounts[e])
	}
	for i := 0; i < n; i++ {
		e := Element(types[i])
		if !e.Valid() {
			return nil, rangeErr("atom_types", i, "type %d not in [0,%d)", types[i], NumElements)
		}
		row := int(scatter[i])
		if row < 0 || row >= r.ElementCounts[e] {
			return nil, rangeErr("scatter_idxs", i, "row %d not in [0,%d) for %s", row, r.ElementCounts[e], e)
		}
		if claimed[e][row] {
			return nil, rangeErr("scatter_idxs", i, "row %d of %s already claimed", row, e)
		}
		claimed[e][row] = true
	}

	return r, nil
}

// MoleculeOf returns the atom range of the molecule that owns atom i.
func (r *Resolved) MoleculeOf(i int) Range {
	return r.Molecules[r.molOf[i]]
}

// Slot returns the element buffer and row atom i writes.
func (r *Resolved) Slot(i int) (Element, int) {
	return Element(r.types[i]), int(r.rows[i])
}

// Type returns the element class of atom i.
func (r *Resolved) Type(i int) Element {
	return Element(r.types[i])
}

// BufferLen returns the length of the flat buffer for element e
// when each row holds rowSize values.
func (r *Resolved) BufferLen(e Element, rowSize int) int {
	return r.ElementCounts[e] * rowSize
}

// CheckRows verifies that bufs are the per-element buffers of this layout,
// each holding ElementCounts[e] rows of rowSize values.
func CheckRows[T tensor.Float](r *Resolved, field string, bufs [NumElements][]T, rowSize int) error {
	for e := range bufs {
		if want := r.BufferLen(Element(e), rowSize); len(bufs[e]) != want {
			return shapeErr(field, e, "%s buffer has %d values, want %d (%d rows x %d)",
				Element(e), len(bufs[e]), want, r.ElementCounts[e], rowSize)
		}
	}
	return nil
}

// CheckAtoms verifies that bufs are per-atom buffers of this layout.
func CheckAtoms[T tensor.Float](r *Resolved, field string, bufs ...[]T) error {
	for k, b := range bufs {
		if len(b) != r.NumAtoms {
			return shapeErr(field, k, "length %d, want %d atoms", len(b), r.NumAtoms)
		}
	}
	return nil
}
