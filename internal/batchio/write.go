package batchio

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/tensor"
)

// Document is the JSON form of one featurized batch.
type Document struct {
	Basis       string                 `json:"basis"`
	DType       string                 `json:"dtype"`
	FeatureSize int                    `json:"feature_size"`
	Molecules   []MoleculeRows         `json:"molecules"`
	Features    map[string][][]float64 `json:"features"`
}

// MoleculeRows lists where each atom of a molecule landed.
type MoleculeRows struct {
	Name  string    `json:"name,omitempty"`
	Atoms []AtomRow `json:"atoms"`
}

// AtomRow is one atom's row in the features of its element.
type AtomRow struct {
	Element string `json:"element"`
	Row     int    `json:"row"`
}

// NewDocument builds a document from per-element feature tensors of shape
// [count, featureSize]. mols must be the molecules the batch was packed from.
func NewDocument(basis string, mols []layout.Molecule, res *layout.Resolved, feats [layout.NumElements]*tensor.RawTensor, featureSize int) (*Document, error) {
	if len(mols) != len(res.Molecules) {
		return nil, fmt.Errorf("document: %d molecules for a batch of %d", len(mols), len(res.Molecules))
	}

	doc := &Document{
		Basis:       basis,
		DType:       feats[0].DType().String(),
		FeatureSize: featureSize,
		Molecules:   make([]MoleculeRows, len(mols)),
		Features:    make(map[string][][]float64, layout.NumElements),
	}

	for k, m := range mols {
		rng := res.Molecules[k]
		if len(m.Atoms) != rng.Count {
			return nil, fmt.Errorf("document: molecule %d has %d atoms, batch has %d", k, len(m.Atoms), rng.Count)
		}
		rows := MoleculeRows{Name: m.Name, Atoms: make([]AtomRow, rng.Count)}
		for a := range rows.Atoms {
			el, row := res.Slot(rng.Offset + a)
			rows.Atoms[a] = AtomRow{Element: el.String(), Row: row}
		}
		doc.Molecules[k] = rows
	}

	for _, el := range layout.Elements() {
		t := feats[el]
		if want := res.ElementCounts[el] * featureSize; t.NumElements() != want {
			return nil, fmt.Errorf("document: %s features have %d values, want %d", el, t.NumElements(), want)
		}
		flat, err := float64s(t)
		if err != nil {
			return nil, fmt.Errorf("document: %s features: %w", el, err)
		}
		rows := make([][]float64, res.ElementCounts[el])
		for r := range rows {
			rows[r] = flat[r*featureSize : (r+1)*featureSize]
		}
		doc.Features[el.String()] = rows
	}
	return doc, nil
}

func float64s(t *tensor.RawTensor) ([]float64, error) {
	switch t.DType() {
	case tensor.Float64:
		return t.AsFloat64(), nil
	case tensor.Float32:
		src := t.AsFloat32()
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %s", t.DType())
	}
}

// Write encodes the document as JSON.
func (d *Document) Write(w io.Writer, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(d)
}
