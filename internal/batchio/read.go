// Package batchio reads molecule files and writes featurized batches.
//
// Two input formats are supported:
//
//	JSON: {"molecules":[{"name":"water","atoms":[{"element":"O","xyz":[0,0,0]}, ...]}]}
//	XYZ:  concatenated frames of "<count>", "<comment>", then count lines of "El x y z"
//
// The XYZ comment line becomes the molecule name.
package batchio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/ani/internal/layout"
)

// ErrFormat is returned for malformed molecule files.
var ErrFormat = errors.New("malformed molecule file")

// maxPrealloc bounds the atoms reserved from an XYZ count line before any
// atom line has been read.
const maxPrealloc = 1024

type jsonFile struct {
	Molecules []jsonMolecule `json:"molecules"`
}

type jsonMolecule struct {
	Name  string     `json:"name"`
	Atoms []jsonAtom `json:"atoms"`
}

type jsonAtom struct {
	Element string    `json:"element"`
	XYZ     []float64 `json:"xyz"`
}

// ReadJSON reads molecules from the JSON format.
func ReadJSON(r io.Reader) ([]layout.Molecule, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var f jsonFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	mols := make([]layout.Molecule, len(f.Molecules))
	for k, jm := range f.Molecules {
		mols[k] = layout.Molecule{Name: jm.Name, Atoms: make([]layout.Atom, len(jm.Atoms))}
		for j, ja := range jm.Atoms {
			el, err := layout.ParseElement(ja.Element)
			if err != nil {
				return nil, fmt.Errorf("%w: molecule %d atom %d: %w", ErrFormat, k, j, err)
			}
			if len(ja.XYZ) != 3 {
				return nil, fmt.Errorf("%w: molecule %d atom %d: xyz has %d values, want 3", ErrFormat, k, j, len(ja.XYZ))
			}
			a := layout.Atom{Element: el, Pos: [3]float64(ja.XYZ)}
			if err := checkFinite(a.Pos); err != nil {
				return nil, fmt.Errorf("%w: molecule %d atom %d: %w", ErrFormat, k, j, err)
			}
			mols[k].Atoms[j] = a
		}
	}
	return mols, nil
}

// ReadXYZ reads molecules from concatenated XYZ frames.
// Blank lines between frames are skipped; columns after z are ignored.
func ReadXYZ(r io.Reader) ([]layout.Molecule, error) {
	sc := bufio.NewScanner(r)
	line := 0
	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		line++
		return sc.Text(), true
	}

	var mols []layout.Molecule
	for {
		header, ok := next()
		if !ok {
			break
		}
		if strings.TrimSpace(header) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(header))
		if err != nil || n < 0 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%w: line %d: atom count %q", ErrFormat, line, header)
		}
		comment, ok := next()
		if !ok {
			return nil, fmt.Errorf("%w: line %d: frame ends before comment line", ErrFormat, line)
		}

		mol := layout.Molecule{Name: strings.TrimSpace(comment), Atoms: make([]layout.Atom, 0, min(n, maxPrealloc))}
		for len(mol.Atoms) < n {
			text, ok := next()
			if !ok {
				return nil, fmt.Errorf("%w: line %d: frame has %d of %d atoms", ErrFormat, line, len(mol.Atoms), n)
			}
			atom, err := parseXYZAtom(text)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrFormat, line, err)
			}
			mol.Atoms = append(mol.Atoms, atom)
		}
		mols = append(mols, mol)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return mols, nil
}

func parseXYZAtom(text string) (layout.Atom, error) {
	fields := strings.Fields(text)
	if len(fields) < 4 {
		return layout.Atom{}, fmt.Errorf("want \"El x y z\", got %q", text)
	}
	el, err := layout.ParseElement(fields[0])
	if err != nil {
		return layout.Atom{}, err
	}
	var a layout.Atom
	a.Element = el
	for c := range 3 {
		if a.Pos[c], err = strconv.ParseFloat(fields[c+1], 64); err != nil {
			return layout.Atom{}, err
		}
	}
	if err := checkFinite(a.Pos); err != nil {
		return layout.Atom{}, err
	}
	return a, nil
}

func checkFinite(pos [3]float64) error {
	for _, v := range pos {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite coordinate %v", v)
		}
	}
	return nil
}

// Read detects the format from the first non-space byte: '{' is JSON, anything else XYZ.
func Read(r io.Reader) ([]layout.Molecule, error) {
	br := bufio.NewReader(r)
	for {
		b, err := br.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		if !bytes.ContainsAny(b, " \t\r\n") {
			break
		}
		if _, err := br.ReadByte(); err != nil {
			return nil, err
		}
	}
	if b, _ := br.Peek(1); b[0] == '{' {
		return ReadJSON(br)
	}
	return ReadXYZ(br)
}

// ReadFile reads one molecule file. The .json and .xyz extensions select the
// format; other files are sniffed.
func ReadFile(path string) ([]layout.Molecule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var mols []layout.Molecule
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		mols, err = ReadJSON(f)
	case ".xyz":
		mols, err = ReadXYZ(f)
	default:
		mols, err = Read(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mols, nil
}

// ReadFiles reads several files concurrently and concatenates their
// molecules in argument order.
func ReadFiles(ctx context.Context, paths []string) ([]layout.Molecule, error) {
	parts := make([][]layout.Molecule, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			mols, err := ReadFile(path)
			parts[i] = mols
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.Concat(parts...), nil
}
