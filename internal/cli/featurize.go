package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/born-ml/ani/internal/autodiff/ops"
	"github.com/born-ml/ani/internal/batchio"
	"github.com/born-ml/ani/internal/featurizer"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/serialization"
	"github.com/born-ml/ani/internal/tensor"
)

func newFeaturizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "featurize FILE [FILE...]",
		Short: "Featurize molecules from JSON or XYZ files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  featurizeHandler,
	}
	cmd.Flags().String("dtype", "float32", "Floating-point type (float32 or float64)")
	cmd.Flags().String("format", "json", "Output format (json or safetensors)")
	cmd.Flags().StringP("out", "o", "", "Write features to this file instead of stdout")
	cmd.Flags().Bool("indent", false, "Indent the JSON output")
	return cmd
}

func featurizeHandler(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("dtype")
	dtype, ok := tensor.ParseDataType(name)
	if !ok || !dtype.IsFloat() {
		return fmt.Errorf("unsupported dtype %q", name)
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "safetensors" {
		return fmt.Errorf("unsupported format %q", format)
	}
	outPath, _ := cmd.Flags().GetString("out")
	indent, _ := cmd.Flags().GetBool("indent")

	e, err := newEngine(cmd)
	if err != nil {
		return err
	}
	mols, err := batchio.ReadFiles(cmd.Context(), args)
	if err != nil {
		return err
	}

	var fz *featurized
	switch dtype {
	case tensor.Float32:
		fz, err = featurizeMolecules[float32](e, mols)
	default:
		fz, err = featurizeMolecules[float64](e, mols)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	var f *os.File
	if outPath != "" {
		if f, err = os.Create(outPath); err != nil {
			return err
		}
		w = f
	}
	err = writeFeatures(w, fz, format, indent)
	if f != nil {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return err
	}
	slog.Info("featurized", "molecules", len(mols), "atoms", fz.res.NumAtoms, "dtype", dtype, "format", format, "out", outPath)
	return nil
}

func writeFeatures(w io.Writer, fz *featurized, format string, indent bool) error {
	switch format {
	case "safetensors":
		meta, err := fz.metadata()
		if err != nil {
			return err
		}
		return serialization.Write(w, fz.tensors(), meta)
	default:
		doc, err := fz.document()
		if err != nil {
			return err
		}
		return doc.Write(w, indent)
	}
}

// featurized is one featurize call at the tensor level.
type featurized struct {
	engine *featurizer.Engine
	mols   []layout.Molecule
	res    *layout.Resolved
	in     ops.Inputs
	feats  ops.Features
}

func featurizeMolecules[T tensor.Float](e *featurizer.Engine, mols []layout.Molecule) (*featurized, error) {
	b, err := layout.Pack[T](mols)
	if err != nil {
		return nil, err
	}
	res, err := layout.Resolve(b)
	if err != nil {
		return nil, err
	}
	in, err := ops.FromBatch(b)
	if err != nil {
		return nil, err
	}
	feats, err := ops.Featurize(e, in)
	if err != nil {
		return nil, err
	}
	return &featurized{engine: e, mols: mols, res: res, in: in, feats: feats}, nil
}

func (f *featurized) document() (*batchio.Document, error) {
	return batchio.NewDocument(f.engine.Basis().Params().Version, f.mols, f.res, f.feats, f.engine.FeatureSize())
}

// tensors names the batch and its features for SafeTensors output.
func (f *featurized) tensors() map[string]*tensor.RawTensor {
	out := map[string]*tensor.RawTensor{
		"xs":              f.in.Xs,
		"ys":              f.in.Ys,
		"zs":              f.in.Zs,
		"atom_types":      f.in.AtomTypes,
		"mol_offsets":     f.in.MolOffsets,
		"mol_atom_counts": f.in.MolAtomCounts,
		"scatter_idxs":    f.in.ScatterIdx,
		"element_counts":  f.in.ElementCounts,
	}
	for _, el := range layout.Elements() {
		out["features."+el.String()] = f.feats[el]
	}
	return out
}

func (f *featurized) metadata() (map[string]string, error) {
	names := make([]string, len(f.mols))
	for k, m := range f.mols {
		names[k] = m.Name
	}
	namesJSON, err := json.Marshal(names)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"basis":        f.engine.Basis().Params().Version,
		"feature_size": strconv.Itoa(f.engine.FeatureSize()),
		"molecules":    string(namesJSON),
	}, nil
}
