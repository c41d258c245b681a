/*
Copyright © 2019 the MetPost authors.
This file is part of MetPost.

MetPost is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

MetPost is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with MetPost.  If not, see <http://www.gnu.org/licenses/>.
*/

package nbhood

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/metpost"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Weights specifies how the categories of a masking coordinate are weighted
// when the coordinate is collapsed. It is one of UniformWeights,
// ScalarWeights or FieldWeights.
type Weights interface {
	isWeights()
}

// UniformWeights weights every category equally.
type UniformWeights struct{}

// ScalarWeights weights every category by the same constant value.
type ScalarWeights float64

// FieldWeights weights categories with a per-cell weights field. The field
// must have either the full shape of the field being collapsed, or exactly
// the masking coordinate plus the two spatial dimensions; in the latter case
// the same weights apply across all outer dimensions. The weights must sum
// to one over the masking coordinate at every spatial location, and any
// element mask on the weights is preserved into the collapsed output.
type FieldWeights struct {
	Field *metpost.Field
}

func (UniformWeights) isWeights() {}
func (ScalarWeights) isWeights()  {}
func (FieldWeights) isWeights()   {}

// CollapseMaskedCoordinate collapses the coordinate that a mask was applied
// to after masked neighbourhood processing, using a weighted mean. Weights
// corresponding to NaN cells in the neighbourhood output are zeroed and the
// remainder renormalized, so that no probability is lost to categories that
// had no neighbourhood data.
type CollapseMaskedCoordinate struct {
	coordMasked string
	weights     Weights
}

// NewCollapseMaskedCoordinate creates the plugin. weights may be nil, which
// is equivalent to UniformWeights.
func NewCollapseMaskedCoordinate(coordMasked string, weights Weights) (*CollapseMaskedCoordinate, error) {
	if coordMasked == "" {
		return nil, fmt.Errorf("%w: the masked coordinate name must be set", metpost.ErrInvalidArgument)
	}
	if weights == nil {
		weights = UniformWeights{}
	}
	return &CollapseMaskedCoordinate{coordMasked: coordMasked, weights: weights}, nil
}

// Reweight returns a copy of weights in which the weight of every cell that
// is NaN in the neighbourhood output has been set to zero, with the
// remaining weights renormalized along the masking coordinate so that they
// again sum to one at every location. Cells that are element-masked in the
// weights keep their values and their mask. Locations where every weight
// becomes zero stay all-zero. The input weights field is not modified.
func Reweight(weights, nbhoodResult *metpost.Field, coord string) (*metpost.Field, error) {
	if err := sameDims(weights, nbhoodResult); err != nil {
		return nil, err
	}
	axis := weights.DimIndex(coord)
	if axis < 0 {
		return nil, fmt.Errorf("%w: weights field has no dimension %s",
			metpost.ErrInvalidArgument, coord)
	}
	out := weights.Copy()
	for e, v := range nbhoodResult.Data.Elements {
		if math.IsNaN(v) && !maskedElement(out, e) {
			out.Data.Elements[e] = 0
		}
	}
	normalizeAlong(out, axis)
	return out, nil
}

func sameDims(a, b *metpost.Field) error {
	if len(a.Dims) != len(b.Dims) {
		return fmt.Errorf("%w: fields have %d and %d dimensions",
			metpost.ErrInvalidArgument, len(a.Dims), len(b.Dims))
	}
	for i := range a.Dims {
		if a.Dims[i].Name != b.Dims[i].Name || a.Data.Shape[i] != b.Data.Shape[i] {
			return fmt.Errorf("%w: dimension %d differs (%s[%d] vs %s[%d])",
				metpost.ErrInvalidArgument, i, a.Dims[i].Name, a.Data.Shape[i],
				b.Dims[i].Name, b.Data.Shape[i])
		}
	}
	return nil
}

func maskedElement(f *metpost.Field, e int) bool {
	return f.Mask != nil && f.Mask.Elements[e] != 0
}

// normalizeAlong renormalizes the unmasked weights along the given axis so
// they sum to one. Groups whose unmasked weights sum to zero are left
// untouched.
func normalizeAlong(w *metpost.Field, axis int) {
	shape := w.Data.Shape
	n := shape[axis]
	stride := 1
	for i := axis + 1; i < len(shape); i++ {
		stride *= shape[i]
	}
	outer := 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	for o := 0; o < outer; o++ {
		for s := 0; s < stride; s++ {
			base := o*stride*n + s
			var total float64
			for k := 0; k < n; k++ {
				e := base + k*stride
				if !maskedElement(w, e) {
					total += w.Data.Elements[e]
				}
			}
			if total == 0 {
				continue
			}
			for k := 0; k < n; k++ {
				e := base + k*stride
				if !maskedElement(w, e) {
					w.Data.Elements[e] /= total
				}
			}
		}
	}
}

// Process collapses the masked coordinate of f with a weighted mean. NaN
// cells in f are treated as missing data. The output has no reference to
// the masked coordinate: the dimension, any scalar coordinate of the same
// name, and any cell method solely over it are all removed. Locations whose
// weights sum to zero after reweighting are element-masked in the output.
func (p *CollapseMaskedCoordinate) Process(f *metpost.Field) (*metpost.Field, error) {
	if f.DimIndex(p.coordMasked) < 0 {
		return nil, fmt.Errorf("%w: field %s has no dimension %s",
			metpost.ErrInvalidArgument, f.Name, p.coordMasked)
	}
	yc, _, err := f.CoordByAxis("y")
	if err != nil {
		return nil, err
	}
	xc, _, err := f.CoordByAxis("x")
	if err != nil {
		return nil, err
	}

	// Work with the masked coordinate and the spatial axes as the trailing
	// dimensions so that per-location gathering is contiguous.
	c, err := metpost.ReorderDims(f, []string{p.coordMasked, yc.Name, xc.Name})
	if err != nil {
		return nil, err
	}
	c.EnsureMask()
	for e, v := range c.Data.Elements {
		if math.IsNaN(v) {
			c.Mask.Elements[e] = 1
		}
	}

	wf, broadcast, err := p.resolveWeights(c, yc.Name, xc.Name)
	if err != nil {
		return nil, err
	}

	axis := len(c.Dims) - 3
	shape := c.Data.Shape
	nCat := shape[axis]
	nyx := shape[axis+1] * shape[axis+2]
	outerN := 1
	for i := 0; i < axis; i++ {
		outerN *= shape[i]
	}

	outShape := append(append([]int(nil), shape[:axis]...), shape[axis+1], shape[axis+2])
	outDims := make([]metpost.Coord, 0, len(c.Dims)-1)
	for i, d := range c.Dims {
		if i != axis {
			outDims = append(outDims, d.Copy())
		}
	}
	out, err := metpost.NewField(f.Name, f.Units, sparse.ZerosDense(outShape...), outDims)
	if err != nil {
		return nil, err
	}
	out.EnsureMask()

	vals := make([]float64, 0, nCat)
	ws := make([]float64, 0, nCat)
	for o := 0; o < outerN; o++ {
		for s := 0; s < nyx; s++ {
			vals = vals[:0]
			ws = ws[:0]
			anyWeight := false
			for k := 0; k < nCat; k++ {
				e := o*nCat*nyx + k*nyx + s
				var weight float64
				switch {
				case wf == nil:
					weight = p.scalarWeight()
					anyWeight = true
				default:
					we := e
					if broadcast {
						we = k*nyx + s
					}
					if maskedElement(wf, we) {
						continue
					}
					weight = wf.Data.Elements[we]
					anyWeight = true
				}
				if c.Mask.Elements[e] != 0 {
					continue
				}
				vals = append(vals, c.Data.Elements[e])
				ws = append(ws, weight)
			}
			oe := o*nyx + s
			if !anyWeight || len(vals) == 0 || floats.Sum(ws) == 0 {
				out.Mask.Elements[oe] = 1
				continue
			}
			out.Data.Elements[oe] = stat.Mean(vals, ws)
		}
	}
	if !out.HasMaskedElements() {
		out.Mask = nil
	}

	out.Attrs = copyAttrs(f.Attrs)
	out.CellMethods = append([]metpost.CellMethod(nil), f.CellMethods...)
	for _, s := range f.Scalars {
		out.Scalars = append(out.Scalars, s.Copy())
	}
	out.RemoveScalarCoord(p.coordMasked)
	out.RemoveCellMethodsFor(p.coordMasked)

	// Restore the dimension order of the input field, without the collapsed
	// coordinate.
	ref := collapsedReference(f, p.coordMasked)
	return metpost.EnforceCoordOrder(out, ref)
}

// scalarWeight is the per-category weight when no weights field is
// configured.
func (p *CollapseMaskedCoordinate) scalarWeight() float64 {
	if s, ok := p.weights.(ScalarWeights); ok {
		return float64(s)
	}
	return 1
}

// resolveWeights returns the reweighted weights field aligned with c (whose
// trailing dimensions are the masked coordinate, y and x), or nil for
// uniform or scalar weights. broadcast reports that the weights span only
// (coordMasked, y, x) and repeat across any outer dimensions of c, which
// assumes the weight structure does not vary across those dimensions; the
// shape of the weights field is validated here so that anything else fails
// fast rather than being silently misapplied.
func (p *CollapseMaskedCoordinate) resolveWeights(c *metpost.Field, yName, xName string) (wf *metpost.Field, broadcast bool, err error) {
	w, ok := p.weights.(FieldWeights)
	if !ok {
		return nil, false, nil
	}
	if w.Field == nil {
		return nil, false, fmt.Errorf("%w: weights field is nil", metpost.ErrInvalidArgument)
	}
	order := []string{p.coordMasked, yName, xName}
	if len(w.Field.Dims) == len(c.Dims) {
		aligned, err := metpost.ReorderDims(w.Field, order)
		if err != nil {
			return nil, false, err
		}
		if err := sameDims(aligned, c); err != nil {
			return nil, false, err
		}
		rw, err := Reweight(aligned, c, p.coordMasked)
		if err != nil {
			return nil, false, err
		}
		return rw, false, nil
	}
	if len(w.Field.Dims) != 3 {
		return nil, false, fmt.Errorf("%w: weights field must have either the full field shape or exactly the dimensions (%s, %s, %s)",
			metpost.ErrInvalidArgument, p.coordMasked, yName, xName)
	}
	aligned, err := metpost.ReorderDims(w.Field, order)
	if err != nil {
		return nil, false, err
	}
	first, err := firstBlock(c, 3)
	if err != nil {
		return nil, false, err
	}
	if err := sameDims(aligned, first); err != nil {
		return nil, false, err
	}
	rw, err := Reweight(aligned, first, p.coordMasked)
	if err != nil {
		return nil, false, err
	}
	return rw, true, nil
}

// firstBlock returns the sub-field spanning the trailing nDims dimensions of
// f at index zero of every outer dimension.
func firstBlock(f *metpost.Field, nDims int) (*metpost.Field, error) {
	lead := len(f.Dims) - nDims
	shape := append([]int(nil), f.Data.Shape[lead:]...)
	dims := make([]metpost.Coord, nDims)
	for i := 0; i < nDims; i++ {
		dims[i] = f.Dims[lead+i].Copy()
	}
	blockLen := 1
	for _, s := range shape {
		blockLen *= s
	}
	data := sparse.ZerosDense(shape...)
	copy(data.Elements, f.Data.Elements[:blockLen])
	out, err := metpost.NewField(f.Name, f.Units, data, dims)
	if err != nil {
		return nil, err
	}
	if f.Mask != nil {
		out.EnsureMask()
		copy(out.Mask.Elements, f.Mask.Elements[:blockLen])
	}
	return out, nil
}

// collapsedReference builds a dimension-order reference equal to f without
// the named coordinate.
func collapsedReference(f *metpost.Field, coord string) *metpost.Field {
	var dims []metpost.Coord
	var shape []int
	for i, d := range f.Dims {
		if d.Name != coord {
			dims = append(dims, d.Copy())
			shape = append(shape, f.Data.Shape[i])
		}
	}
	ref := &metpost.Field{Name: f.Name, Units: f.Units, Data: sparse.ZerosDense(shape...), Dims: dims}
	return ref
}

func copyAttrs(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}
	o := make(map[string]string, len(attrs))
	for k, v := range attrs {
		o[k] = v
	}
	return o
}
