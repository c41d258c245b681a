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

package metpost

import (
	"fmt"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Tolerances for treating coordinate point values as trivially equal during
// reconciliation.
const (
	coordAbsTol = 1e-8
	coordRelTol = 1e-7
)

// MapSlices splits f into sub-fields spanning the named dimensions, applies
// fn to each, and joins the results back into a single field. Every
// combination of indices over the remaining (outer) dimensions produces one
// sub-field; each sub-field carries the outer coordinate values as scalar
// coordinates. fn may return results with more or fewer dimensions than its
// input (for example, promoting a masking category to a new dimension, or
// collapsing one); the joined field then has the outer dimensions first,
// followed by the dimensions of the fn results. Use EnforceCoordOrder to
// restore a reference dimension order afterwards.
func MapSlices(f *Field, keep []string, fn func(*Field) (*Field, error)) (*Field, error) {
	keepDims := make([]int, len(keep))
	keepSet := make(map[string]bool, len(keep))
	for j, k := range keep {
		i := f.DimIndex(k)
		if i < 0 {
			return nil, fmt.Errorf("%w: field %s does not have all of the dimensions %v",
				ErrInvalidArgument, f.Name, keep)
		}
		keepDims[j] = i
		keepSet[k] = true
	}
	var outerDims []int
	for i, d := range f.Dims {
		if !keepSet[d.Name] {
			outerDims = append(outerDims, i)
		}
	}

	n := 1
	for _, i := range outerDims {
		n *= f.Data.Shape[i]
	}
	parts := make([]*Field, n)
	outerIdx := make([]int, len(outerDims))
	for k := 0; k < n; k++ {
		part := f.subField(keepDims, outerDims, outerIdx)
		res, err := fn(part)
		if err != nil {
			return nil, err
		}
		parts[k] = res
		incrementIndex(outerIdx, f.Data.Shape, outerDims)
	}
	return f.joinSlices(outerDims, parts)
}

// subField extracts the sub-field spanning keepDims at the given outer index
// combination. Outer coordinate values are attached as scalar coordinates.
func (f *Field) subField(keepDims, outerDims, outerIdx []int) *Field {
	shape := make([]int, len(keepDims))
	dims := make([]Coord, len(keepDims))
	for j, i := range keepDims {
		shape[j] = f.Data.Shape[i]
		dims[j] = f.Dims[i].Copy()
	}
	part := &Field{
		Name:        f.Name,
		Units:       f.Units,
		Data:        sparse.ZerosDense(shape...),
		Dims:        dims,
		CellMethods: append([]CellMethod(nil), f.CellMethods...),
	}
	if f.Attrs != nil {
		part.Attrs = make(map[string]string, len(f.Attrs))
		for k, v := range f.Attrs {
			part.Attrs[k] = v
		}
	}
	for _, s := range f.Scalars {
		part.Scalars = append(part.Scalars, s.Copy())
	}
	for j, i := range outerDims {
		d := f.Dims[i]
		part.AddScalarCoord(Coord{Name: d.Name, Points: []float64{d.Points[outerIdx[j]]}, Units: d.Units})
	}

	if f.Mask != nil {
		part.Mask = sparse.ZerosDenseInt(shape...)
	}
	full := make([]int, len(f.Data.Shape))
	for j, i := range outerDims {
		full[i] = outerIdx[j]
	}
	for e := 0; e < len(part.Data.Elements); e++ {
		nd := part.Data.IndexNd(e)
		for j, i := range keepDims {
			full[i] = nd[j]
		}
		part.Data.Elements[e] = f.Data.Get(full...)
		if f.Mask != nil {
			part.Mask.Elements[e] = f.Mask.Get(full...)
		}
	}
	return part
}

// joinSlices reassembles transformed sub-fields, placing the outer
// dimensions first. All parts must agree on their dimension coordinates.
func (f *Field) joinSlices(outerDims []int, parts []*Field) (*Field, error) {
	p0 := parts[0]
	for _, p := range parts[1:] {
		if err := dimsMatch(p0, p); err != nil {
			return nil, err
		}
	}

	outer := make([]Coord, len(outerDims))
	shape := make([]int, 0, len(outerDims)+len(p0.Dims))
	for j, i := range outerDims {
		outer[j] = f.Dims[i].Copy()
		shape = append(shape, f.Data.Shape[i])
	}
	dims := append(outer, copyCoords(p0.Dims)...)
	shape = append(shape, p0.Data.Shape...)

	out := &Field{
		Name:        p0.Name,
		Units:       p0.Units,
		Data:        sparse.ZerosDense(shape...),
		Dims:        dims,
		CellMethods: append([]CellMethod(nil), p0.CellMethods...),
	}
	if p0.Attrs != nil {
		out.Attrs = make(map[string]string, len(p0.Attrs))
		for k, v := range p0.Attrs {
			out.Attrs[k] = v
		}
	}
	outerNames := make(map[string]bool, len(outer))
	for _, c := range outer {
		outerNames[c.Name] = true
	}
	for _, s := range p0.Scalars {
		if !outerNames[s.Name] {
			out.Scalars = append(out.Scalars, s.Copy())
		}
	}
	for _, p := range parts {
		if p.Mask != nil {
			out.EnsureMask()
			break
		}
	}

	// Parts vary over the leading (outer) axes in row-major order, so each
	// part occupies one contiguous block of the output elements.
	blockLen := len(p0.Data.Elements)
	for k, p := range parts {
		if len(p.Data.Elements) != blockLen {
			return nil, fmt.Errorf("%w: slice %d of field %s has %d elements, want %d",
				ErrConcatenation, k, f.Name, len(p.Data.Elements), blockLen)
		}
		copy(out.Data.Elements[k*blockLen:(k+1)*blockLen], p.Data.Elements)
		if out.Mask != nil && p.Mask != nil {
			copy(out.Mask.Elements[k*blockLen:(k+1)*blockLen], p.Mask.Elements)
		}
	}
	return out, nil
}

// SlicesOver returns one sub-field per point of the named dimension, in
// coordinate order. Each slice spans all remaining dimensions and carries
// the dimension's point value as a scalar coordinate.
func SlicesOver(f *Field, coord string) ([]*Field, error) {
	ci := f.DimIndex(coord)
	if ci < 0 {
		return nil, fmt.Errorf("%w: field %s has no dimension %s",
			ErrInvalidArgument, f.Name, coord)
	}
	var keepDims []int
	for i := range f.Dims {
		if i != ci {
			keepDims = append(keepDims, i)
		}
	}
	slices := make([]*Field, f.Data.Shape[ci])
	for k := range slices {
		slices[k] = f.subField(keepDims, []int{ci}, []int{k})
	}
	return slices, nil
}

// ReorderDims transposes the field so that the named dimensions become the
// trailing axes, in the order given; all other dimensions keep their
// relative order in front.
func ReorderDims(f *Field, last []string) (*Field, error) {
	lastIdx := make([]int, len(last))
	inLast := make(map[int]bool, len(last))
	for j, name := range last {
		i := f.DimIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: field %s has no dimension %s",
				ErrInvalidArgument, f.Name, name)
		}
		lastIdx[j] = i
		inLast[i] = true
	}
	var order []int
	for i := range f.Dims {
		if !inLast[i] {
			order = append(order, i)
		}
	}
	order = append(order, lastIdx...)
	identity := true
	for i, o := range order {
		if i != o {
			identity = false
			break
		}
	}
	if identity {
		return f.Copy(), nil
	}
	return f.transpose(order), nil
}

// Concat joins fields along a shared length-one leading dimension named
// coord, in the order given.
func Concat(parts []*Field, coord string) (*Field, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no fields to concatenate over %s", ErrConcatenation, coord)
	}
	p0 := parts[0]
	if p0.DimIndex(coord) != 0 || p0.Data.Shape[0] != 1 {
		return nil, fmt.Errorf("%w: field %s does not have %s as a length-one leading dimension",
			ErrConcatenation, p0.Name, coord)
	}
	points := make([]float64, 0, len(parts))
	for _, p := range parts {
		if p.DimIndex(coord) != 0 || p.Data.Shape[0] != 1 {
			return nil, fmt.Errorf("%w: field %s does not have %s as a length-one leading dimension",
				ErrConcatenation, p.Name, coord)
		}
		if err := dimsMatchFrom(p0, p, 1); err != nil {
			return nil, err
		}
		points = append(points, p.Dims[0].Points[0])
	}

	shape := append([]int{len(parts)}, p0.Data.Shape[1:]...)
	dims := make([]Coord, len(p0.Dims))
	dims[0] = Coord{Name: coord, Points: points, Units: p0.Dims[0].Units}
	for i, d := range p0.Dims[1:] {
		dims[i+1] = d.Copy()
	}
	out := &Field{
		Name:        p0.Name,
		Units:       p0.Units,
		Data:        sparse.ZerosDense(shape...),
		Dims:        dims,
		CellMethods: append([]CellMethod(nil), p0.CellMethods...),
	}
	if p0.Attrs != nil {
		out.Attrs = make(map[string]string, len(p0.Attrs))
		for k, v := range p0.Attrs {
			out.Attrs[k] = v
		}
	}
	for _, s := range p0.Scalars {
		if s.Name != coord {
			out.Scalars = append(out.Scalars, s.Copy())
		}
	}
	for _, p := range parts {
		if p.Mask != nil {
			out.EnsureMask()
			break
		}
	}
	blockLen := len(p0.Data.Elements)
	for k, p := range parts {
		copy(out.Data.Elements[k*blockLen:(k+1)*blockLen], p.Data.Elements)
		if out.Mask != nil && p.Mask != nil {
			copy(out.Mask.Elements[k*blockLen:(k+1)*blockLen], p.Mask.Elements)
		}
	}
	return out, nil
}

// EnforceCoordOrder reorders the dimensions of f to match the dimension
// order of ref for all dimensions the two fields share. Dimensions of f that
// ref does not have are placed first, keeping their relative order. A scalar
// coordinate of f that is a length-one dimension of ref is promoted back to
// a dimension. Shared dimensions whose point values differ beyond a trivial
// tolerance cause an ErrCoordinateMismatch error.
func EnforceCoordOrder(f, ref *Field) (*Field, error) {
	g := f.Copy()
	for _, rd := range ref.Dims {
		if g.DimIndex(rd.Name) >= 0 {
			continue
		}
		if _, ok := g.ScalarCoord(rd.Name); ok && len(rd.Points) == 1 {
			if err := g.PromoteScalar(rd.Name); err != nil {
				return nil, err
			}
			continue
		}
		return nil, fmt.Errorf("%w: field %s is missing dimension %s of the reference field",
			ErrCoordinateMismatch, g.Name, rd.Name)
	}
	for _, rd := range ref.Dims {
		gd := g.Dims[g.DimIndex(rd.Name)]
		if len(gd.Points) != len(rd.Points) {
			return nil, fmt.Errorf("%w: dimension %s has %d points, reference has %d",
				ErrCoordinateMismatch, rd.Name, len(gd.Points), len(rd.Points))
		}
		for i := range gd.Points {
			if !floats.EqualWithinAbsOrRel(gd.Points[i], rd.Points[i], coordAbsTol, coordRelTol) {
				return nil, fmt.Errorf("%w: dimension %s point %d is %g, reference has %g",
					ErrCoordinateMismatch, rd.Name, i, gd.Points[i], rd.Points[i])
			}
		}
	}

	var order []int
	for i, d := range g.Dims {
		if ref.DimIndex(d.Name) < 0 {
			order = append(order, i)
		}
	}
	for _, rd := range ref.Dims {
		order = append(order, g.DimIndex(rd.Name))
	}
	identity := true
	for i, o := range order {
		if i != o {
			identity = false
			break
		}
	}
	if identity {
		return g, nil
	}
	return g.transpose(order), nil
}

// transpose returns a copy of the field with its axes permuted so that new
// axis i is old axis order[i].
func (f *Field) transpose(order []int) *Field {
	shape := make([]int, len(order))
	dims := make([]Coord, len(order))
	for i, o := range order {
		shape[i] = f.Data.Shape[o]
		dims[i] = f.Dims[o].Copy()
	}
	out := &Field{
		Name:        f.Name,
		Units:       f.Units,
		Data:        sparse.ZerosDense(shape...),
		Dims:        dims,
		CellMethods: append([]CellMethod(nil), f.CellMethods...),
	}
	if f.Attrs != nil {
		out.Attrs = make(map[string]string, len(f.Attrs))
		for k, v := range f.Attrs {
			out.Attrs[k] = v
		}
	}
	for _, s := range f.Scalars {
		out.Scalars = append(out.Scalars, s.Copy())
	}
	if f.Mask != nil {
		out.Mask = sparse.ZerosDenseInt(shape...)
	}
	old := make([]int, len(order))
	for e := 0; e < len(out.Data.Elements); e++ {
		nd := out.Data.IndexNd(e)
		for i, o := range order {
			old[o] = nd[i]
		}
		out.Data.Elements[e] = f.Data.Get(old...)
		if out.Mask != nil {
			out.Mask.Elements[e] = f.Mask.Get(old...)
		}
	}
	return out
}

// dimsMatch verifies that two fields have identical dimension coordinates.
func dimsMatch(a, b *Field) error {
	return dimsMatchFrom(a, b, 0)
}

func dimsMatchFrom(a, b *Field, start int) error {
	if len(a.Dims) != len(b.Dims) {
		return fmt.Errorf("%w: fields have %d and %d dimensions",
			ErrConcatenation, len(a.Dims), len(b.Dims))
	}
	for i := start; i < len(a.Dims); i++ {
		da, db := a.Dims[i], b.Dims[i]
		if da.Name != db.Name || da.Units != db.Units || len(da.Points) != len(db.Points) {
			return fmt.Errorf("%w: dimension %d differs between slices (%s vs %s)",
				ErrConcatenation, i, da.Name, db.Name)
		}
		for j := range da.Points {
			if !floats.EqualWithinAbsOrRel(da.Points[j], db.Points[j], coordAbsTol, coordRelTol) {
				return fmt.Errorf("%w: dimension %s point %d differs between slices",
					ErrConcatenation, da.Name, j)
			}
		}
	}
	return nil
}

func copyCoords(cs []Coord) []Coord {
	o := make([]Coord, len(cs))
	for i, c := range cs {
		o[i] = c.Copy()
	}
	return o
}

// incrementIndex advances idx by one in row-major order over the given axes
// of shape.
func incrementIndex(idx []int, shape []int, axes []int) {
	for j := len(idx) - 1; j >= 0; j-- {
		idx[j]++
		if idx[j] < shape[axes[j]] {
			return
		}
		idx[j] = 0
	}
}
