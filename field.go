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
)

// Coord is an ordered sequence of labelled points along one axis of a field.
type Coord struct {
	Name   string
	Points []float64
	Units  string
}

// Copy returns a deep copy of the coordinate.
func (c Coord) Copy() Coord {
	p := make([]float64, len(c.Points))
	copy(p, c.Points)
	return Coord{Name: c.Name, Points: p, Units: c.Units}
}

// CellMethod records a reduction operation that has been applied to a field,
// for example a mean over the realization coordinate.
type CellMethod struct {
	Method    string
	Coords    []string
	Intervals string
}

// Field is a labelled multi-dimensional data array: gridded forecast data
// over zero or more non-spatial dimensions (ensemble realization, forecast
// period, a masking category) plus two spatial dimensions. Masked elements
// are marked in Mask (1 = masked); Mask may be nil when no element mask is
// set.
type Field struct {
	Name  string
	Units string

	Data *sparse.DenseArray

	// Dims holds one dimension coordinate per data axis, in axis order.
	Dims []Coord

	// Scalars holds scalar (non-dimension) coordinates.
	Scalars []Coord

	Mask *sparse.DenseArrayInt

	Attrs       map[string]string
	CellMethods []CellMethod
}

// NewField creates a field from a data array and its dimension coordinates.
// The number of coordinates must match the number of data axes and each
// coordinate's length must match the corresponding axis length.
func NewField(name, units string, data *sparse.DenseArray, dims []Coord) (*Field, error) {
	if len(dims) != len(data.Shape) {
		return nil, fmt.Errorf("%w: field %s has %d dimension coordinates for %d data axes",
			ErrInvalidArgument, name, len(dims), len(data.Shape))
	}
	for i, d := range dims {
		if len(d.Points) != data.Shape[i] {
			return nil, fmt.Errorf("%w: coordinate %s has %d points but axis %d has length %d",
				ErrInvalidArgument, d.Name, len(d.Points), i, data.Shape[i])
		}
	}
	return &Field{Name: name, Units: units, Data: data, Dims: dims}, nil
}

// Copy returns a deep copy of the field.
func (f *Field) Copy() *Field {
	o := &Field{
		Name:  f.Name,
		Units: f.Units,
		Data:  f.Data.Copy(),
	}
	o.Dims = make([]Coord, len(f.Dims))
	for i, d := range f.Dims {
		o.Dims[i] = d.Copy()
	}
	o.Scalars = make([]Coord, len(f.Scalars))
	for i, s := range f.Scalars {
		o.Scalars[i] = s.Copy()
	}
	if f.Mask != nil {
		o.Mask = copyMask(f.Mask)
	}
	if f.Attrs != nil {
		o.Attrs = make(map[string]string, len(f.Attrs))
		for k, v := range f.Attrs {
			o.Attrs[k] = v
		}
	}
	o.CellMethods = append([]CellMethod(nil), f.CellMethods...)
	return o
}

func copyMask(m *sparse.DenseArrayInt) *sparse.DenseArrayInt {
	o := sparse.ZerosDenseInt(m.Shape...)
	copy(o.Elements, m.Elements)
	return o
}

// DimIndex returns the axis index of the named dimension coordinate, or -1
// if the field has no dimension with that name.
func (f *Field) DimIndex(name string) int {
	for i, d := range f.Dims {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// ScalarCoord returns the named scalar coordinate.
func (f *Field) ScalarCoord(name string) (Coord, bool) {
	for _, s := range f.Scalars {
		if s.Name == name {
			return s, true
		}
	}
	return Coord{}, false
}

// axisOf classifies a coordinate name as a spatial axis: "x", "y", or ""
// for non-spatial coordinates.
func axisOf(name string) string {
	switch name {
	case "x", "longitude", "grid_longitude", "projection_x_coordinate":
		return "x"
	case "y", "latitude", "grid_latitude", "projection_y_coordinate":
		return "y"
	}
	return ""
}

// CoordByAxis returns the dimension coordinate for the given spatial axis
// ("x" or "y") together with its axis index.
func (f *Field) CoordByAxis(axis string) (Coord, int, error) {
	for i, d := range f.Dims {
		if axisOf(d.Name) == axis {
			return d, i, nil
		}
	}
	return Coord{}, 0, fmt.Errorf("%w: field %s has no %s-axis coordinate",
		ErrInvalidArgument, f.Name, axis)
}

// SpatialCoordsMatch reports whether both fields have x and y dimension
// coordinates with identical names, units and point values.
func SpatialCoordsMatch(a, b *Field) bool {
	for _, axis := range []string{"y", "x"} {
		ca, _, errA := a.CoordByAxis(axis)
		cb, _, errB := b.CoordByAxis(axis)
		if errA != nil || errB != nil {
			return false
		}
		if ca.Name != cb.Name || ca.Units != cb.Units || len(ca.Points) != len(cb.Points) {
			return false
		}
		for i := range ca.Points {
			if ca.Points[i] != cb.Points[i] {
				return false
			}
		}
	}
	return true
}

// IsMasked reports whether the element at the given index is masked.
func (f *Field) IsMasked(index ...int) bool {
	return f.Mask != nil && f.Mask.Get(index...) != 0
}

// HasMaskedElements reports whether any element of the field is masked.
func (f *Field) HasMaskedElements() bool {
	if f.Mask == nil {
		return false
	}
	for _, v := range f.Mask.Elements {
		if v != 0 {
			return true
		}
	}
	return false
}

// EnsureMask allocates an all-unmasked element mask if the field does not
// already carry one.
func (f *Field) EnsureMask() {
	if f.Mask == nil {
		f.Mask = sparse.ZerosDenseInt(f.Data.Shape...)
	}
}

// AddScalarCoord attaches a scalar coordinate to the field, replacing any
// existing scalar coordinate of the same name.
func (f *Field) AddScalarCoord(c Coord) {
	for i, s := range f.Scalars {
		if s.Name == c.Name {
			f.Scalars[i] = c.Copy()
			return
		}
	}
	f.Scalars = append(f.Scalars, c.Copy())
}

// RemoveScalarCoord removes the named scalar coordinate if present.
func (f *Field) RemoveScalarCoord(name string) {
	for i, s := range f.Scalars {
		if s.Name == name {
			f.Scalars = append(f.Scalars[:i], f.Scalars[i+1:]...)
			return
		}
	}
}

// RemoveCellMethodsFor drops any cell method that refers solely to the named
// coordinate.
func (f *Field) RemoveCellMethodsFor(coord string) {
	kept := f.CellMethods[:0]
	for _, cm := range f.CellMethods {
		if len(cm.Coords) == 1 && cm.Coords[0] == coord {
			continue
		}
		kept = append(kept, cm)
	}
	f.CellMethods = kept
}

// PromoteScalar converts the named scalar coordinate into a new leading
// dimension of length one.
func (f *Field) PromoteScalar(name string) error {
	c, ok := f.ScalarCoord(name)
	if !ok {
		return fmt.Errorf("%w: field %s has no scalar coordinate %s",
			ErrCoordinateMismatch, f.Name, name)
	}
	f.RemoveScalarCoord(name)

	shape := append([]int{1}, f.Data.Shape...)
	data := sparse.ZerosDense(shape...)
	copy(data.Elements, f.Data.Elements)
	f.Data = data
	if f.Mask != nil {
		mask := sparse.ZerosDenseInt(shape...)
		copy(mask.Elements, f.Mask.Elements)
		f.Mask = mask
	}
	f.Dims = append([]Coord{c}, f.Dims...)
	return nil
}
