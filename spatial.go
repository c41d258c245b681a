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
	"math"

	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
	"gonum.org/v1/gonum/floats"
)

// DefaultRTol is the default relative tolerance when checking that grid
// points are equally spaced.
const DefaultRTol = 1.0e-5

// lengthUnitFactors converts supported length units to metres.
var lengthUnitFactors = map[string]float64{
	"m":          1,
	"metre":      1,
	"metres":     1,
	"meter":      1,
	"meters":     1,
	"km":         1000,
	"kilometre":  1000,
	"kilometres": 1000,
	"cm":         0.01,
	"mm":         0.001,
}

func lengthFactor(units string) (float64, error) {
	f, ok := lengthUnitFactors[units]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported length unit %q", ErrInvalidArgument, units)
	}
	return f, nil
}

// GridSpacing returns the spacing between adjacent coordinate points along
// the given spatial axis ("x" or "y"), converted to the requested length
// unit. The spacing is positive for axes that stride negatively. If any
// consecutive point spacing deviates from the mean spacing by more than the
// relative tolerance rtol, an ErrInvalidGrid error is returned.
func GridSpacing(f *Field, axis, units string, rtol float64) (float64, error) {
	coord, _, err := f.CoordByAxis(axis)
	if err != nil {
		return 0, err
	}
	from, err := lengthFactor(coord.Units)
	if err != nil {
		return 0, err
	}
	to, err := lengthFactor(units)
	if err != nil {
		return 0, err
	}
	if len(coord.Points) < 2 {
		return 0, fmt.Errorf("%w: coordinate %s has fewer than two points",
			ErrInvalidGrid, coord.Name)
	}
	diffs := make([]float64, len(coord.Points)-1)
	for i := range diffs {
		diffs[i] = math.Abs(coord.Points[i+1]-coord.Points[i]) * from / to
	}
	mean := floats.Sum(diffs) / float64(len(diffs))
	for _, d := range diffs {
		if !floats.EqualWithinAbsOrRel(d, mean, 0, rtol) {
			return 0, fmt.Errorf("%w: coordinate %s points are not equally spaced",
				ErrInvalidGrid, coord.Name)
		}
	}
	return mean, nil
}

// gridSpacingMetres returns the unit-tagged grid spacing along an axis.
func gridSpacingMetres(f *Field, axis string) (*unit.Unit, error) {
	s, err := GridSpacing(f, axis, "m", DefaultRTol)
	if err != nil {
		return nil, err
	}
	return unit.New(s, unit.Meter), nil
}

// CheckEqualArea verifies that the grid is an equal-area grid, by checking
// that points are equally spaced along each of the x and y axes. If
// requireEqualXY is true it additionally requires the spacing to be the same
// in the two spatial dimensions.
func CheckEqualArea(f *Field, requireEqualXY bool) error {
	xs, err := gridSpacingMetres(f, "x")
	if err != nil {
		return err
	}
	ys, err := gridSpacingMetres(f, "y")
	if err != nil {
		return err
	}
	if !unit.DimensionsMatch(xs, ys) {
		return fmt.Errorf("%w: x and y spacings have inconsistent dimensions", ErrInvalidGrid)
	}
	if requireEqualXY && !floats.EqualWithinAbsOrRel(xs.Value(), ys.Value(), 1e-8, DefaultRTol) {
		return fmt.Errorf("%w: grid does not have equal spacing in the x and y dimensions (%g m vs %g m)",
			ErrInvalidGrid, xs.Value(), ys.Value())
	}
	return nil
}

// DistanceToGridCells converts a physical distance in metres to a number of
// grid cells along the given axis. The distance must be positive. If asInt
// is true the result is truncated toward zero and a truncated result of zero
// is an error, preventing silently degenerate kernels.
func DistanceToGridCells(f *Field, distanceM float64, axis string, asInt bool) (float64, error) {
	if distanceM <= 0 {
		return 0, fmt.Errorf("%w: distance must be positive, got %gm", ErrInvalidArgument, distanceM)
	}
	spacing, err := gridSpacingMetres(f, axis)
	if err != nil {
		return 0, err
	}
	cells := distanceM / math.Abs(spacing.Value())
	if asInt {
		cells = math.Trunc(cells)
		if cells == 0 {
			return 0, fmt.Errorf("%w: distance of %gm gives zero cell extent",
				ErrInvalidArgument, distanceM)
		}
	}
	return cells, nil
}

// GridCellsToDistance converts a number of grid cells to a distance in
// metres. The field must be on an equal-area grid.
func GridCellsToDistance(f *Field, nCells int) (float64, error) {
	if err := CheckEqualArea(f, true); err != nil {
		return 0, err
	}
	spacing, err := gridSpacingMetres(f, "x")
	if err != nil {
		return 0, err
	}
	return spacing.Value() * float64(nCells), nil
}

// DifferenceBetweenAdjacentGridSquares calculates the forward difference
// between adjacent grid squares, along the x and y axes individually. The
// differenced axis shrinks by one cell and its coordinate points become the
// midpoints of the input points.
type DifferenceBetweenAdjacentGridSquares struct{}

// Process returns the differences along the x axis and the y axis.
func (p DifferenceBetweenAdjacentGridSquares) Process(f *Field) (*Field, *Field, error) {
	xDiff, err := differenceAlongAxis(f, "x")
	if err != nil {
		return nil, nil, err
	}
	yDiff, err := differenceAlongAxis(f, "y")
	if err != nil {
		return nil, nil, err
	}
	return xDiff, yDiff, nil
}

func differenceAlongAxis(f *Field, axis string) (*Field, error) {
	coord, dim, err := f.CoordByAxis(axis)
	if err != nil {
		return nil, err
	}
	if len(coord.Points) < 2 {
		return nil, fmt.Errorf("%w: cannot difference coordinate %s with fewer than two points",
			ErrInvalidArgument, coord.Name)
	}

	shape := append([]int(nil), f.Data.Shape...)
	shape[dim]--
	data := sparse.ZerosDense(shape...)
	for e := 0; e < len(data.Elements); e++ {
		nd := data.IndexNd(e)
		lo := f.Data.Get(nd...)
		nd[dim]++
		hi := f.Data.Get(nd...)
		data.Elements[e] = hi - lo
	}

	dims := copyCoords(f.Dims)
	mid := make([]float64, len(coord.Points)-1)
	for i := range mid {
		mid[i] = (coord.Points[i] + coord.Points[i+1]) / 2
	}
	dims[dim] = Coord{Name: coord.Name, Points: mid, Units: coord.Units}

	out, err := NewField("difference_of_"+f.Name, f.Units, data, dims)
	if err != nil {
		return nil, err
	}
	out.Attrs = map[string]string{"form_of_difference": "forward_difference"}
	for k, v := range f.Attrs {
		out.Attrs[k] = v
	}
	out.CellMethods = append(append([]CellMethod(nil), f.CellMethods...),
		CellMethod{Method: "difference", Coords: []string{coord.Name}, Intervals: "1 grid length"})
	for _, s := range f.Scalars {
		out.Scalars = append(out.Scalars, s.Copy())
	}
	return out, nil
}

// GradientBetweenAdjacentGridSquares calculates the gradient between
// adjacent grid squares along the x and y axes individually. If Regrid is
// true the gradients are regridded back onto the input grid, so the output
// shapes match the input; otherwise the differenced axis is one cell
// shorter.
type GradientBetweenAdjacentGridSquares struct {
	Regrid bool
}

// Process returns the gradients along the x axis and the y axis.
func (p GradientBetweenAdjacentGridSquares) Process(f *Field) (*Field, *Field, error) {
	xDiff, yDiff, err := DifferenceBetweenAdjacentGridSquares{}.Process(f)
	if err != nil {
		return nil, nil, err
	}
	xGrad, err := p.gradientFromDiff(xDiff, f, "x")
	if err != nil {
		return nil, nil, err
	}
	yGrad, err := p.gradientFromDiff(yDiff, f, "y")
	if err != nil {
		return nil, nil, err
	}
	return xGrad, yGrad, nil
}

func (p GradientBetweenAdjacentGridSquares) gradientFromDiff(diff, orig *Field, axis string) (*Field, error) {
	coord, dim, err := orig.CoordByAxis(axis)
	if err != nil {
		return nil, err
	}
	spacing := coord.Points[1] - coord.Points[0]

	data := diff.Data.ScaleCopy(1 / spacing)
	dims := copyCoords(diff.Dims)
	out, err := NewField("gradient_of_"+orig.Name, orig.Units+" "+coord.Units+"-1", data, dims)
	if err != nil {
		return nil, err
	}
	for _, s := range orig.Scalars {
		out.Scalars = append(out.Scalars, s.Copy())
	}
	if p.Regrid {
		return regridAlongAxis(out, coord, dim)
	}
	return out, nil
}

// regridAlongAxis linearly regrids values defined at the midpoints of a
// coordinate back onto the original coordinate points. Interior points take
// the mean of the two adjacent midpoint values; edge points copy the
// nearest midpoint value.
func regridAlongAxis(f *Field, coord Coord, dim int) (*Field, error) {
	shape := append([]int(nil), f.Data.Shape...)
	shape[dim] = len(coord.Points)
	data := sparse.ZerosDense(shape...)
	n := shape[dim]
	for e := 0; e < len(data.Elements); e++ {
		nd := data.IndexNd(e)
		i := nd[dim]
		switch {
		case i == 0:
			nd[dim] = 0
			data.Elements[e] = f.Data.Get(nd...)
		case i == n-1:
			nd[dim] = n - 2
			data.Elements[e] = f.Data.Get(nd...)
		default:
			nd[dim] = i - 1
			lo := f.Data.Get(nd...)
			nd[dim] = i
			hi := f.Data.Get(nd...)
			data.Elements[e] = (lo + hi) / 2
		}
	}
	dims := copyCoords(f.Dims)
	dims[dim] = coord.Copy()
	out, err := NewField(f.Name, f.Units, data, dims)
	if err != nil {
		return nil, err
	}
	out.Attrs = f.Attrs
	out.CellMethods = append([]CellMethod(nil), f.CellMethods...)
	for _, s := range f.Scalars {
		out.Scalars = append(out.Scalars, s.Copy())
	}
	return out, nil
}
