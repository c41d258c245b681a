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
	"errors"
	"testing"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/ctessum/sparse"
)

func TestGridSpacing(t *testing.T) {
	f := testField(t, "f", 3, 4, 2000)

	s, err := GridSpacing(f, "x", "m", DefaultRTol)
	if err != nil {
		t.Fatal(err)
	}
	if different(s, 2000, testTolerance) {
		t.Errorf("spacing: %g != 2000", s)
	}
	s, err = GridSpacing(f, "x", "km", DefaultRTol)
	if err != nil {
		t.Fatal(err)
	}
	if different(s, 2, testTolerance) {
		t.Errorf("spacing in km: %g != 2", s)
	}

	// A descending axis has the same (positive) spacing.
	g := f.Copy()
	xi := g.DimIndex("projection_x_coordinate")
	for i := range g.Dims[xi].Points {
		g.Dims[xi].Points[i] = -g.Dims[xi].Points[i]
	}
	s, err = GridSpacing(g, "x", "m", DefaultRTol)
	if err != nil {
		t.Fatal(err)
	}
	if different(s, 2000, testTolerance) {
		t.Errorf("descending axis spacing: %g != 2000", s)
	}

	// Perturbing a point beyond the tolerance makes the grid invalid.
	h := f.Copy()
	h.Dims[xi].Points[2] += 1
	if _, err := GridSpacing(h, "x", "m", DefaultRTol); !errors.Is(err, ErrInvalidGrid) {
		t.Errorf("unequal spacing: got %v, want ErrInvalidGrid", err)
	}
	// A loose enough tolerance accepts the same grid.
	if _, err := GridSpacing(h, "x", "m", 1.e-2); err != nil {
		t.Errorf("loose tolerance: got %v, want nil", err)
	}
}

func TestCheckEqualArea(t *testing.T) {
	f := testField(t, "f", 3, 4, 2000)
	if err := CheckEqualArea(f, true); err != nil {
		t.Fatal(err)
	}

	g, err := NewField("g", "1", sparse.ZerosDense(3, 4), []Coord{
		{Name: "projection_y_coordinate", Points: []float64{0, 1000, 2000}, Units: "m"},
		{Name: "projection_x_coordinate", Points: []float64{0, 2000, 4000, 6000}, Units: "m"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckEqualArea(g, true); !errors.Is(err, ErrInvalidGrid) {
		t.Errorf("unequal x and y spacing: got %v, want ErrInvalidGrid", err)
	}
	if err := CheckEqualArea(g, false); err != nil {
		t.Errorf("unequal x and y spacing without the equality requirement: got %v, want nil", err)
	}
}

func TestDistanceToGridCells(t *testing.T) {
	f := testField(t, "f", 3, 4, 2000)

	cells, err := DistanceToGridCells(f, 7000, "x", false)
	if err != nil {
		t.Fatal(err)
	}
	if different(cells, 3.5, testTolerance) {
		t.Errorf("cells: %g != 3.5", cells)
	}

	// Truncation toward zero, not rounding.
	cells, err = DistanceToGridCells(f, 7000, "x", true)
	if err != nil {
		t.Fatal(err)
	}
	if cells != 3 {
		t.Errorf("truncated cells: %g != 3", cells)
	}

	if _, err := DistanceToGridCells(f, 0, "x", false); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("zero distance: got %v, want ErrInvalidArgument", err)
	}
	if _, err := DistanceToGridCells(f, -2000, "x", false); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative distance: got %v, want ErrInvalidArgument", err)
	}
	// A distance smaller than one cell truncates to a zero extent.
	if _, err := DistanceToGridCells(f, 100, "x", true); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("sub-cell distance: got %v, want ErrInvalidArgument", err)
	}
}

// A distance converted to a whole number of cells and back is unchanged.
func TestDistanceCellsRoundTrip(t *testing.T) {
	f := testField(t, "f", 3, 4, 2000)
	cells, err := DistanceToGridCells(f, 6000, "x", true)
	if err != nil {
		t.Fatal(err)
	}
	d, err := GridCellsToDistance(f, int(cells))
	if err != nil {
		t.Fatal(err)
	}
	if different(d, 6000, testTolerance) {
		t.Errorf("round trip: %g != 6000", d)
	}
}

func TestDifferenceBetweenAdjacentGridSquares(t *testing.T) {
	f := testField(t, "air_temperature", 3, 4, 2000)
	f.Units = "K"
	for j := 0; j < 3; j++ {
		for i := 0; i < 4; i++ {
			f.Data.Set(float64(i+10*j), j, i)
		}
	}

	xDiff, yDiff, err := DifferenceBetweenAdjacentGridSquares{}.Process(f)
	if err != nil {
		t.Fatal(err)
	}

	if xDiff.Data.Shape[0] != 3 || xDiff.Data.Shape[1] != 3 {
		t.Fatalf("x difference shape: %v != [3 3]", xDiff.Data.Shape)
	}
	if yDiff.Data.Shape[0] != 2 || yDiff.Data.Shape[1] != 4 {
		t.Fatalf("y difference shape: %v != [2 4]", yDiff.Data.Shape)
	}
	for _, v := range xDiff.Data.Elements {
		if different(v, 1, testTolerance) {
			t.Errorf("x difference: %g != 1", v)
		}
	}
	for _, v := range yDiff.Data.Elements {
		if different(v, 10, testTolerance) {
			t.Errorf("y difference: %g != 10", v)
		}
	}

	// The differenced axis moves to the midpoints of the input points.
	xi := xDiff.DimIndex("projection_x_coordinate")
	wantX := []float64{1000, 3000, 5000}
	for i, p := range xDiff.Dims[xi].Points {
		if different(p, wantX[i], testTolerance) {
			t.Errorf("x midpoint %d: %g != %g", i, p, wantX[i])
		}
	}
	// The undifferenced axis is unchanged.
	yi := xDiff.DimIndex("projection_y_coordinate")
	for i, p := range xDiff.Dims[yi].Points {
		if different(p, float64(i)*2000, testTolerance) {
			t.Errorf("y point %d: %g changed", i, p)
		}
	}

	if xDiff.Name != "difference_of_air_temperature" {
		t.Errorf("name: %s", xDiff.Name)
	}
	if xDiff.Attrs["form_of_difference"] != "forward_difference" {
		t.Errorf("form_of_difference attribute missing: %v", xDiff.Attrs)
	}
	cm := xDiff.CellMethods[len(xDiff.CellMethods)-1]
	if cm.Method != "difference" || cm.Coords[0] != "projection_x_coordinate" {
		t.Errorf("cell method: %+v", cm)
	}
}

func TestDifferenceSinglePointAxis(t *testing.T) {
	f, err := NewField("f", "1", sparse.ZerosDense(3, 1), []Coord{
		{Name: "projection_y_coordinate", Points: []float64{0, 2000, 4000}, Units: "m"},
		{Name: "projection_x_coordinate", Points: []float64{0}, Units: "m"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := (DifferenceBetweenAdjacentGridSquares{}).Process(f); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("single-point axis: got %v, want ErrInvalidArgument", err)
	}
}

func TestGradientBetweenAdjacentGridSquares(t *testing.T) {
	const (
		xSlope = 0.003
		ySlope = 0.001
	)
	f := testField(t, "air_temperature", 3, 4, 2000)
	f.Units = "K"
	for j := 0; j < 3; j++ {
		for i := 0; i < 4; i++ {
			f.Data.Set(xSlope*float64(i)*2000+ySlope*float64(j)*2000, j, i)
		}
	}

	xGrad, yGrad, err := GradientBetweenAdjacentGridSquares{}.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	if xGrad.Data.Shape[0] != 3 || xGrad.Data.Shape[1] != 3 {
		t.Fatalf("x gradient shape: %v != [3 3]", xGrad.Data.Shape)
	}
	for _, v := range xGrad.Data.Elements {
		if different(v, xSlope, testTolerance) {
			t.Errorf("x gradient: %g != %g", v, xSlope)
		}
	}
	for _, v := range yGrad.Data.Elements {
		if different(v, ySlope, testTolerance) {
			t.Errorf("y gradient: %g != %g", v, ySlope)
		}
	}
	if xGrad.Name != "gradient_of_air_temperature" {
		t.Errorf("name: %s", xGrad.Name)
	}
	if xGrad.Units != "K m-1" {
		t.Errorf("units: %s", xGrad.Units)
	}

	// The gradient of a linear field matches the regression slope of the
	// field against its coordinate.
	xi := f.DimIndex("projection_x_coordinate")
	row := make([]float64, 4)
	for i := range row {
		row[i] = f.Data.Get(1, i)
	}
	slope, _, _, _, _, _ := stats.LinearRegression(f.Dims[xi].Points, row)
	if different(slope, xGrad.Data.Get(1, 1), testTolerance) {
		t.Errorf("gradient %g does not match regression slope %g", xGrad.Data.Get(1, 1), slope)
	}
}

func TestGradientRegrid(t *testing.T) {
	f := testField(t, "f", 3, 4, 2000)
	for j := 0; j < 3; j++ {
		for i := 0; i < 4; i++ {
			f.Data.Set(0.5*float64(i)*2000, j, i)
		}
	}
	xGrad, yGrad, err := GradientBetweenAdjacentGridSquares{Regrid: true}.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	// Regridded gradients come back on the input grid.
	if xGrad.Data.Shape[0] != 3 || xGrad.Data.Shape[1] != 4 {
		t.Fatalf("regridded x gradient shape: %v != [3 4]", xGrad.Data.Shape)
	}
	if yGrad.Data.Shape[0] != 3 || yGrad.Data.Shape[1] != 4 {
		t.Fatalf("regridded y gradient shape: %v != [3 4]", yGrad.Data.Shape)
	}
	xi := xGrad.DimIndex("projection_x_coordinate")
	for i, p := range xGrad.Dims[xi].Points {
		if different(p, float64(i)*2000, testTolerance) {
			t.Errorf("regridded x point %d: %g", i, p)
		}
	}
	for _, v := range xGrad.Data.Elements {
		if different(v, 0.5, testTolerance) {
			t.Errorf("regridded x gradient: %g != 0.5", v)
		}
	}
}

func TestGridSpacingUnsupportedUnit(t *testing.T) {
	f := testField(t, "f", 3, 4, 2000)
	if _, err := GridSpacing(f, "x", "furlongs", DefaultRTol); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}
