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

	"github.com/ctessum/sparse"
)

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func checkVicinity(t *testing.T, got *Field, want [][]float64) {
	t.Helper()
	for j := range want {
		for i := range want[j] {
			if different(got.Data.Get(j, i), want[j][i], testTolerance) {
				t.Errorf("cell (%d,%d): %g != %g", j, i, got.Data.Get(j, i), want[j][i])
			}
		}
	}
}

func TestVicinityZeroRadius(t *testing.T) {
	f := testField(t, "precipitation_flag", 4, 4, 2000)
	for e := range f.Data.Elements {
		f.Data.Elements[e] = float64(e % 3)
	}
	o, err := NewOccurrenceWithinVicinity(VicinityConfig{GridPointRadius: intPtr(0)})
	if err != nil {
		t.Fatal(err)
	}
	got, err := o.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	for e, v := range f.Data.Elements {
		if different(got.Data.Elements[e], v, testTolerance) {
			t.Errorf("element %d changed: %g != %g", e, got.Data.Elements[e], v)
		}
	}
}

func TestVicinitySpreadsOccurrence(t *testing.T) {
	f := testField(t, "precipitation_flag", 5, 5, 2000)
	f.Data.Set(1, 2, 2)
	o, err := NewOccurrenceWithinVicinity(VicinityConfig{GridPointRadius: intPtr(1)})
	if err != nil {
		t.Fatal(err)
	}
	got, err := o.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	checkVicinity(t, got, [][]float64{
		{0, 0, 0, 0, 0},
		{0, 1, 1, 1, 0},
		{0, 1, 1, 1, 0},
		{0, 1, 1, 1, 0},
		{0, 0, 0, 0, 0},
	})
}

// A radius in metres resolves to the same kernel as the equivalent number of
// grid cells.
func TestVicinityRadiusMetres(t *testing.T) {
	f := testField(t, "precipitation_flag", 5, 5, 2000)
	f.Data.Set(1, 0, 0)
	o, err := NewOccurrenceWithinVicinity(VicinityConfig{Radius: floatPtr(2200)})
	if err != nil {
		t.Fatal(err)
	}
	got, err := o.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	checkVicinity(t, got, [][]float64{
		{1, 1, 0, 0, 0},
		{1, 1, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
	})
}

// Overlapping vicinities of a non-binary field take the maximum value.
func TestVicinityMaximum(t *testing.T) {
	f := testField(t, "rainfall_rate", 3, 5, 2000)
	f.Data.Set(2, 1, 1)
	f.Data.Set(5, 1, 3)
	o, err := NewOccurrenceWithinVicinity(VicinityConfig{GridPointRadius: intPtr(1)})
	if err != nil {
		t.Fatal(err)
	}
	got, err := o.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	checkVicinity(t, got, [][]float64{
		{2, 2, 5, 5, 5},
		{2, 2, 5, 5, 5},
		{2, 2, 5, 5, 5},
	})
}

// An occurrence on a sea point must not spread onto land, and vice versa.
func TestVicinityLandSea(t *testing.T) {
	f := testField(t, "precipitation_flag", 4, 4, 2000)
	f.Data.Set(1, 1, 1) // hot sea cell next to the coastline

	landMask := testField(t, LandMaskName, 4, 4, 2000)
	for i := 0; i < 4; i++ {
		landMask.Data.Set(1, 2, i)
		landMask.Data.Set(1, 3, i)
	}

	o, err := NewOccurrenceWithinVicinity(VicinityConfig{
		GridPointRadius: intPtr(1),
		LandMask:        landMask,
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := o.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	checkVicinity(t, got, [][]float64{
		{1, 1, 1, 0},
		{1, 1, 1, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})

	// Without the land mask the occurrence crosses the coastline.
	o, err = NewOccurrenceWithinVicinity(VicinityConfig{GridPointRadius: intPtr(1)})
	if err != nil {
		t.Fatal(err)
	}
	got, err = o.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	checkVicinity(t, got, [][]float64{
		{1, 1, 1, 0},
		{1, 1, 1, 0},
		{1, 1, 1, 0},
		{0, 0, 0, 0},
	})
}

// Masked cells neither spread their values nor change.
func TestVicinityMasked(t *testing.T) {
	f := testField(t, "precipitation_flag", 4, 4, 2000)
	f.Data.Set(50, 0, 0)
	f.EnsureMask()
	f.Mask.Set(1, 0, 0)

	o, err := NewOccurrenceWithinVicinity(VicinityConfig{GridPointRadius: intPtr(1)})
	if err != nil {
		t.Fatal(err)
	}
	got, err := o.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	if different(got.Data.Get(0, 0), 50, testTolerance) {
		t.Errorf("masked cell changed: %g != 50", got.Data.Get(0, 0))
	}
	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			if j == 0 && i == 0 {
				continue
			}
			if different(got.Data.Get(j, i), 0, testTolerance) {
				t.Errorf("masked value leaked to (%d,%d): %g", j, i, got.Data.Get(j, i))
			}
		}
	}
	if got.Mask == nil || got.Mask.Get(0, 0) != 1 {
		t.Error("mask not preserved")
	}
}

// Each 2D slice of a multi-dimensional field is processed independently.
func TestVicinityMultiDim(t *testing.T) {
	dims := append([]Coord{{Name: "realization", Points: []float64{0, 1}, Units: "1"}},
		testGrid(3, 3, 2000)...)
	f, err := NewField("precipitation_flag", "1", sparse.ZerosDense(2, 3, 3), dims)
	if err != nil {
		t.Fatal(err)
	}
	f.Data.Set(1, 0, 0, 0)
	f.Data.Set(1, 1, 2, 2)

	o, err := NewOccurrenceWithinVicinity(VicinityConfig{GridPointRadius: intPtr(1)})
	if err != nil {
		t.Fatal(err)
	}
	got, err := o.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"realization", "projection_y_coordinate", "projection_x_coordinate"} {
		if got.Dims[i].Name != want {
			t.Fatalf("dimension %d: %s != %s", i, got.Dims[i].Name, want)
		}
	}
	if different(got.Data.Get(0, 1, 1), 1, testTolerance) || different(got.Data.Get(0, 2, 2), 0, testTolerance) {
		t.Error("realization 0 processed incorrectly")
	}
	if different(got.Data.Get(1, 1, 1), 1, testTolerance) || different(got.Data.Get(1, 0, 0), 0, testTolerance) {
		t.Error("realization 1 processed incorrectly")
	}
}

func TestVicinityErrors(t *testing.T) {
	if _, err := NewOccurrenceWithinVicinity(VicinityConfig{
		Radius:          floatPtr(2000),
		GridPointRadius: intPtr(1),
	}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("both radius options: got %v, want ErrInvalidArgument", err)
	}

	badName := testField(t, "topography_mask", 4, 4, 2000)
	if _, err := NewOccurrenceWithinVicinity(VicinityConfig{LandMask: badName}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("misnamed land mask: got %v, want ErrInvalidArgument", err)
	}

	o, err := NewOccurrenceWithinVicinity(VicinityConfig{
		GridPointRadius: intPtr(1),
		LandMask:        testField(t, LandMaskName, 5, 5, 2000),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Process(testField(t, "f", 4, 4, 2000)); !errors.Is(err, ErrSpatialMismatch) {
		t.Errorf("mismatched land mask grid: got %v, want ErrSpatialMismatch", err)
	}
}

func TestMaximumFilter(t *testing.T) {
	a := sparse.ZerosDense(3, 3)
	a.Set(4, 1, 1)
	a.Set(9, 0, 2)
	got := MaximumFilter(a, 3)
	want := [][]float64{
		{4, 9, 9},
		{4, 9, 9},
		{4, 4, 4},
	}
	for j := range want {
		for i := range want[j] {
			if different(got.Get(j, i), want[j][i], testTolerance) {
				t.Errorf("cell (%d,%d): %g != %g", j, i, got.Get(j, i), want[j][i])
			}
		}
	}
	// A window of one cell is the identity.
	id := MaximumFilter(a, 1)
	for e, v := range a.Elements {
		if different(id.Elements[e], v, testTolerance) {
			t.Errorf("identity filter changed element %d", e)
		}
	}
}
