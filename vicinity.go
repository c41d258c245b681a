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

// fillReplacement stands in for masked or out-of-category cells so that they
// can never win a windowed maximum. It must be larger in magnitude than any
// legitimate data value.
const fillReplacement = 1e30

// LandMaskName is the required name of a binary land mask field.
const LandMaskName = "land_binary_mask"

// VicinityConfig configures OccurrenceWithinVicinity. Exactly one of Radius
// and GridPointRadius may be set; if neither is set the vicinity degenerates
// to the central cell only.
type VicinityConfig struct {
	// Radius is the vicinity radius in metres. It may only be used with
	// data on an equal-area projection.
	Radius *float64

	// GridPointRadius is the vicinity radius as a number of grid cells. It
	// works with any projection, but the effective kernel shape in real
	// space may then be irregular.
	GridPointRadius *int

	// LandMask is binary land-sea mask data, true (≥ 0.5) for land points.
	// When set, in-vicinity processing only mixes points of a like mask
	// value, so occurrences never spread across the coastline.
	LandMask *Field
}

// OccurrenceWithinVicinity calculates whether a phenomenon occurs within a
// specified radius of each grid cell. Occurrences within the vicinity are
// maximised, so that every cell in the vicinity records the occurrence; for
// non-binary fields, overlapping vicinities take the maximum value.
type OccurrenceWithinVicinity struct {
	radius          *float64
	gridPointRadius *int

	landMask *Field
}

// NewOccurrenceWithinVicinity creates an OccurrenceWithinVicinity plugin
// from the given configuration.
func NewOccurrenceWithinVicinity(c VicinityConfig) (*OccurrenceWithinVicinity, error) {
	if c.Radius != nil && c.GridPointRadius != nil {
		return nil, fmt.Errorf("%w: only one of Radius and GridPointRadius may be set",
			ErrInvalidArgument)
	}
	o := &OccurrenceWithinVicinity{radius: c.Radius, gridPointRadius: c.GridPointRadius}
	if c.LandMask != nil {
		if c.LandMask.Name != LandMaskName {
			return nil, fmt.Errorf("%w: expected land mask field to be called %s, not %s",
				ErrInvalidArgument, LandMaskName, c.LandMask.Name)
		}
		o.landMask = c.LandMask
	}
	return o, nil
}

// maximumWithinVicinity spreads occurrences within the vicinity radius over
// one 2D spatial slice. Masked cells never contribute to a maximum and
// retain their original values. When a land mask is configured, each land
// category is processed separately and the per-cell results recombined, so
// that maxima never cross the category boundary.
func (o *OccurrenceWithinVicinity) maximumWithinVicinity(slice *Field, landCategory *sparse.DenseArrayInt) (*Field, error) {
	var r int
	switch {
	case o.radius != nil:
		cells, err := DistanceToGridCells(slice, *o.radius, "x", true)
		if err != nil {
			return nil, err
		}
		r = int(cells)
	case o.gridPointRadius != nil:
		r = *o.gridPointRadius
	}
	size := 2*r + 1

	unmasked := slice.Data.Copy()
	if slice.Mask != nil {
		for e, m := range slice.Mask.Elements {
			if m != 0 {
				unmasked.Elements[e] = -fillReplacement
			}
		}
	}

	var maxData *sparse.DenseArray
	if landCategory != nil {
		maxData = sparse.ZerosDense(slice.Data.Shape...)
		for _, category := range []int{1, 0} {
			matched := unmasked.Copy()
			for e, c := range landCategory.Elements {
				if c != category {
					matched.Elements[e] = -fillReplacement
				}
			}
			filtered := MaximumFilter(matched, size)
			for e, c := range landCategory.Elements {
				if c == category {
					maxData.Elements[e] = filtered.Elements[e]
				}
			}
		}
	} else {
		maxData = MaximumFilter(unmasked, size)
	}

	out := slice.Copy()
	for e := range out.Data.Elements {
		if slice.Mask == nil || slice.Mask.Elements[e] == 0 {
			out.Data.Elements[e] = maxData.Elements[e]
		}
	}
	return out, nil
}

// Process applies the vicinity maximum to every 2D spatial slice of the
// field and reassembles the slices with the original dimension order.
func (o *OccurrenceWithinVicinity) Process(f *Field) (*Field, error) {
	if o.landMask != nil && !SpatialCoordsMatch(f, o.landMask) {
		return nil, fmt.Errorf("%w: field %s and the land mask do not share spatial coordinates",
			ErrSpatialMismatch, f.Name)
	}
	yc, _, err := f.CoordByAxis("y")
	if err != nil {
		return nil, err
	}
	xc, _, err := f.CoordByAxis("x")
	if err != nil {
		return nil, err
	}
	// The land categories must store y before x so that they line up with
	// the slices of f element for element.
	var landCategory *sparse.DenseArrayInt
	if o.landMask != nil {
		lm, err := ReorderDims(o.landMask, []string{yc.Name, xc.Name})
		if err != nil {
			return nil, err
		}
		landCategory = sparse.ZerosDenseInt(lm.Data.Shape...)
		for e, v := range lm.Data.Elements {
			if v >= 0.5 {
				landCategory.Elements[e] = 1
			}
		}
	}
	Log.Debugf("metpost: occurrence within vicinity over field %s", f.Name)
	res, err := MapSlices(f, []string{yc.Name, xc.Name}, func(slice *Field) (*Field, error) {
		return o.maximumWithinVicinity(slice, landCategory)
	})
	if err != nil {
		return nil, err
	}
	return EnforceCoordOrder(res, f)
}
