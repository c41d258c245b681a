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

	"github.com/spatialmodel/metpost"
)

// ApplyNeighbourhoodWithMask applies neighbourhood processing to a field
// once per category of a masking coordinate, restricting each pass to the
// cells belonging to that category, and returns a field with the masking
// coordinate as a new leading dimension. Cells that had no neighbourhood
// data under a category are NaN under that category; collapse the coordinate
// afterwards with CollapseMaskedCoordinate.
type ApplyNeighbourhoodWithMask struct {
	coordForMasking string
	np              *NeighbourhoodProcessing
}

// NewApplyNeighbourhoodWithMask creates the plugin from the given
// configuration, which must name the coordinate used for masking.
func NewApplyNeighbourhoodWithMask(cfg Config) (*ApplyNeighbourhoodWithMask, error) {
	if cfg.CoordForMasking == "" {
		return nil, fmt.Errorf("%w: coord_for_masking must be set", metpost.ErrInvalidArgument)
	}
	np, err := NewNeighbourhoodProcessing(cfg)
	if err != nil {
		return nil, err
	}
	return &ApplyNeighbourhoodWithMask{coordForMasking: cfg.CoordForMasking, np: np}, nil
}

// Process applies the configured neighbourhood to every 2D spatial slice of
// f, once per category slice of maskField along the masking coordinate. The
// per-category results are concatenated into a new masking dimension, and
// the dimension order of the input is restored behind it.
func (p *ApplyNeighbourhoodWithMask) Process(f, maskField *metpost.Field) (*metpost.Field, error) {
	if maskField.DimIndex(p.coordForMasking) < 0 {
		return nil, fmt.Errorf("%w: mask field %s has no dimension %s",
			metpost.ErrInvalidArgument, maskField.Name, p.coordForMasking)
	}
	if !metpost.SpatialCoordsMatch(f, maskField) {
		return nil, fmt.Errorf("%w: field %s and mask field %s do not share spatial coordinates",
			metpost.ErrSpatialMismatch, f.Name, maskField.Name)
	}
	nReal := 1
	if i := f.DimIndex("realization"); i >= 0 {
		nReal = f.Data.Shape[i]
	}
	yc, _, err := f.CoordByAxis("y")
	if err != nil {
		return nil, err
	}
	xc, _, err := f.CoordByAxis("x")
	if err != nil {
		return nil, err
	}
	// Slices of the mask must store y before x so that they line up with the
	// slices of f element for element.
	maskField, err = metpost.ReorderDims(maskField, []string{yc.Name, xc.Name})
	if err != nil {
		return nil, err
	}
	maskSlices, err := metpost.SlicesOver(maskField, p.coordForMasking)
	if err != nil {
		return nil, err
	}

	metpost.Log.Debugf("nbhood: applying neighbourhood to %s under %d categories of %s",
		f.Name, len(maskSlices), p.coordForMasking)

	res, err := metpost.MapSlices(f, []string{yc.Name, xc.Name}, func(slice *metpost.Field) (*metpost.Field, error) {
		r, err := p.np.cellRadius(slice, nReal)
		if err != nil {
			return nil, err
		}
		parts := make([]*metpost.Field, len(maskSlices))
		for k, maskSlice := range maskSlices {
			out := p.np.applyKernel(slice, inclusionFromMask(maskSlice), r)
			category, ok := maskSlice.ScalarCoord(p.coordForMasking)
			if !ok {
				return nil, fmt.Errorf("%w: mask slice %d is missing its %s coordinate",
					metpost.ErrConcatenation, k, p.coordForMasking)
			}
			out.AddScalarCoord(category)
			if err := out.PromoteScalar(p.coordForMasking); err != nil {
				return nil, err
			}
			parts[k] = out
		}
		conc, err := metpost.Concat(parts, p.coordForMasking)
		if err != nil {
			return nil, err
		}
		return metpost.EnforceCoordOrder(conc, slice)
	})
	if err != nil {
		return nil, err
	}
	return metpost.EnforceCoordOrder(res, f)
}
