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

// Package nbhood provides neighbourhood processing of gridded forecast
// fields: smoothing of each 2D spatial slice over a square kernel,
// optionally restricted by an inclusion mask, application of the smoothing
// independently under each category of a masking coordinate, and the
// weighted collapse of that coordinate afterwards.
package nbhood

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/metpost"
)

// Output modes for neighbourhood processing.
const (
	// ModeSum returns the weighted sum over the neighbourhood.
	ModeSum = "sum"
	// ModeFraction returns the weighted sum divided by the neighbourhood
	// weight, i.e. a weighted mean.
	ModeFraction = "fraction"
)

// NeighbourhoodProcessing smooths each 2D spatial slice of a field over a
// square neighbourhood kernel. The kernel radius is given in metres, either
// fixed or varying with forecast period, and is converted to a number of
// grid cells per slice. Cells excluded by an inclusion mask contribute
// neither to the sum nor to the normalizing weight; a cell with no included
// neighbours at all becomes NaN in the output.
type NeighbourhoodProcessing struct {
	radii         []float64
	leadTimes     []float64
	ensFactor     float64
	weightedMode  bool
	sumOrFraction string
	reMask        bool
}

// NewNeighbourhoodProcessing creates a NeighbourhoodProcessing plugin from
// the given configuration.
func NewNeighbourhoodProcessing(cfg Config) (*NeighbourhoodProcessing, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	radii, err := cfg.RadiiList()
	if err != nil {
		return nil, err
	}
	return &NeighbourhoodProcessing{
		radii:         radii,
		leadTimes:     cfg.LeadTimes,
		ensFactor:     cfg.EnsFactor,
		weightedMode:  cfg.WeightedMode,
		sumOrFraction: cfg.SumOrFraction,
		reMask:        cfg.ReMask,
	}, nil
}

// radiusForSlice returns the kernel radius in metres for one 2D slice. When
// radii vary with lead time, the radius is linearly interpolated at the
// slice's forecast period, clamped to the configured range.
func (p *NeighbourhoodProcessing) radiusForSlice(slice *metpost.Field) (float64, error) {
	if len(p.leadTimes) == 0 {
		return p.radii[0], nil
	}
	lt, ok := slice.ScalarCoord("forecast_period")
	if !ok {
		return 0, fmt.Errorf("%w: radii vary by lead time but the field has no forecast_period coordinate",
			metpost.ErrInvalidArgument)
	}
	return interpolateRadius(p.leadTimes, p.radii, lt.Points[0]), nil
}

func interpolateRadius(leadTimes, radii []float64, t float64) float64 {
	if t <= leadTimes[0] {
		return radii[0]
	}
	n := len(leadTimes)
	if t >= leadTimes[n-1] {
		return radii[n-1]
	}
	for i := 1; i < n; i++ {
		if t <= leadTimes[i] {
			frac := (t - leadTimes[i-1]) / (leadTimes[i] - leadTimes[i-1])
			return radii[i-1] + frac*(radii[i]-radii[i-1])
		}
	}
	return radii[n-1]
}

// cellRadius resolves the kernel radius for a slice to a grid cell count,
// scaling it down when the field has more than one ensemble realization so
// that the neighbourhood aggregates a comparable number of values.
func (p *NeighbourhoodProcessing) cellRadius(slice *metpost.Field, nRealizations int) (int, error) {
	radius, err := p.radiusForSlice(slice)
	if err != nil {
		return 0, err
	}
	cells, err := metpost.DistanceToGridCells(slice, radius, "x", true)
	if err != nil {
		return 0, err
	}
	r := int(cells)
	if nRealizations > 1 {
		r = int(p.ensFactor * float64(r) / math.Sqrt(float64(nRealizations)))
		if r < 1 {
			r = 1
		}
	}
	return r, nil
}

// kernelWeight returns the kernel weight at offset (dj, di) from the centre
// for radius r. In weighted mode the weight decays linearly with distance
// from the centre, reaching zero just outside the radius; otherwise every
// cell in the square window has unit weight.
func (p *NeighbourhoodProcessing) kernelWeight(dj, di, r int) float64 {
	if !p.weightedMode {
		return 1
	}
	d := math.Sqrt(float64(dj*dj + di*di))
	w := 1 - d/float64(r+1)
	if w < 0 {
		return 0
	}
	return w
}

// applyKernel smooths one 2D slice. include, when non-nil, marks the cells
// (value 1) that participate in this neighbourhood pass; excluded cells
// become NaN in the output.
func (p *NeighbourhoodProcessing) applyKernel(slice *metpost.Field, include *sparse.DenseArrayInt, r int) *metpost.Field {
	ny, nx := slice.Data.Shape[0], slice.Data.Shape[1]
	out := slice.Copy()
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			if include != nil && include.Get(j, i) == 0 {
				out.Data.Set(math.NaN(), j, i)
				continue
			}
			var sum, wsum float64
			for dj := -r; dj <= r; dj++ {
				jj := j + dj
				if jj < 0 || jj >= ny {
					continue
				}
				for di := -r; di <= r; di++ {
					ii := i + di
					if ii < 0 || ii >= nx {
						continue
					}
					if include != nil && include.Get(jj, ii) == 0 {
						continue
					}
					if slice.IsMasked(jj, ii) {
						continue
					}
					w := p.kernelWeight(dj, di, r)
					if w <= 0 {
						continue
					}
					sum += w * slice.Data.Get(jj, ii)
					wsum += w
				}
			}
			switch {
			case wsum == 0:
				out.Data.Set(math.NaN(), j, i)
			case p.sumOrFraction == ModeSum:
				out.Data.Set(sum, j, i)
			default:
				out.Data.Set(sum/wsum, j, i)
			}
		}
	}

	if p.reMask {
		out.EnsureMask()
		if include != nil {
			for e, v := range include.Elements {
				if v == 0 {
					out.Mask.Elements[e] = 1
				}
			}
		}
	} else {
		out.Mask = nil
	}
	return out
}

// inclusionFromMask converts a 2D mask slice to an inclusion array: cells
// with values of at least 0.5 that are not element-masked participate.
func inclusionFromMask(mask *metpost.Field) *sparse.DenseArrayInt {
	include := sparse.ZerosDenseInt(mask.Data.Shape...)
	for e, v := range mask.Data.Elements {
		if v >= 0.5 && (mask.Mask == nil || mask.Mask.Elements[e] == 0) {
			include.Elements[e] = 1
		}
	}
	return include
}

// Process smooths every 2D spatial slice of the field. mask, when non-nil,
// must be a 2D field sharing the spatial coordinates of f; cells where it is
// below 0.5 are excluded from the neighbourhood.
func (p *NeighbourhoodProcessing) Process(f, mask *metpost.Field) (*metpost.Field, error) {
	yc, _, err := f.CoordByAxis("y")
	if err != nil {
		return nil, err
	}
	xc, _, err := f.CoordByAxis("x")
	if err != nil {
		return nil, err
	}
	var include *sparse.DenseArrayInt
	if mask != nil {
		if !metpost.SpatialCoordsMatch(f, mask) {
			return nil, fmt.Errorf("%w: field %s and the neighbourhood mask do not share spatial coordinates",
				metpost.ErrSpatialMismatch, f.Name)
		}
		mask, err = metpost.ReorderDims(mask, []string{yc.Name, xc.Name})
		if err != nil {
			return nil, err
		}
		include = inclusionFromMask(mask)
	}
	nReal := 1
	if i := f.DimIndex("realization"); i >= 0 {
		nReal = f.Data.Shape[i]
	}
	res, err := metpost.MapSlices(f, []string{yc.Name, xc.Name}, func(slice *metpost.Field) (*metpost.Field, error) {
		r, err := p.cellRadius(slice, nReal)
		if err != nil {
			return nil, err
		}
		return p.applyKernel(slice, include, r), nil
	})
	if err != nil {
		return nil, err
	}
	return metpost.EnforceCoordOrder(res, f)
}
