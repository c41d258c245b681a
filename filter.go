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
	"math"

	"github.com/ctessum/sparse"
)

// MaximumFilter computes the running maximum of a 2D array over a square
// window with the given edge length, centred on each cell. The window is
// clipped at the grid edges. The filter is separable, so it runs as a row
// pass followed by a column pass.
func MaximumFilter(a *sparse.DenseArray, size int) *sparse.DenseArray {
	if size <= 1 {
		return a.Copy()
	}
	r := size / 2
	ny, nx := a.Shape[0], a.Shape[1]

	rows := sparse.ZerosDense(ny, nx)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			lo, hi := i-r, i+r
			if lo < 0 {
				lo = 0
			}
			if hi > nx-1 {
				hi = nx - 1
			}
			m := math.Inf(-1)
			for k := lo; k <= hi; k++ {
				if v := a.Get(j, k); v > m {
					m = v
				}
			}
			rows.Set(m, j, i)
		}
	}

	out := sparse.ZerosDense(ny, nx)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			lo, hi := j-r, j+r
			if lo < 0 {
				lo = 0
			}
			if hi > ny-1 {
				hi = ny - 1
			}
			m := math.Inf(-1)
			for k := lo; k <= hi; k++ {
				if v := rows.Get(k, i); v > m {
					m = v
				}
			}
			out.Set(m, j, i)
		}
	}
	return out
}
