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

import "errors"

// Errors returned by field and spatial operations. Functions wrap these
// with contextual detail; match them with errors.Is.
var (
	// ErrInvalidGrid indicates that grid spacing is non-uniform along an
	// axis, or that the x and y spacings differ where equality is required.
	ErrInvalidGrid = errors.New("metpost: invalid grid")

	// ErrInvalidArgument indicates invalid configuration or arguments, such
	// as a non-positive distance, a radius that resolves to a zero cell
	// extent, or mutually exclusive options both being set.
	ErrInvalidArgument = errors.New("metpost: invalid argument")

	// ErrSpatialMismatch indicates that two fields that must share spatial
	// coordinates do not.
	ErrSpatialMismatch = errors.New("metpost: spatial coordinates do not match")

	// ErrConcatenation indicates that per-category results could not be
	// joined into a single dimension.
	ErrConcatenation = errors.New("metpost: cannot concatenate fields")

	// ErrCoordinateMismatch indicates that post-merge coordinate
	// reconciliation could not recover the dimensional structure of the
	// original field.
	ErrCoordinateMismatch = errors.New("metpost: coordinate mismatch")
)
