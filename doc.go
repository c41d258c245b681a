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

// Package metpost provides post-processing operations for gridded
// meteorological forecast data. Forecast fields are labelled
// multi-dimensional arrays carrying spatial, temporal and ensemble
// coordinates. The package contains the field abstraction and spatial
// utilities (grid geometry, adjacent-cell differences and gradients, and
// occurrence-within-vicinity processing); package nbhood builds on it to
// provide neighbourhood smoothing partitioned by a masking coordinate.
package metpost

import "github.com/sirupsen/logrus"

// Log reports progress during long-running operations. By default it is the
// logrus standard logger; callers may replace it or adjust its level.
var Log = logrus.StandardLogger()
