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
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/metpost"
	"github.com/spf13/cast"
)

// Config holds the configuration for neighbourhood processing. It can be
// filled directly or decoded from TOML with LoadConfig.
type Config struct {
	// CoordForMasking names the coordinate used for masking. It is required
	// by ApplyNeighbourhoodWithMask and ignored by plain neighbourhood
	// processing.
	CoordForMasking string `toml:"coord_for_masking"`

	// Radii is either a single neighbourhood radius in metres, or a list of
	// radii corresponding to LeadTimes.
	Radii interface{} `toml:"radii"`

	// LeadTimes holds the forecast periods, in hours, at which the radii in
	// Radii apply. Empty when the radius is fixed.
	LeadTimes []float64 `toml:"lead_times"`

	// EnsFactor adjusts the neighbourhood size when the field has more than
	// one ensemble realization. A factor of 1 conserves ensemble members if
	// every grid square is considered the equivalent of one member.
	EnsFactor float64 `toml:"ens_factor"`

	// WeightedMode makes kernel weights decrease with distance from the
	// centre instead of being constant across the window.
	WeightedMode bool `toml:"weighted_mode"`

	// SumOrFraction selects whether neighbourhood processing returns the
	// sum over the neighbourhood or the sum divided by the neighbourhood
	// weight.
	SumOrFraction string `toml:"sum_or_fraction"`

	// ReMask restores the unprocessed mask onto the processed output, so
	// that no values appear in areas that were originally masked.
	ReMask bool `toml:"re_mask"`
}

// DefaultConfig returns a configuration with a fixed radius in metres and
// the default settings: ens_factor 1, unweighted kernel, fraction output.
func DefaultConfig(radiusM float64) Config {
	return Config{Radii: radiusM, EnsFactor: 1, SumOrFraction: ModeFraction}
}

// LoadConfig decodes a TOML neighbourhood configuration and validates it.
// Fields absent from the input take the DefaultConfig values.
func LoadConfig(r io.Reader) (*Config, error) {
	c := DefaultConfig(0)
	c.Radii = nil
	if _, err := toml.DecodeReader(r, &c); err != nil {
		return nil, fmt.Errorf("nbhood: decoding configuration: %v", err)
	}
	if err := c.Valid(); err != nil {
		return nil, err
	}
	return &c, nil
}

// RadiiList returns the configured radii as a list, whether the
// configuration holds a single radius or one radius per lead time.
func (c *Config) RadiiList() ([]float64, error) {
	if c.Radii == nil {
		return nil, fmt.Errorf("%w: no neighbourhood radii configured", metpost.ErrInvalidArgument)
	}
	if v, ok := c.Radii.([]float64); ok {
		return append([]float64(nil), v...), nil
	}
	if v, err := cast.ToFloat64E(c.Radii); err == nil {
		return []float64{v}, nil
	}
	raw, err := cast.ToSliceE(c.Radii)
	if err != nil {
		return nil, fmt.Errorf("%w: radii must be a number or a list of numbers: %v",
			metpost.ErrInvalidArgument, err)
	}
	radii := make([]float64, len(raw))
	for i, rv := range raw {
		radii[i], err = cast.ToFloat64E(rv)
		if err != nil {
			return nil, fmt.Errorf("%w: radii must be a number or a list of numbers: %v",
				metpost.ErrInvalidArgument, err)
		}
	}
	return radii, nil
}

// Valid checks the configuration for consistency.
func (c *Config) Valid() error {
	radii, err := c.RadiiList()
	if err != nil {
		return err
	}
	for _, r := range radii {
		if r <= 0 {
			return fmt.Errorf("%w: neighbourhood radius must be positive, got %gm",
				metpost.ErrInvalidArgument, r)
		}
	}
	if len(radii) > 1 && len(c.LeadTimes) != len(radii) {
		return fmt.Errorf("%w: %d radii configured for %d lead times",
			metpost.ErrInvalidArgument, len(radii), len(c.LeadTimes))
	}
	if len(c.LeadTimes) > 0 {
		if len(c.LeadTimes) != len(radii) {
			return fmt.Errorf("%w: %d radii configured for %d lead times",
				metpost.ErrInvalidArgument, len(radii), len(c.LeadTimes))
		}
		for i := 1; i < len(c.LeadTimes); i++ {
			if c.LeadTimes[i] <= c.LeadTimes[i-1] {
				return fmt.Errorf("%w: lead times must be strictly increasing",
					metpost.ErrInvalidArgument)
			}
		}
	}
	if c.EnsFactor <= 0 {
		return fmt.Errorf("%w: ens_factor must be positive, got %g",
			metpost.ErrInvalidArgument, c.EnsFactor)
	}
	if c.SumOrFraction != ModeSum && c.SumOrFraction != ModeFraction {
		return fmt.Errorf("%w: sum_or_fraction must be %q or %q, got %q",
			metpost.ErrInvalidArgument, ModeSum, ModeFraction, c.SumOrFraction)
	}
	return nil
}
