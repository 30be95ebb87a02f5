// Package preset defines the static catalog of compression aggressiveness
// levels and the degradation ordering between them.
package preset

import (
	"fmt"
	"strings"
)

// Well-known preset names, least to most aggressive.
const (
	Lossless = "lossless"
	Balanced = "balanced"
	Max      = "max"
)

// Config holds the resolved parameters for a named preset.
// TargetDPI 0 means "do not downsample images".
type Config struct {
	Name               string
	TargetDPI          int
	Quality            int // JPEG quality 0-100
	PreserveMetadata   bool
	AllowRasterization bool
	Description        string
}

// catalog is ordered least to most aggressive. Degradation walks this order
// backwards: each preset falls back to the next milder one.
var catalog = []Config{
	{
		Name:             Lossless,
		TargetDPI:        0,
		Quality:          100,
		PreserveMetadata: true,
		Description:      "structural optimization only, images untouched",
	},
	{
		Name:             Balanced,
		TargetDPI:        150,
		Quality:          65,
		PreserveMetadata: true,
		Description:      "downsample to 150 DPI, good quality/size trade-off",
	},
	{
		Name:               Max,
		TargetDPI:          120,
		Quality:            40,
		AllowRasterization: true,
		Description:        "smallest output, visible quality loss possible",
	},
}

// Lookup resolves a preset by name (case-insensitive).
func Lookup(name string) (Config, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, c := range catalog {
		if c.Name == n {
			return c, nil
		}
	}
	return Config{}, fmt.Errorf("unknown preset %q (valid: %s)", name, strings.Join(Names(), ", "))
}

// Names returns all preset names, least to most aggressive.
func Names() []string {
	names := make([]string, len(catalog))
	for i, c := range catalog {
		names[i] = c.Name
	}
	return names
}

// Fallback returns the next milder preset for name, or false if none exists
// (lossless is the floor of the degradation ladder).
func Fallback(name string) (Config, bool) {
	for i, c := range catalog {
		if c.Name == name {
			if i == 0 {
				return Config{}, false
			}
			return catalog[i-1], true
		}
	}
	return Config{}, false
}

// Chain returns the full degradation path starting at name, e.g.
// Chain("max") = [max, balanced, lossless].
func Chain(name string) ([]Config, error) {
	start, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	chain := []Config{start}
	cur := start.Name
	for {
		next, ok := Fallback(cur)
		if !ok {
			return chain, nil
		}
		chain = append(chain, next)
		cur = next.Name
	}
}
