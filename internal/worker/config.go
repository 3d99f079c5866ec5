// Package worker warms the crime snapshot cache for busy tourist areas so
// that route scoring rarely waits on the upstream feed.
package worker

import (
	"cmp"
	"slices"
	"time"
)

// RefreshTarget is a named area whose crime snapshots are kept warm.
type RefreshTarget struct {
	// Name is the human-readable name of the target.
	Name string

	// Points are the coordinates to warm, usually landmarks and stations.
	Points []Point

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// RefreshConfig holds configuration for the crime refresh job.
type RefreshConfig struct {
	// Targets are the areas to refresh. If empty, DefaultRefreshTargets is used.
	Targets []RefreshTarget

	// Concurrency bounds concurrent feed lookups.
	// Default: 3
	Concurrency int

	// Timeout bounds the lookup for a single point.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:     DefaultRefreshTargets(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultRefreshTargets returns hotspots in England, Wales and Northern
// Ireland. Scotland is not covered by the street-level feed.
func DefaultRefreshTargets() []RefreshTarget {
	return []RefreshTarget{
		{
			Name:     "London",
			Priority: 1,
			Points: []Point{
				{Lat: 51.5007, Lng: -0.1246}, // Westminster
				{Lat: 51.5081, Lng: -0.0759}, // Tower of London
				{Lat: 51.5194, Lng: -0.1270}, // British Museum
				{Lat: 51.5080, Lng: -0.1281}, // Trafalgar Square
				{Lat: 51.5138, Lng: -0.0984}, // St Paul's
				{Lat: 51.5033, Lng: -0.1196}, // London Eye
				{Lat: 51.5117, Lng: -0.1240}, // Covent Garden
				{Lat: 51.5308, Lng: -0.1238}, // King's Cross
			},
		},
		{
			Name:     "Manchester",
			Priority: 2,
			Points: []Point{
				{Lat: 53.4794, Lng: -2.2453}, // Albert Square
				{Lat: 53.4774, Lng: -2.2309}, // Piccadilly
			},
		},
		{
			Name:     "Birmingham",
			Priority: 2,
			Points: []Point{
				{Lat: 52.4797, Lng: -1.9027}, // Victoria Square
				{Lat: 52.4778, Lng: -1.8990}, // New Street
			},
		},
		{
			Name:     "Liverpool",
			Priority: 2,
			Points: []Point{
				{Lat: 53.4001, Lng: -2.9925}, // Royal Albert Dock
			},
		},
		{
			Name:     "Bath",
			Priority: 3,
			Points: []Point{
				{Lat: 51.3811, Lng: -2.3590}, // Roman Baths
			},
		},
		{
			Name:     "York",
			Priority: 3,
			Points: []Point{
				{Lat: 53.9620, Lng: -1.0819}, // York Minster
			},
		},
		{
			Name:     "Oxford",
			Priority: 3,
			Points: []Point{
				{Lat: 51.7548, Lng: -1.2544}, // Radcliffe Camera
			},
		},
		{
			Name:     "Cardiff",
			Priority: 3,
			Points: []Point{
				{Lat: 51.4816, Lng: -3.1791}, // Cardiff Castle
			},
		},
		{
			Name:     "Belfast",
			Priority: 3,
			Points: []Point{
				{Lat: 54.5964, Lng: -5.9301}, // City Hall
			},
		},
	}
}

// AllPoints returns all points in priority order.
func (c RefreshConfig) AllPoints() []Point {
	targets := make([]RefreshTarget, len(c.Targets))
	copy(targets, c.Targets)

	slices.SortStableFunc(targets, func(a, b RefreshTarget) int {
		return cmp.Compare(a.Priority, b.Priority)
	})

	var points []Point
	for _, t := range targets {
		points = append(points, t.Points...)
	}
	return points
}

// TotalPoints returns the total number of points across all targets.
func (c RefreshConfig) TotalPoints() int {
	total := 0
	for _, t := range c.Targets {
		total += len(t.Points)
	}
	return total
}
