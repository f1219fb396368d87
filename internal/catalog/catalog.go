// Package catalog loads region bounding boxes from a YAML file.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/reefwatch/griddap-etl/internal/domain"
)

// Catalog maps region ids to bounding boxes.
type Catalog map[string]domain.BoundingBox

// file is the on-disk YAML shape:
//
//	regions:
//	  NTT:
//	    boundbox: {lat_min: -11.0, lat_max: -8.0, lon_min: 118.9, lon_max: 125.3}
type file struct {
	Regions map[string]regionSpec `yaml:"regions"`
}

type regionSpec struct {
	BoundBox boxSpec `yaml:"boundbox"`
}

type boxSpec struct {
	LatMin *float64 `yaml:"lat_min"`
	LatMax *float64 `yaml:"lat_max"`
	LonMin *float64 `yaml:"lon_min"`
	LonMax *float64 `yaml:"lon_max"`
}

// Load reads and validates the region catalog. Every region must declare all
// four bounds with lats in -90..90 and lons in -180..180.
func Load(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region catalog: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse region catalog %s: %w", path, err)
	}
	if len(f.Regions) == 0 {
		return nil, domain.Configf("region catalog %s declares no regions", path)
	}

	out := make(Catalog, len(f.Regions))
	for id, spec := range f.Regions {
		bb, err := spec.BoundBox.toBox(id)
		if err != nil {
			return nil, err
		}
		out[id] = bb
	}
	return out, nil
}

func (b boxSpec) toBox(id string) (domain.BoundingBox, error) {
	if b.LatMin == nil || b.LatMax == nil || b.LonMin == nil || b.LonMax == nil {
		return domain.BoundingBox{}, domain.Configf("region %s: boundbox must declare lat_min, lat_max, lon_min, lon_max", id)
	}
	bb := domain.BoundingBox{
		LatMin: *b.LatMin,
		LatMax: *b.LatMax,
		LonMin: *b.LonMin,
		LonMax: *b.LonMax,
	}
	for _, lat := range []float64{bb.LatMin, bb.LatMax} {
		if lat < -90 || lat > 90 {
			return domain.BoundingBox{}, domain.Configf("region %s: latitude %g out of range", id, lat)
		}
	}
	for _, lon := range []float64{bb.LonMin, bb.LonMax} {
		if lon < -180 || lon > 180 {
			return domain.BoundingBox{}, domain.Configf("region %s: longitude %g out of range", id, lon)
		}
	}
	return bb, nil
}

// Resolve looks up a region id, returning a ConfigError naming the known ids
// when it is absent. Failing here keeps bad invocations from reaching the
// network.
func (c Catalog) Resolve(id string) (domain.BoundingBox, error) {
	bb, ok := c[id]
	if !ok {
		known := make([]string, 0, len(c))
		for k := range c {
			known = append(known, k)
		}
		sort.Strings(known)
		return domain.BoundingBox{}, domain.Configf("unknown region %q, known regions: %v", id, known)
	}
	return bb, nil
}
