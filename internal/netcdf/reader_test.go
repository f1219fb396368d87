package netcdf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalDim(t *testing.T) {
	assert.Equal(t, "lat", canonicalDim("latitude"))
	assert.Equal(t, "lat", canonicalDim("LAT"))
	assert.Equal(t, "lon", canonicalDim("longitude"))
	assert.Equal(t, "time", canonicalDim("time"))
	assert.Equal(t, "zlev", canonicalDim("zlev"))
}

func TestFillValue(t *testing.T) {
	lookupFrom := func(attrs map[string]float64) attrLookup {
		return func(name string) (float64, bool) {
			v, ok := attrs[name]
			return v, ok
		}
	}

	t.Run("explicit fill beats missing_value", func(t *testing.T) {
		fill := fillValue(lookupFrom(map[string]float64{
			"_FillValue":    -9999999,
			"missing_value": -32767,
		}))
		require.NotNil(t, fill)
		assert.Equal(t, -9999999.0, *fill)
	})

	t.Run("missing_value alone is used", func(t *testing.T) {
		fill := fillValue(lookupFrom(map[string]float64{"missing_value": -32767}))
		require.NotNil(t, fill)
		assert.Equal(t, -32767.0, *fill)
	})

	t.Run("neither attribute yields nil", func(t *testing.T) {
		assert.Nil(t, fillValue(lookupFrom(nil)))
	})
}

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units string
		epoch time.Time
		scale time.Duration
	}{
		{"seconds since 1970-01-01T00:00:00Z", time.Unix(0, 0).UTC(), time.Second},
		{"hours since 2000-01-01 00:00:00", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour},
		{"days since 1900-01-01", time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			epoch, scale, err := parseTimeUnits(tt.units)
			require.NoError(t, err)
			assert.True(t, epoch.Equal(tt.epoch))
			assert.Equal(t, tt.scale, scale)
		})
	}

	t.Run("unsupported forms", func(t *testing.T) {
		for _, units := range []string{"", "fortnights since 1970-01-01", "seconds", "seconds since yesterday"} {
			_, _, err := parseTimeUnits(units)
			assert.Error(t, err, units)
		}
	})
}

func TestScatter(t *testing.T) {
	times := []time.Time{
		time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 6, 2, 0, 0, 0, 0, time.UTC),
	}

	t.Run("drops singleton dimension", func(t *testing.T) {
		// on-disk layout (time, zlev, lat, lon) with lens 2,1,2,3
		a := &axes{
			times:   times,
			lats:    []float64{10, 11},
			lons:    []float64{150, 151, 152},
			dimLens: []int{2, 1, 2, 3},
			timePos: 0, latPos: 2, lonPos: 3,
			singPos: 1, singIdx: 0,
		}
		values := make([]float64, 12)
		for i := range values {
			values[i] = float64(i)
		}
		dst := make([]float64, 12)
		require.NoError(t, a.scatter(values, dst))
		// canonical layout is also time-major here, so order is preserved
		assert.Equal(t, values, dst)
	})

	t.Run("reorders transposed dims", func(t *testing.T) {
		// on-disk layout (lat, lon, time) with lens 2,1,2
		a := &axes{
			times:   times,
			lats:    []float64{10, 11},
			lons:    []float64{150},
			dimLens: []int{2, 1, 2},
			timePos: 2, latPos: 0, lonPos: 1,
			singPos: -1,
		}
		values := []float64{1, 2, 3, 4} // (lat0,t0)(lat0,t1)(lat1,t0)(lat1,t1)
		dst := make([]float64, 4)
		require.NoError(t, a.scatter(values, dst))
		assert.Equal(t, []float64{1, 3, 2, 4}, dst)
	})

	t.Run("size mismatch rejected", func(t *testing.T) {
		a := &axes{
			times:   times[:1],
			lats:    []float64{10},
			lons:    []float64{150},
			dimLens: []int{1, 1, 1},
			timePos: 0, latPos: 1, lonPos: 2,
			singPos: -1,
		}
		err := a.scatter(make([]float64, 5), make([]float64, 1))
		assert.Error(t, err)
	})
}
