package grid

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(h int) time.Time {
	return time.Date(2021, time.June, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(h) * time.Hour)
}

func TestApplyFill(t *testing.T) {
	t.Run("explicit fill value wins", func(t *testing.T) {
		g := New([]time.Time{ts(0)}, []float64{0}, []float64{100, 101}, []string{"sst_c"})
		g.Set("sst_c", 0, 0, 0, -9.99)
		g.Set("sst_c", 0, 0, 1, 21.5)

		fill := -9.99
		g.ApplyFill("sst_c", &fill, 9.0)

		assert.True(t, math.IsNaN(g.At("sst_c", 0, 0, 0)))
		assert.Equal(t, 21.5, g.At("sst_c", 0, 0, 1))
	})

	t.Run("sentinel magnitude fallback", func(t *testing.T) {
		g := New([]time.Time{ts(0)}, []float64{0}, []float64{100, 101, 102}, []string{"chl_mg_m3"})
		g.Set("chl_mg_m3", 0, 0, 0, -9999999)
		g.Set("chl_mg_m3", 0, 0, 1, 0.42)
		g.Set("chl_mg_m3", 0, 0, 2, 9999999)

		g.ApplyFill("chl_mg_m3", nil, 9e6)

		assert.True(t, math.IsNaN(g.At("chl_mg_m3", 0, 0, 0)))
		assert.Equal(t, 0.42, g.At("chl_mg_m3", 0, 0, 1))
		assert.True(t, math.IsNaN(g.At("chl_mg_m3", 0, 0, 2)))
	})
}

func TestClamp(t *testing.T) {
	g := New([]time.Time{ts(0)}, []float64{0}, []float64{100, 101, 102}, []string{"swh_m"})
	g.Set("swh_m", 0, 0, 0, -0.5)
	g.Set("swh_m", 0, 0, 1, 3.2)
	g.Set("swh_m", 0, 0, 2, 55)

	g.Clamp("swh_m", 0, 40)

	assert.True(t, math.IsNaN(g.At("swh_m", 0, 0, 0)))
	assert.Equal(t, 3.2, g.At("swh_m", 0, 0, 1))
	assert.True(t, math.IsNaN(g.At("swh_m", 0, 0, 2)))
}

func TestDailyMean(t *testing.T) {
	t.Run("averages readings per day skipping missing", func(t *testing.T) {
		times := []time.Time{ts(0), ts(6), ts(12), ts(24)}
		g := New(times, []float64{-5}, []float64{170}, []string{"swh_m"})
		g.Set("swh_m", 0, 0, 0, 2.0)
		g.Set("swh_m", 1, 0, 0, 4.0)
		// ts(12) left NaN: skip-missing mean ignores it.
		g.Set("swh_m", 3, 0, 0, 1.0)

		daily := g.DailyMean()

		require.Len(t, daily.Times, 2)
		assert.Equal(t, time.Date(2021, time.June, 1, 0, 0, 0, 0, time.UTC), daily.Times[0])
		assert.Equal(t, time.Date(2021, time.June, 2, 0, 0, 0, 0, time.UTC), daily.Times[1])
		assert.Equal(t, 3.0, daily.At("swh_m", 0, 0, 0)) // (2+4)/2
		assert.Equal(t, 1.0, daily.At("swh_m", 1, 0, 0))
	})

	t.Run("all-missing day stays missing", func(t *testing.T) {
		g := New([]time.Time{ts(0), ts(6)}, []float64{-5}, []float64{170}, []string{"swh_m"})
		daily := g.DailyMean()
		require.Len(t, daily.Times, 1)
		assert.True(t, math.IsNaN(daily.At("swh_m", 0, 0, 0)))
	})

	t.Run("single-reading grid passes through per day", func(t *testing.T) {
		g := New([]time.Time{ts(0)}, []float64{-5}, []float64{170}, []string{"swh_m"})
		g.Set("swh_m", 0, 0, 0, 2.5)
		daily := g.DailyMean()
		assert.Equal(t, 2.5, daily.At("swh_m", 0, 0, 0))
	})
}

func TestMergeLon(t *testing.T) {
	times := []time.Time{ts(0)}
	lats := []float64{-5, 0}

	t.Run("single piece returned as-is", func(t *testing.T) {
		g := New(times, lats, []float64{170}, []string{"swh_m"})
		got, err := MergeLon([]*Grid{g})
		require.NoError(t, err)
		assert.Same(t, g, got)
	})

	t.Run("pieces concatenate and sort by lon", func(t *testing.T) {
		// Piece ordering mirrors a seam split: high lons first, low second.
		hi := New(times, lats, []float64{350, 355}, []string{"swh_m"})
		lo := New(times, lats, []float64{0, 5}, []string{"swh_m"})
		for li := range hi.Lons {
			hi.Set("swh_m", 0, 0, li, 300+hi.Lons[li])
		}
		for li := range lo.Lons {
			lo.Set("swh_m", 0, 0, li, 300+lo.Lons[li])
		}

		merged, err := MergeLon([]*Grid{hi, lo})
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 5, 350, 355}, merged.Lons)
		assert.Equal(t, 300.0, merged.At("swh_m", 0, 0, 0))
		assert.Equal(t, 655.0, merged.At("swh_m", 0, 0, 3))
		// Untouched cells stay missing rather than zero.
		assert.True(t, math.IsNaN(merged.At("swh_m", 0, 1, 0)))
	})

	t.Run("mismatched axes rejected", func(t *testing.T) {
		a := New(times, lats, []float64{350}, []string{"swh_m"})
		b := New(times, []float64{-5}, []float64{0}, []string{"swh_m"})
		_, err := MergeLon([]*Grid{a, b})
		require.Error(t, err)
	})

	t.Run("mismatched variables rejected", func(t *testing.T) {
		a := New(times, lats, []float64{350}, []string{"swh_m"})
		b := New(times, lats, []float64{0}, []string{"peak_period_s"})
		_, err := MergeLon([]*Grid{a, b})
		require.Error(t, err)
	})

	t.Run("no pieces rejected", func(t *testing.T) {
		_, err := MergeLon(nil)
		require.Error(t, err)
	})
}
