package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://forecast.weather.gov/MapClick.php", "forecast.weather.gov"},
		{"standard https", "https://WWW.SPC.NOAA.GOV/products/md/", "www.spc.noaa.gov"},
		{"no scheme", "nomads.ncep.noaa.gov/pub", "nomads.ncep.noaa.gov"},
		{"host with port", "thredds.ucar.edu:8080", "thredds.ucar.edu"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := fetchTotal
	Init()
	require.NotNil(t, first)
	assert.Same(t, first, fetchTotal)
}

func TestObserveCounters(t *testing.T) {
	Init()

	before := testutil.ToFloat64(fetchTotal.WithLabelValues("www.nhc.noaa.gov", StatusOK))
	ObserveFetch("https://www.nhc.noaa.gov/text/MIATWOAT.shtml", StatusOK, 2048)
	assert.InDelta(t, before+1, testutil.ToFloat64(fetchTotal.WithLabelValues("www.nhc.noaa.gov", StatusOK)), 1e-9)
	assert.GreaterOrEqual(t, testutil.ToFloat64(fetchBytesTotal.WithLabelValues("www.nhc.noaa.gov")), 2048.0)

	ObserveDownload("spc-test", StatusError)
	assert.InDelta(t, 1, testutil.ToFloat64(downloadsTotal.WithLabelValues("spc-test", StatusError)), 1e-9)

	ObserveProduct("map-test", StatusOK)
	ObserveProduct("map-test", StatusOK)
	assert.InDelta(t, 2, testutil.ToFloat64(productsTotal.WithLabelValues("map-test", StatusOK)), 1e-9)

	ObserveScheduleRun("morning-test", StatusSkip)
	assert.InDelta(t, 1, testutil.ToFloat64(scheduleRunsTotal.WithLabelValues("morning-test", StatusSkip)), 1e-9)

	ObservePipeline("maps:test", 2*time.Second)
	ObserveRateLimitDelay("test.example", 150*time.Millisecond)
	assert.Positive(t, testutil.CollectAndCount(pipelineDurationSeconds))
	assert.Positive(t, testutil.CollectAndCount(rateLimitDelaySeconds))
}

func TestStatusOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StatusOK, StatusOf(nil))
	assert.Equal(t, StatusError, StatusOf(errors.New("boom")))
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://www.spc.noaa.gov", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
