package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/app"
	"github.com/nickelblock/forecast-maps/internal/bulletins"
	"github.com/nickelblock/forecast-maps/internal/config"
	"github.com/nickelblock/forecast-maps/internal/crawler"
	"github.com/nickelblock/forecast-maps/internal/datasets"
	"github.com/nickelblock/forecast-maps/internal/geo"
)

type fakeApp struct {
	closed    bool
	downloads []string
	maps      []app.MapRequest
	bulletins []string
	scheduled bool
	err       error
}

func (f *fakeApp) Close()              { f.closed = true }
func (f *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

func (f *fakeApp) Download(_ context.Context, product string) ([]crawler.Artifact, error) {
	f.downloads = append(f.downloads, product)
	return []crawler.Artifact{{URI: "memory://" + product}}, f.err
}

func (f *fakeApp) Maps(_ context.Context, req app.MapRequest) ([]string, error) {
	f.maps = append(f.maps, req)
	if req.Region == "atlantis" {
		return nil, fmt.Errorf("%w: %q", geo.ErrUnknownRegion, req.Region)
	}
	return []string{"memory://" + req.Region + "_" + req.Kind + ".png"}, f.err
}

func (f *fakeApp) Bulletins(_ context.Context, kind string) ([]string, error) {
	f.bulletins = append(f.bulletins, kind)
	return []string{"memory://" + kind}, f.err
}

func (f *fakeApp) Schedule(ctx context.Context) error {
	f.scheduled = true
	return ctx.Err()
}

// run executes the root command against fake and returns its output.
func run(t *testing.T, fake *fakeApp, args ...string) (string, error) {
	t.Helper()
	orig := newApp
	t.Cleanup(func() { newApp = orig })
	newApp = func(context.Context, config.Config) (App, error) { return fake, nil }

	var out bytes.Buffer
	err := execute(context.Background(), args, &out, &out)
	return out.String(), err
}

func TestMapsTemperatureFlags(t *testing.T) {
	fake := &fakeApp{}
	out, err := run(t, fake, "maps", "temperature", "--region", "local", "--hours", "0,24,48")
	require.NoError(t, err)

	require.Len(t, fake.maps, 1)
	assert.Equal(t, app.MapRequest{Kind: "temperature", Region: "local", Hours: []int{0, 24, 48}}, fake.maps[0])
	assert.Contains(t, out, "memory://local_temperature.png")
	assert.True(t, fake.closed)
}

func TestMapsPrecipitationHourly(t *testing.T) {
	fake := &fakeApp{}
	_, err := run(t, fake, "maps", "precipitation", "--region", "regional", "--hourly")
	require.NoError(t, err)
	assert.Equal(t, app.MapRequest{Kind: "precipitation", Region: "regional", Hours: []int{0}, Hourly: true}, fake.maps[0])
}

func TestMapsOutlookDownload(t *testing.T) {
	fake := &fakeApp{}
	_, err := run(t, fake, "maps", "spc", "--region", "regional", "--download", "--file", "SPC_custom.grb2")
	require.NoError(t, err)
	assert.Equal(t, app.MapRequest{Kind: "spc", Region: "regional", File: "SPC_custom.grb2", Download: true}, fake.maps[0])
}

func TestMapsRequireRegion(t *testing.T) {
	fake := &fakeApp{}
	_, err := run(t, fake, "maps", "blank")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region")
	assert.Empty(t, fake.maps)
}

func TestMapsUnknownRegionPrintsUsage(t *testing.T) {
	fake := &fakeApp{}
	out, err := run(t, fake, "maps", "blank", "--region", "atlantis")
	require.ErrorIs(t, err, geo.ErrUnknownRegion)
	assert.Contains(t, out, "Usage:")
}

func TestMapsBlankHasNoHoursFlag(t *testing.T) {
	_, err := run(t, &fakeApp{}, "maps", "blank", "--region", "local", "--hours", "6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestDownloadThredds(t *testing.T) {
	fake := &fakeApp{}
	out, err := run(t, fake, "download", "thredds", "--product", "cpc")
	require.NoError(t, err)
	assert.Equal(t, []string{"cpc"}, fake.downloads)
	assert.Contains(t, out, "memory://cpc")
}

func TestDownloadUnknownProduct(t *testing.T) {
	fake := &fakeApp{}
	_, err := run(t, fake, "download", "thredds", "--product", "gfs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown product "gfs"`)
	assert.Empty(t, fake.downloads)
}

func TestDownloadBlendError(t *testing.T) {
	fake := &fakeApp{err: errors.New("nomads down")}
	_, err := run(t, fake, "download", "blend")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download blend: nomads down")
	assert.True(t, fake.closed)
}

func TestDownloadBlendIncompleteExitsZero(t *testing.T) {
	fake := &fakeApp{err: fmt.Errorf("%w: found 5 of 7", datasets.ErrIncompleteDays)}
	out, err := run(t, fake, "download", "blend")
	require.NoError(t, err)
	assert.Contains(t, out, "memory://blend")
	assert.True(t, fake.closed)
}

func TestBulletinsMissingSectionExitsZero(t *testing.T) {
	fake := &fakeApp{err: errors.Join(
		fmt.Errorf("zone 2: %w: #detailed-forecast-body", bulletins.ErrSectionNotFound),
		fmt.Errorf("zone 3: %w: #detailed-forecast-body", bulletins.ErrSectionNotFound),
	)}
	out, err := run(t, fake, "bulletins", "zones")
	require.NoError(t, err)
	assert.Contains(t, out, "memory://zones")
}

func TestBulletinsMixedFailureStillFails(t *testing.T) {
	fake := &fakeApp{err: errors.Join(
		fmt.Errorf("zone 2: %w", bulletins.ErrSectionNotFound),
		errors.New("zone 3: connection reset"),
	)}
	_, err := run(t, fake, "bulletins", "zones")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.True(t, fake.closed)
}

func TestBulletins(t *testing.T) {
	for _, kind := range app.BulletinKinds {
		fake := &fakeApp{}
		out, err := run(t, fake, "bulletins", kind)
		require.NoError(t, err, kind)
		assert.Equal(t, []string{kind}, fake.bulletins)
		assert.Contains(t, out, "memory://"+kind)
	}
}

func TestSchedule(t *testing.T) {
	fake := &fakeApp{}
	_, err := run(t, fake, "schedule")
	require.NoError(t, err)
	assert.True(t, fake.scheduled)
}

func TestAppInitFailure(t *testing.T) {
	orig := newApp
	t.Cleanup(func() { newApp = orig })
	newApp = func(context.Context, config.Config) (App, error) { return nil, errors.New("no bucket") }

	err := execute(context.Background(), []string{"bulletins", "all"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize application services: no bucket")
}

func TestBulletinsHelpNamesOutputFormats(t *testing.T) {
	fake := &fakeApp{}
	out, err := run(t, fake, "bulletins", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "SPC mesoscale discussion RSS feed as HTML")
	assert.Contains(t, out, "NHC tropical weather outlooks as TXT")
	assert.Contains(t, out, "zone forecasts from forecast.weather.gov as DOCX")
	assert.Empty(t, fake.bulletins)
}
