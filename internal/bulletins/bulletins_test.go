package bulletins

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/fumiama/go-docx"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickelblock/forecast-maps/internal/crawler"
	"github.com/nickelblock/forecast-maps/internal/storage/memory"
)

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	body, ok := f.pages[req.URL]
	if !ok {
		return crawler.FetchResponse{}, &crawler.StatusError{URL: req.URL, Code: 404}
	}
	return crawler.FetchResponse{URL: req.URL, StatusCode: 200, Body: []byte(body)}, nil
}

type fakeDownloader struct {
	store *memory.BlobStore
	got   []string
}

func (d *fakeDownloader) Download(ctx context.Context, url, dst string) (crawler.Artifact, error) {
	d.got = append(d.got, url)
	uri, err := d.store.PutObject(ctx, dst, "text/html", strings.NewReader("md"))
	return crawler.Artifact{URL: url, Path: dst, URI: uri}, err
}

const zonePage = `<html><body><div id="detailed-forecast-body">
<div class="row row-odd row-forecast"><div class="forecast-label">Today</div><div class="forecast-text">Sunny, with a high near 88.</div></div>
<div class="row row-even row-forecast"><div class="forecast-label">Tonight</div><div class="forecast-text">Clear, low around 65.</div></div>
</div></body></html>`

const afdPage = `<html><body><pre class="glossaryProduct">
FXUS64 KJAN 191130
AREA FORECAST DISCUSSION

.DISCUSSION...
Rain moves in. Storms follow. Skies
clear late. Cooler air arrives. Highs fall.
&&

.AVIATION...
VFR.
&&
</pre></body></html>`

const rssFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>SPC MDs</title>
<item><title>SPC MD 1234</title><description>Mesoscale Discussion 1234 for central Mississippi</description></item>
<item><title>SPC MD 1233</title><description>older</description></item>
</channel></rss>`

const mdPage = `<html><body>
<a href="/products/md/md1233.html">Mesoscale Discussion 1233</a>
<a href="/products/md/md1234.html">Latest Mesoscale Discussion</a>
</body></html>`

const nhcPage = `<html><body><h2>Tropical Weather Outlook</h2>
<div><pre>
ZCZC MIATWOAT ALL
For the North Atlantic...<b>Caribbean Sea</b> and the Gulf.
</pre></div></body></html>`

func newTestService(pages map[string]string) (*Service, *memory.BlobStore, *fakeDownloader) {
	store := memory.NewBlobStore()
	dl := &fakeDownloader{store: store}
	cfg := Config{
		Zones:       []string{"MSZ075", "MSZ047"},
		ZoneURL:     "https://fw.test/MapClick.php",
		AFDOffice:   "JAN",
		AFDURL:      "https://fw.test/product.php",
		SPCRSSURL:   "https://spc.test/products/spcmdrss.xml",
		SPCMDURL:    "https://spc.test/products/md/",
		NHCURL:      "https://nhc.test/text/",
		NHCProducts: []string{"MIATWOAT"},
	}
	return New(cfg, &fakeFetcher{pages: pages}, dl, store, nil), store, dl
}

func mustDoc(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestReflowBreaksEveryThirdPeriod(t *testing.T) {
	t.Parallel()
	got := Reflow("A. B.\nC. D. E. F. G.")
	assert.Equal(t, "A. B. C.\n\n D. E. F.\n\n G.", got)
}

func TestExtractDiscussion(t *testing.T) {
	t.Parallel()

	text, err := ExtractDiscussion(mustDoc(t, afdPage))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "DISCUSSION..."))
	assert.True(t, strings.HasSuffix(text, "Highs fall."))

	_, err = ExtractDiscussion(mustDoc(t, `<pre class="glossaryProduct">AVIATION only</pre>`))
	require.ErrorIs(t, err, ErrMarkersNotFound)

	_, err = ExtractDiscussion(mustDoc(t, `<p>nothing</p>`))
	require.ErrorIs(t, err, ErrSectionNotFound)
}

func TestAreaDiscussionWritesReflowedText(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(map[string]string{
		AFDURL("https://fw.test/product.php", "JAN"): afdPage,
	})
	_, err := svc.AreaDiscussion(context.Background())
	require.NoError(t, err)

	body, ok := store.Bytes("WxOutput.txt")
	require.True(t, ok)
	assert.Equal(t, "DISCUSSION...\n\n Rain moves in. Storms follow. Skies clear late.\n\n Cooler air arrives. Highs fall.", string(body))
}

func TestAFDURL(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"https://fw.test/product.php?format=CI&glossary=0&issuedby=JAN&product=AFD&site=NWS&version=1",
		AFDURL("https://fw.test/product.php", "JAN"))
}

func TestZoneDocumentLayout(t *testing.T) {
	t.Parallel()

	rows, err := ParseZoneRows(mustDoc(t, zonePage))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	doc := ZoneDocument("MSZ075", rows)
	items := doc.Document.Body.Items
	require.Len(t, items, 4)

	title := items[0].(*docx.Paragraph)
	assert.Equal(t, "Ag Zone Forecast", title.String())
	assert.Equal(t, "Title", title.Properties.Style.Val)
	assert.Equal(t, "center", title.Properties.Justification.Val)

	subtitle := items[1].(*docx.Paragraph)
	assert.Equal(t, "NickelBlock Forecasting, MSZ075", subtitle.String())

	row := items[2].(*docx.Paragraph)
	assert.Equal(t, "Today: Sunny, with a high near 88.", row.String())
	label := row.Children[0].(*docx.Run)
	assert.NotNil(t, label.RunProperties.Bold)
	text := row.Children[1].(*docx.Run)
	assert.Nil(t, text.RunProperties.Bold)
	assert.Equal(t, "22", text.RunProperties.Size.Val)
}

func TestZoneForecastsContinuePastMissingBody(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(map[string]string{
		ZoneURL("https://fw.test/MapClick.php", "MSZ075"): zonePage,
		ZoneURL("https://fw.test/MapClick.php", "MSZ047"): `<html><body>No forecast</body></html>`,
	})
	uris, err := svc.ZoneForecasts(context.Background())
	require.ErrorIs(t, err, ErrSectionNotFound)
	assert.Contains(t, err.Error(), "MSZ047")
	require.Len(t, uris, 1)

	body, ok := store.Bytes("forecast.docx")
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(body, []byte("PK")))
	_, ok = store.Bytes("forecast_1.docx")
	assert.False(t, ok)
}

func TestZoneFileName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "forecast.docx", ZoneFileName(0))
	assert.Equal(t, "forecast_3.docx", ZoneFileName(3))
}

func TestMesoscaleFeedHTML(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(map[string]string{"https://spc.test/products/spcmdrss.xml": rssFeed})
	_, err := svc.MesoscaleFeed(context.Background())
	require.NoError(t, err)

	body, ok := store.Bytes("SPCoutput.html")
	require.True(t, ok)
	assert.Equal(t, "<h1>SPC MD 1234</h1>\n<p>Mesoscale Discussion 1234 for central Mississippi</p>\n", string(body))
}

func TestFeedHTMLEdgeCases(t *testing.T) {
	t.Parallel()

	_, err := FeedHTML(&gofeed.Feed{})
	require.ErrorIs(t, err, ErrEmptyFeed)

	got, err := FeedHTML(&gofeed.Feed{Items: []*gofeed.Item{{Description: "body"}}})
	require.NoError(t, err)
	assert.Equal(t, "<h1></h1>\n<p>body</p>\n", got)
}

func TestLatestMesoscaleDiscussion(t *testing.T) {
	t.Parallel()

	svc, store, dl := newTestService(map[string]string{"https://spc.test/products/md/": mdPage})
	artifact, err := svc.LatestMesoscaleDiscussion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://spc.test/products/md/md1234.html"}, dl.got)
	assert.Equal(t, "md1234.html", artifact.Path)
	_, ok := store.Bytes("md1234.html")
	assert.True(t, ok)

	_, err = LatestMDLink(mustDoc(t, `<a href="x.html">Other</a>`), "https://spc.test/")
	require.ErrorIs(t, err, ErrLinkNotFound)
}

func TestTropicalOutlooks(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(map[string]string{"https://nhc.test/text/MIATWOAT.shtml": nhcPage})
	uris, err := svc.TropicalOutlooks(context.Background())
	require.NoError(t, err)
	require.Len(t, uris, 1)

	body, ok := store.Bytes("Tropical Weather Outlook.txt")
	require.True(t, ok)
	assert.Equal(t,
		"Tropical Weather OutlookZCZC MIATWOAT ALL\nFor the North Atlantic...Caribbean Sea and the Gulf.\n",
		string(body))
}

func TestAllJoinsFailures(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(map[string]string{"https://spc.test/products/spcmdrss.xml": rssFeed})
	err := svc.All(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrStatus)
	_, ok := store.Bytes("SPCoutput.html")
	assert.True(t, ok)
}
