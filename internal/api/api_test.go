package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"admission-map/internal/dataset"
	"admission-map/internal/geo"
	"admission-map/internal/stats"
	"admission-map/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	regionsCSV = "Код региона,Тип региона,Название региона,Поступило,Целевое\n" +
		"59,край,Пермский край,120,30\n" +
		"66,область,Свердловская область,80,\n" +
		"77,город,Москва,900,100\n"
	citiesCSV = "Код региона,Название региона,Тип региона,Город,Поступило\n" +
		"59,Пермский край,край,Пермь,50\n" +
		"59,Пермский край,край,Кунгур,\n" +
		"59,Пермский край,край,Березники,80\n" +
		"66,Свердловская область,область,Екатеринбург,70\n"
	regionsGeoJSON = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"id":59},"geometry":{"type":"Polygon","coordinates":[[[50,55],[60,55],[60,60],[50,60],[50,55]]]}},
		{"type":"Feature","properties":{"id":"66"},"geometry":{"type":"Polygon","coordinates":[[[60,55],[70,55],[70,60],[60,60],[60,55]]]}},
		{"type":"Feature","properties":{"id":2},"geometry":{"type":"Polygon","coordinates":[[[50,50],[55,50],[55,54],[50,54],[50,50]]]}}
	]}`
)

type memCache struct {
	m    map[string]string
	gets int
	err  error
}

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.gets++
	if c.err != nil {
		return "", false, c.err
	}
	s, ok := c.m[key]
	return s, ok, nil
}

func (c *memCache) Set(_ context.Context, key, val string, _ time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.m[key] = val
	return nil
}

type fakeIP struct {
	lat, lon float64
	ok       bool
	err      error
	seen     string
}

func (f *fakeIP) Coordinates(ip string) (float64, float64, bool, error) {
	f.seen = ip
	return f.lat, f.lon, f.ok, f.err
}

func newDeps(t *testing.T) Deps {
	t.Helper()
	schema := dataset.DefaultSchema()
	rt, err := table.Decode(strings.NewReader(regionsCSV), "regi.csv", schema.RegionRequired()...)
	require.NoError(t, err)
	ct, err := table.Decode(strings.NewReader(citiesCSV), "cities.csv", schema.CityRequired()...)
	require.NoError(t, err)
	st, err := dataset.FromTables(rt, ct, schema)
	require.NoError(t, err)
	fc, err := geo.Decode(strings.NewReader(regionsGeoJSON), "regions.geojson")
	require.NoError(t, err)
	keys := geo.DefaultKeys()
	enriched := geo.Enrich(fc, st.Regions(), keys)
	return Deps{
		Stats:      stats.New(st),
		Map:        enriched,
		Locator:    geo.NewLocator(enriched, keys.ID, 64, time.Minute),
		Keys:       keys,
		NameColumn: schema.RegionName,
		PageSize:   10,
	}
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	if strings.HasPrefix(w.Header().Get("content-type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestRegion(t *testing.T) {
	h := BuildRoutes(newDeps(t))

	w, body := get(t, h, "/region?code=59")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Пермский край", body["title"])
	rows := body["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"name": "Поступило", "value": 120.0}, rows[0])
	assert.Equal(t, map[string]any{"name": "Целевое", "value": 30.0}, rows[1])

	w, body = get(t, h, "/region?code=59.0")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = get(t, h, "/region?code=1000")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no data", body["error"])

	for _, bad := range []string{"", "abc", "59.5"} {
		w, _ = get(t, h, "/region?code="+bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestCities(t *testing.T) {
	h := BuildRoutes(newDeps(t))

	w, body := get(t, h, "/cities?code=59")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"Город", "Поступило"}, body["columns"])
	rows := body["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, "Березники", rows[0].(map[string]any)["city"])
	assert.Equal(t, "Пермь", rows[1].(map[string]any)["city"])
	assert.Equal(t, 2.0, body["total"])

	w, body = get(t, h, "/cities?code=59&size=1&page=2")
	require.Equal(t, http.StatusOK, w.Code)
	rows = body["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Пермь", rows[0].(map[string]any)["city"])
	assert.Equal(t, 2.0, body["pages"])

	w, body = get(t, h, "/cities?code=77")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["rows"])
}

func TestMap(t *testing.T) {
	h := BuildRoutes(newDeps(t))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/map", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("content-type"))

	var fc geo.FeatureCollection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	require.Len(t, fc.Features, 3)
	assert.Equal(t, "Пермский край", fc.Features[0].Properties["name_ru"])
	assert.Equal(t, 120.0, fc.Features[0].Properties["enrolled"])
	_, enriched := fc.Features[2].Properties["name_ru"]
	assert.False(t, enriched)
}

func TestHover(t *testing.T) {
	h := BuildRoutes(newDeps(t))

	_, body := get(t, h, "/hover")
	assert.Equal(t, "Наведите курсор на регион", body["text"])

	_, body = get(t, h, "/hover?code=59")
	assert.Equal(t, "Пермский край: 120", body["text"])
	assert.Equal(t, "Зачисленные", body["metric"])

	_, body = get(t, h, "/hover?code=59&metric=1")
	assert.Equal(t, "Пермский край: 30", body["text"])

	_, body = get(t, h, "/hover?code=2")
	assert.Equal(t, "Наведите курсор на регион", body["text"])
}

func TestRanking(t *testing.T) {
	h := BuildRoutes(newDeps(t))
	_, body := get(t, h, "/ranking?metric=quota")
	items := body["items"].([]any)
	require.Len(t, items, 3)
	codes := make([]float64, 0, 3)
	for _, it := range items {
		codes = append(codes, it.(map[string]any)["code"].(float64))
	}
	assert.Equal(t, []float64{77, 59, 66}, codes)
}

func TestLocate(t *testing.T) {
	d := newDeps(t)
	cache := &memCache{m: map[string]string{}}
	d.Cache = cache
	h := BuildRoutes(d)

	w, body := get(t, h, "/locate?lat=57.5&lon=55")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, 59.0, body["code"])
	assert.Equal(t, "Пермский край", body["name"])
	assert.Contains(t, cache.m, "locate:57.5:55")

	// 缓存中的结果优先
	cache.m["locate:57.5:55"] = `{"found":true,"code":66,"name":"cached"}`
	_, body = get(t, h, "/locate?lat=57.5&lon=55")
	assert.Equal(t, "cached", body["name"])

	_, body = get(t, h, "/locate?lat=10&lon=10")
	assert.Equal(t, false, body["found"])

	for _, q := range []string{"lat=91&lon=0", "lat=a&lon=0", "lat=0"} {
		w, _ = get(t, h, "/locate?"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

// 边界两侧相距约 20m 的两次点击不共用缓存结果
func TestLocate_BorderNeighbours(t *testing.T) {
	d := newDeps(t)
	cache := &memCache{m: map[string]string{}}
	d.Cache = cache
	h := BuildRoutes(d)

	for i := 0; i < 2; i++ {
		_, body := get(t, h, "/locate?lat=56.5&lon=59.9999")
		assert.Equal(t, 59.0, body["code"])
		_, body = get(t, h, "/locate?lat=56.5&lon=60.0001")
		assert.Equal(t, 66.0, body["code"])
	}
	assert.Len(t, cache.m, 2)
}

func TestLocate_CacheErrorFallsThrough(t *testing.T) {
	d := newDeps(t)
	d.Cache = &memCache{err: errors.New("redis down")}
	_, body := get(t, BuildRoutes(d), "/locate?lat=56&lon=62")
	assert.Equal(t, true, body["found"])
	assert.Equal(t, 66.0, body["code"])
}

func TestWhereAmI(t *testing.T) {
	d := newDeps(t)
	_, body := get(t, BuildRoutes(d), "/whereami")
	assert.Equal(t, false, body["found"])

	ip := &fakeIP{lat: 57.5, lon: 55, ok: true}
	d.GeoIP = ip
	h := BuildRoutes(d)
	r := httptest.NewRequest(http.MethodGet, "/whereami", nil)
	r.Header.Set("x-forwarded-for", "203.0.113.5")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "203.0.113.5", ip.seen)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, 59.0, body["code"])

	d.GeoIP = &fakeIP{err: errors.New("bad ip")}
	_, body = get(t, BuildRoutes(d), "/whereami")
	assert.Equal(t, false, body["found"])
}

func TestHealthzAndMethod(t *testing.T) {
	h := BuildRoutes(newDeps(t))
	_, body := get(t, h, "/healthz")
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 3.0, body["regions"])
	assert.Equal(t, 4.0, body["cities"])
	assert.Equal(t, 3.0, body["features"])

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/region?code=59", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestConfigJS(t *testing.T) {
	w := httptest.NewRecorder()
	ConfigJS("/api", "abc123", dataset.MetricEnrolled)(w, httptest.NewRequest(http.MethodGet, "/config.js", nil))
	assert.Equal(t, "application/javascript; charset=utf-8", w.Header().Get("content-type"))
	assert.Contains(t, w.Body.String(), `window.__API_BASE__="/api"`)
	assert.Contains(t, w.Body.String(), `window.__DEFAULT_METRIC__=2`)
	assert.Contains(t, w.Body.String(), `window.__COMMIT_SHA__="abc123"`)
}
