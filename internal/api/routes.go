// 包 api：集中注册 HTTP API 路由，在主入口挂载到 API_BASE 前缀下
package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"admission-map/internal/dataset"
	"admission-map/internal/geo"
	"admission-map/internal/logger"
	"admission-map/internal/metrics"
	"admission-map/internal/stats"
	"admission-map/internal/view"
)

var errBadCode = errors.New("bad code")

// IPLocator：访问者 IP → 坐标（*geoip.Resolver 实现，nil 接收者视为禁用）
type IPLocator interface {
	Coordinates(ip string) (lat, lon float64, ok bool, err error)
}

// Deps：路由依赖；Map 为已补充统计的要素集合，Locator 必须建立在同一集合上
type Deps struct {
	Stats      *stats.Service
	Map        *geo.FeatureCollection
	Locator    *geo.Locator
	Keys       geo.Keys
	NameColumn string
	PageSize   int

	Cache     LocateCache // 可为 nil
	LocateTTL time.Duration
	GeoIP     IPLocator // 可为 nil
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到前缀
func BuildRoutes(d Deps) *http.ServeMux {
	h := &handlers{d: d}
	if h.d.PageSize <= 0 {
		h.d.PageSize = view.DefaultPageSize
	}
	if h.d.LocateTTL <= 0 {
		h.d.LocateTTL = time.Hour
	}
	mapJSON, err := json.Marshal(d.Map)
	if err != nil {
		logger.L().Error("map_marshal_error", "err", err)
	}
	h.mapJSON = mapJSON

	mux := http.NewServeMux()
	mux.Handle("/region", instrument("region", h.region))
	mux.Handle("/cities", instrument("cities", h.cities))
	mux.Handle("/map", instrument("map", h.geojson))
	mux.Handle("/hover", instrument("hover", h.hover))
	mux.Handle("/locate", instrument("locate", h.locate))
	mux.Handle("/whereami", instrument("whereami", h.whereami))
	mux.Handle("/ranking", instrument("ranking", h.ranking))
	mux.Handle("/healthz", instrument("healthz", h.healthz))
	return mux
}

// instrument：按端点记录请求数与耗时
func instrument(name string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("allow", "GET, HEAD")
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			metrics.RequestsTotal.WithLabelValues(name, "4xx").Inc()
			return
		}
		sw := &logger.StatusWriter{ResponseWriter: w, Status: http.StatusOK}
		start := time.Now()
		fn(sw, r)
		metrics.RequestDurationMs.WithLabelValues(name).Observe(float64(time.Since(start).Milliseconds()))
		metrics.RequestsTotal.WithLabelValues(name, strconv.Itoa(sw.Status/100)+"xx").Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseCode：地区代码参数，接受 "59" 与 "59.0"
func parseCode(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errBadCode
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, errBadCode
	}
	return int(f), nil
}

func parseCoord(s string, limit float64) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || f < -limit || f > limit {
		return 0, false
	}
	return f, true
}

func intParam(r *http.Request, k string, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(k)); err == nil {
		return n
	}
	return def
}

// ConfigJS：向静态前端暴露 API 基础路径与构建版本，避免前端硬编码
func ConfigJS(apiBase, commit string, m dataset.Metric) http.HandlerFunc {
	body := "window.__API_BASE__=" + strconv.Quote(apiBase) + "\n" +
		"window.__DEFAULT_METRIC__=" + strconv.Itoa(int(m)) + "\n" +
		"window.__COMMIT_SHA__=" + strconv.Quote(commit) + "\n"
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte(body))
	}
}
