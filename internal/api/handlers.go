package api

import (
	"errors"
	"net/http"

	"admission-map/internal/dataset"
	"admission-map/internal/logger"
	"admission-map/internal/middleware"
	"admission-map/internal/stats"
	"admission-map/internal/table"
	"admission-map/internal/view"
)

type handlers struct {
	d       Deps
	mapJSON []byte
}

func (h *handlers) region(w http.ResponseWriter, r *http.Request) {
	code, err := parseCode(r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.d.Stats.RegionSummary(code)
	var nf *stats.NotFoundError
	if errors.As(err, &nf) {
		writeError(w, http.StatusNotFound, "no data")
		return
	}
	if err != nil {
		logger.L().Error("region_summary_error", "code", code, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, view.RegionCard(s, h.d.NameColumn))
}

type citiesResponse struct {
	Code    int      `json:"code"`
	Heading string   `json:"heading"`
	Columns []string `json:"columns"`
	view.CityPage
}

// 城市表：未知地区与没有完整数据的地区都返回空表
func (h *handlers) cities(w http.ResponseWriter, r *http.Request) {
	code, err := parseCode(r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows := h.d.Stats.CityStats(code)
	p := view.Page(rows, intParam(r, "page", 1), intParam(r, "size", h.d.PageSize))
	writeJSON(w, http.StatusOK, citiesResponse{
		Code:     code,
		Heading:  view.CitiesHeading,
		Columns:  h.d.Stats.CityColumns(),
		CityPage: p,
	})
}

func (h *handlers) geojson(w http.ResponseWriter, r *http.Request) {
	if h.mapJSON == nil {
		writeError(w, http.StatusServiceUnavailable, "map not loaded")
		return
	}
	w.Header().Set("content-type", "application/geo+json")
	w.Header().Set("cache-control", "public, max-age=300")
	_, _ = w.Write(h.mapJSON)
}

// 悬停文本：缺失或非法代码、没有对应要素时返回提示语，不报错
func (h *handlers) hover(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m := dataset.ParseMetric(q.Get("metric"))
	text := view.Placeholder
	if code, err := parseCode(q.Get("code")); err == nil {
		if f, ok := h.d.Locator.Feature(code); ok {
			text = view.HoverText(f, h.d.Keys, m)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": text, "metric": m.Label()})
}

type rankItem struct {
	Code  int         `json:"code"`
	Name  string      `json:"name"`
	Value table.Value `json:"value"`
}

func (h *handlers) ranking(w http.ResponseWriter, r *http.Request) {
	m := dataset.ParseMetric(r.URL.Query().Get("metric"))
	regions := h.d.Stats.Ranking(m)
	out := make([]rankItem, 0, len(regions))
	for _, rg := range regions {
		out = append(out, rankItem{Code: rg.Code, Name: rg.Name, Value: rg.Value(m)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"metric": m.Label(), "items": out})
}

func (h *handlers) locate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, ok1 := parseCoord(q.Get("lat"), 90)
	lon, ok2 := parseCoord(q.Get("lon"), 180)
	if !ok1 || !ok2 {
		writeError(w, http.StatusBadRequest, "bad coordinates")
		return
	}
	writeJSON(w, http.StatusOK, h.locateCached(r.Context(), lat, lon))
}

// 访问者所在地区：GeoIP 坐标 → 定位；未配置数据库或查不到时 found=false
func (h *handlers) whereami(w http.ResponseWriter, r *http.Request) {
	ip := middleware.VisitorIP(r)
	res := locateResult{}
	if h.d.GeoIP != nil {
		lat, lon, ok, err := h.d.GeoIP.Coordinates(ip)
		if err != nil {
			logger.L().Debug("whereami_geoip_error", "ip", ip, "err", err)
		}
		if ok {
			res = h.locateCached(r.Context(), lat, lon)
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	features := 0
	if h.d.Map != nil {
		features = len(h.d.Map.Features)
	}
	st := h.d.Stats.Store()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"regions":  st.RegionCount(),
		"cities":   st.CityCount(),
		"features": features,
	})
}
