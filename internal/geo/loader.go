package geo

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"admission-map/internal/logger"
	"admission-map/internal/table"
)

var ErrNotFeatureCollection = errors.New("not a GeoJSON FeatureCollection or Feature")

// 文档注释：加载行政区边界 GeoJSON
// 背景：启动时读取一次；单个 Feature 自动包装为集合，便于统一处理。
// 约束：JSON 语法错误或顶层类型不符返回 *table.LoadError；几何坐标异常的要素保留但不参与定位。
func Load(path string) (*FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &table.LoadError{Path: path, Err: err}
	}
	defer f.Close()
	return Decode(f, path)
}

func Decode(r io.Reader, name string) (*FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	bs, err := io.ReadAll(r)
	if err != nil {
		return nil, &table.LoadError{Path: name, Err: err}
	}
	if err := json.Unmarshal(bs, &head); err != nil {
		return nil, &table.LoadError{Path: name, Err: err}
	}
	var fc FeatureCollection
	switch strings.ToLower(head.Type) {
	case "featurecollection":
		if err := json.Unmarshal(bs, &fc); err != nil {
			return nil, &table.LoadError{Path: name, Err: err}
		}
	case "feature":
		var ft Feature
		if err := json.Unmarshal(bs, &ft); err != nil {
			return nil, &table.LoadError{Path: name, Err: err}
		}
		fc = FeatureCollection{Type: "FeatureCollection", Features: []Feature{ft}}
	default:
		return nil, &table.LoadError{Path: name, Err: ErrNotFeatureCollection}
	}
	for i := range fc.Features {
		ft := &fc.Features[i]
		if ft.Properties == nil {
			ft.Properties = map[string]any{}
		}
		ft.polys = parseGeometry(ft.Geometry)
	}
	logger.L().Debug("geojson_loaded", "path", name, "features", len(fc.Features))
	return &fc, nil
}

func parseGeometry(raw json.RawMessage) []Polygon {
	if len(raw) == 0 {
		return nil
	}
	var g struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil
	}
	switch strings.ToLower(g.Type) {
	case "polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil
		}
		return []Polygon{makePolygon(rings)}
	case "multipolygon":
		var parts [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &parts); err != nil {
			return nil
		}
		out := make([]Polygon, 0, len(parts))
		for _, rings := range parts {
			out = append(out, makePolygon(rings))
		}
		return out
	}
	return nil
}

// GeoJSON 坐标顺序为 [lon, lat]
func makePolygon(rings [][][]float64) Polygon {
	var p Polygon
	for _, ring := range rings {
		var rr []Point
		for _, c := range ring {
			if len(c) >= 2 {
				rr = append(rr, Point{Lat: c[1], Lon: c[0]})
			}
		}
		p.Rings = append(p.Rings, rr)
	}
	p.BBox = computeBBox(p)
	return p
}

func computeBBox(p Polygon) [4]float64 {
	b := [4]float64{180, 90, -180, -90}
	for _, r := range p.Rings {
		for _, pt := range r {
			if pt.Lon < b[0] {
				b[0] = pt.Lon
			}
			if pt.Lat < b[1] {
				b[1] = pt.Lat
			}
			if pt.Lon > b[2] {
				b[2] = pt.Lon
			}
			if pt.Lat > b[3] {
				b[3] = pt.Lat
			}
		}
	}
	return b
}
