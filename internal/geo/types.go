package geo

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// 文档注释：GeoJSON 要素集合与要素
// 背景：几何保留原始 JSON 以便原样回传前端绘制；同时解析出多边形环用于点击坐标定位。
// 约束：仅 Polygon/MultiPolygon 参与定位；其他几何类型原样保留但不可命中。
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string          `json:"type"`
	ID         any             `json:"id,omitempty"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`

	polys []Polygon
}

// Polygon：按 GeoJSON 约定的环集合，第一环是外环，其后为洞
type Polygon struct {
	Rings [][]Point
	BBox  [4]float64 // minLon, minLat, maxLon, maxLat
}

// 点坐标（WGS84）
type Point struct {
	Lat float64
	Lon float64
}

// Keys：要素属性键
// ID 为地区代码所在属性；其余三个为补充写入的属性。
type Keys struct {
	ID       string
	Enrolled string
	Quota    string
	Name     string
}

func DefaultKeys() Keys {
	return Keys{ID: "id", Enrolled: "enrolled", Quota: "quota", Name: "name_ru"}
}

// Clone：复制集合与每个要素的顶层属性表
// 约束：几何原始字节与解析出的多边形只读共享；嵌套属性值不做深拷贝。
func (fc *FeatureCollection) Clone() *FeatureCollection {
	out := &FeatureCollection{Type: fc.Type, Features: make([]Feature, len(fc.Features))}
	for i, f := range fc.Features {
		props := make(map[string]any, len(f.Properties)+3)
		for k, v := range f.Properties {
			props[k] = v
		}
		f.Properties = props
		out.Features[i] = f
	}
	return out
}

// Code：读取要素对应的地区代码
// 背景：不同来源的边界文件把代码写成数字或数字字符串；属性缺失时回退到要素顶层 id。
func (f *Feature) Code(idKey string) (int, bool) {
	if v, ok := f.Properties[idKey]; ok {
		if n, ok := toCode(v); ok {
			return n, true
		}
	}
	return toCode(f.ID)
}

// Polygons：已解析的多边形（只读）
func (f *Feature) Polygons() []Polygon { return f.polys }

// Prop：读取字符串属性
func (f *Feature) Prop(k string) string {
	if f == nil {
		return ""
	}
	switch v := f.Properties[k].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func toCode(v any) (int, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		return x, true
	case int64:
		return int(x), true
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
