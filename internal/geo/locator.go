package geo

import (
	"time"

	"admission-map/internal/logger"
	"admission-map/internal/metrics"
)

// 文档注释：点击坐标 → 地区要素
// 背景：前端只拿得到点击的经纬度时，用包围盒预筛 + PIP 精确判定找到所在地区；预筛结果按 geohash 格子缓存。
// 约束：要素集合只读共享；坐标视为 WGS84；多个要素重叠时返回集合中靠前的一个。
// 缓存只保存格子内的候选要素，每次都对精确坐标做 PIP，同一格子跨越边界时结果仍按点判定。
type Locator struct {
	fc     *FeatureCollection
	idKey  string
	cache  *LRU
	byCode map[int]int
}

func NewLocator(fc *FeatureCollection, idKey string, cacheSize int, ttl time.Duration) *Locator {
	l := &Locator{fc: fc, idKey: idKey, cache: NewLRU(cacheSize, ttl), byCode: make(map[int]int, len(fc.Features))}
	for i := range fc.Features {
		if c, ok := fc.Features[i].Code(idKey); ok {
			if _, seen := l.byCode[c]; !seen {
				l.byCode[c] = i
			}
		}
	}
	return l
}

// Locate：返回命中的要素与其地区代码
// 约束：未命中、或命中的要素不带可识别代码时 ok=false。
func (l *Locator) Locate(lat, lon float64) (*Feature, int, bool) {
	key, cell := geohashCell(lat, lon, 7)
	cands, hit := l.cache.Get(key)
	if hit {
		metrics.LocateCacheHitsTotal.WithLabelValues("lru").Inc()
	} else {
		metrics.LocateCacheMissesTotal.Inc()
		cands = l.candidates(cell)
		l.cache.Set(key, cands)
	}
	idx := l.search(Point{Lat: lat, Lon: lon}, cands)
	if idx < 0 {
		logger.L().Debug("locate_miss", "lat", lat, "lon", lon)
		return nil, 0, false
	}
	f := &l.fc.Features[idx]
	code, ok := f.Code(l.idKey)
	if !ok {
		return nil, 0, false
	}
	return f, code, true
}

// Feature：按地区代码取要素（第一个匹配）
func (l *Locator) Feature(code int) (*Feature, bool) {
	i, ok := l.byCode[code]
	if !ok {
		return nil, false
	}
	return &l.fc.Features[i], true
}

// candidates：包围盒与格子相交的要素下标（升序）
func (l *Locator) candidates(cell [4]float64) []int {
	var out []int
	for i := range l.fc.Features {
		for _, p := range l.fc.Features[i].polys {
			if bboxOverlap(p.BBox, cell) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func (l *Locator) search(pt Point, cands []int) int {
	for _, i := range cands {
		for _, p := range l.fc.Features[i].polys {
			if inBBox(pt, p.BBox) && pointInPoly(pt, p) {
				return i
			}
		}
	}
	return -1
}
