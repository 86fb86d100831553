package geo

import (
	"admission-map/internal/dataset"
	"admission-map/internal/logger"
	"admission-map/internal/metrics"
	"admission-map/internal/table"
)

// 文档注释：把地区统计写入地图要素属性
// 背景：启动时执行一次，前端着色与标注直接读取要素属性，无需再按地区查询。
// 约束：返回新的集合，入参不被修改；每个地区只写入第一个代码匹配的要素；
// 没有要素的地区与没有地区的要素都静默跳过。相同输入重复执行结果一致。
func Enrich(fc *FeatureCollection, regions []dataset.Region, keys Keys) *FeatureCollection {
	out := fc.Clone()
	first := make(map[int]int, len(out.Features))
	for i := range out.Features {
		code, ok := out.Features[i].Code(keys.ID)
		if !ok {
			continue
		}
		if _, seen := first[code]; !seen {
			first[code] = i
		}
	}
	matched, unmatched := 0, 0
	for _, r := range regions {
		i, ok := first[r.Code]
		if !ok {
			unmatched++
			logger.L().Debug("enrich_region_unmatched", "code", r.Code, "name", r.Name)
			continue
		}
		props := out.Features[i].Properties
		props[keys.Enrolled] = propValue(r.Enrolled)
		props[keys.Quota] = propValue(r.Quota)
		props[keys.Name] = r.Name
		matched++
	}
	metrics.EnrichMatched.Set(float64(matched))
	metrics.EnrichUnmatched.Set(float64(unmatched))
	logger.L().Info("enrich_done", "features", len(out.Features), "matched", matched, "unmatched", unmatched)
	return out
}

func propValue(v table.Value) any {
	if v.Null {
		return nil
	}
	if v.Kind == table.Number {
		return v.Num
	}
	return v.Raw
}

// Enriched：要素是否已写入统计
// 约束：以 keys.Enrolled 属性是否存在为准（Enrich 对命中的要素总会写入，值可为 null）；
// 边界文件自带的名称属性不算。源文件中不应预先存在该键。
func Enriched(f *Feature, keys Keys) bool {
	if f == nil {
		return false
	}
	_, ok := f.Properties[keys.Enrolled]
	return ok
}
