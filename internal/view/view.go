// 包 view：把查询结果整理成前端直接展示的文本与表格，不含任何页面渲染
package view

import (
	"admission-map/internal/dataset"
	"admission-map/internal/geo"
	"admission-map/internal/stats"
	"admission-map/internal/table"
)

const (
	Placeholder     = "Наведите курсор на регион"
	IndicatorHeader = "Показатель"
	ValueHeader     = "Значения"
	CitiesHeading   = "Статистика по городам"
	DefaultPageSize = 10
)

// 文档注释：悬停/点击提示文本
// 背景：地图上选中要素时展示 "地区名: 数值"；没有选中或要素未补充统计时展示提示语。
// 约束：不返回错误；空值数值显示为 "—"。
func HoverText(f *geo.Feature, keys geo.Keys, m dataset.Metric) string {
	if !geo.Enriched(f, keys) {
		return Placeholder
	}
	name := f.Prop(keys.Name)
	if name == "" {
		return Placeholder
	}
	key := keys.Enrolled
	if m == dataset.MetricQuota {
		key = keys.Quota
	}
	return name + ": " + propText(f.Properties[key])
}

func propText(v any) string {
	switch x := v.(type) {
	case float64:
		return table.FormatNumber(x)
	case string:
		if x != "" {
			return x
		}
	}
	return "—"
}

// CardRow：地区卡片中的一行（指标名 / 值）
type CardRow struct {
	Name  string      `json:"name"`
	Value table.Value `json:"value"`
}

// Card：地区明细卡片
type Card struct {
	Code  int       `json:"code"`
	Title string    `json:"title"`
	Rows  []CardRow `json:"rows"`
}

// RegionCard：地区汇总 → 卡片
// 标题取地区名称列，其余字段按原顺序作为行。
func RegionCard(s stats.Summary, nameColumn string) Card {
	c := Card{Code: s.Code, Rows: make([]CardRow, 0, len(s.Fields))}
	for _, f := range s.Fields {
		if f.Name == nameColumn {
			c.Title = f.Value.String()
			continue
		}
		c.Rows = append(c.Rows, CardRow{Name: f.Name, Value: f.Value})
	}
	return c
}

// CityPage：城市表格的一页
type CityPage struct {
	Rows  []stats.CityRow `json:"rows"`
	Page  int             `json:"page"`
	Pages int             `json:"pages"`
	Size  int             `json:"size"`
	Total int             `json:"total"`
}

// Page：分页
// 约束：页码从 1 开始；越界页码收敛到首页或末页；size<=0 使用默认页大小；空表返回 1 页空结果。
func Page(rows []stats.CityRow, page, size int) CityPage {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(rows)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	lo := (page - 1) * size
	hi := lo + size
	if hi > total {
		hi = total
	}
	out := make([]stats.CityRow, 0, hi-lo)
	if lo < hi {
		out = append(out, rows[lo:hi]...)
	}
	return CityPage{Rows: out, Page: page, Pages: pages, Size: size, Total: total}
}
