// 包 stats：地区汇总与城市明细查询
// 约束：纯读；每次调用都基于内存中的只读存储重新计算，不做缓存。
package stats

import (
	"fmt"
	"sort"

	"admission-map/internal/dataset"
	"admission-map/internal/metrics"
)

// NotFoundError：查询的地区代码没有对应记录
type NotFoundError struct {
	Code int
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("region %d: no data", e.Code) }

// Summary：单个地区的展示字段（有序）
type Summary struct {
	Code   int             `json:"code"`
	Fields []dataset.Field `json:"fields"`
}

// Get：按列名取字段
func (s Summary) Get(name string) (dataset.Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return dataset.Field{}, false
}

// CityRow：城市明细行，Fields 与 Service.CityColumns 一一对应
type CityRow struct {
	City   string          `json:"city"`
	Fields []dataset.Field `json:"fields"`
}

type Service struct {
	st *dataset.Store
}

func New(st *dataset.Store) *Service { return &Service{st: st} }

func (s *Service) Store() *dataset.Store { return s.st }

// RegionSummary：地区汇总
// 返回：去掉地区代码与地区类型后的字段，顺序与表头一致（地区名称保留在其声明位置）。
// 异常：代码不存在时返回 *NotFoundError。
func (s *Service) RegionSummary(code int) (Summary, error) {
	r, ok := s.st.Region(code)
	if !ok {
		metrics.NotFoundTotal.WithLabelValues("region").Inc()
		return Summary{}, &NotFoundError{Code: code}
	}
	return Summary{Code: code, Fields: append([]dataset.Field(nil), r.Fields...)}, nil
}

// CityStats：地区下的城市明细
// 背景：展示投影已去掉地区代码/名称/类型三列；任一展示列为空的整行剔除，不做部分展示。
// 约束：按主指标（录取人数）降序稳定排序，相等时保持文件原始顺序；无数据返回空切片而非错误。
func (s *Service) CityStats(code int) []CityRow {
	cities := s.st.Cities(code)
	kept := make([]dataset.City, 0, len(cities))
	for _, c := range cities {
		if c.Complete() {
			kept = append(kept, c)
		}
	}
	if dropped := len(cities) - len(kept); dropped > 0 {
		metrics.CitiesDroppedTotal.Add(float64(dropped))
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Enrolled.Num > kept[j].Enrolled.Num })
	out := make([]CityRow, len(kept))
	for i, c := range kept {
		out[i] = CityRow{City: c.Name, Fields: append([]dataset.Field(nil), c.Fields...)}
	}
	return out
}

// CityColumns：城市明细列名（声明顺序）
func (s *Service) CityColumns() []string { return s.st.CityColumns() }

// Ranking：按指定指标降序排列的地区列表，空值排在末尾
// 背景：地图图例与指标切换共用；相等时保持文件顺序。
func (s *Service) Ranking(m dataset.Metric) []dataset.Region {
	rs := s.st.Regions()
	sort.SliceStable(rs, func(i, j int) bool {
		vi, vj := rs[i].Value(m), rs[j].Value(m)
		if vi.Null != vj.Null {
			return !vi.Null
		}
		return vi.Num > vj.Num
	})
	return rs
}
