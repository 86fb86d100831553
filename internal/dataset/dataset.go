// 包 dataset：地区/城市招生统计的类型化只读存储
// 背景：两张扁平表在启动时加载一次并投影为固定结构的记录，查询层直接按地区代码取数，不再做动态字段删除。
// 约束：构建后只读，可在多个请求协程间无锁共享；同一地区代码出现多次视为数据错误，在加载期拒绝。
package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"admission-map/internal/logger"
	"admission-map/internal/table"
)

var (
	ErrBadCode       = errors.New("region code is not an integer")
	ErrDuplicateCode = errors.New("duplicate region code")
	ErrNotNumeric    = errors.New("statistic column is not numeric")
)

// Schema：各角色列对应的表头名称
type Schema struct {
	RegionCode string
	RegionType string
	RegionName string
	City       string
	Enrolled   string
	Quota      string
}

// DefaultSchema：与源数据文件一致的表头
func DefaultSchema() Schema {
	return Schema{
		RegionCode: "Код региона",
		RegionType: "Тип региона",
		RegionName: "Название региона",
		City:       "Город",
		Enrolled:   "Поступило",
		Quota:      "Целевое",
	}
}

// RegionRequired：地区表必需列
func (s Schema) RegionRequired() []string {
	return []string{s.RegionCode, s.RegionType, s.RegionName, s.Enrolled, s.Quota}
}

// CityRequired：城市表必需列
func (s Schema) CityRequired() []string {
	return []string{s.RegionCode, s.RegionName, s.RegionType, s.City, s.Enrolled}
}

// Field：展示字段（列名 + 值），切片顺序即表头声明顺序
type Field struct {
	Name  string      `json:"name"`
	Value table.Value `json:"value"`
}

// Region：地区记录
// Fields 为展示投影：去掉地区代码与地区类型后的全部列，包含地区名称。
type Region struct {
	Code     int
	Type     string
	Name     string
	Enrolled table.Value
	Quota    table.Value
	Fields   []Field
}

// Metric：地图着色与悬停展示所用指标，取值与原下拉框一致
type Metric int

const (
	MetricQuota    Metric = 1 // 目标名额（Целевое）
	MetricEnrolled Metric = 2 // 录取人数（Зачисленные）
)

// ParseMetric：解析查询参数，接受数字与名称；无法识别时回退到录取人数
func ParseMetric(s string) Metric {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "quota", "target":
		return MetricQuota
	default:
		return MetricEnrolled
	}
}

func (m Metric) String() string {
	if m == MetricQuota {
		return "quota"
	}
	return "enrolled"
}

// Label：面向用户的指标名称
func (m Metric) Label() string {
	if m == MetricQuota {
		return "Целевое"
	}
	return "Зачисленные"
}

// Value：按指标取值
func (r Region) Value(m Metric) table.Value {
	if m == MetricQuota {
		return r.Quota
	}
	return r.Enrolled
}

// City：城市记录
// Fields 为展示投影：去掉地区代码、地区名称、地区类型三列（反范式冗余列）。
type City struct {
	RegionCode int
	Name       string
	Enrolled   table.Value
	Fields     []Field
}

// Complete：展示投影中没有空值
func (c City) Complete() bool {
	for _, f := range c.Fields {
		if f.Value.Null {
			return false
		}
	}
	return true
}

// Store：只读数据存储
type Store struct {
	schema      Schema
	regions     []Region
	byCode      map[int]int
	cities      map[int][]City
	cityColumns []string
	cityCount   int
}

// Open：从两个 CSV 文件构建存储
func Open(regionsPath, citiesPath string, schema Schema) (*Store, error) {
	rt, err := table.Load(regionsPath, schema.RegionRequired()...)
	if err != nil {
		return nil, err
	}
	ct, err := table.Load(citiesPath, schema.CityRequired()...)
	if err != nil {
		return nil, err
	}
	return FromTables(rt, ct, schema)
}

// FromTables：从已加载的表构建存储（CSV 或 Postgres 来源共用）
func FromTables(regions, cities *table.Table, schema Schema) (*Store, error) {
	if err := requireColumns(regions, schema.RegionRequired()); err != nil {
		return nil, err
	}
	if err := requireColumns(cities, schema.CityRequired()); err != nil {
		return nil, err
	}
	if err := requireNumeric(regions, schema.Enrolled, schema.Quota); err != nil {
		return nil, err
	}
	if err := requireNumeric(cities, schema.Enrolled); err != nil {
		return nil, err
	}
	s := &Store{
		schema: schema,
		byCode: make(map[int]int, regions.Len()),
		cities: make(map[int][]City),
	}
	if err := s.buildRegions(regions); err != nil {
		return nil, err
	}
	if err := s.buildCities(cities); err != nil {
		return nil, err
	}
	logger.L().Debug("dataset_built", "regions", len(s.regions), "cities", s.cityCount)
	return s, nil
}

func requireColumns(t *table.Table, names []string) error {
	for _, n := range names {
		if _, ok := t.Index(n); !ok {
			return &table.LoadError{Path: t.Name(), Line: 1, Err: fmt.Errorf("%w: %q", table.ErrMissingColumn, n)}
		}
	}
	return nil
}

// requireNumeric：排序与着色所用的统计列必须是数值列
// 约束：整列为空值时放行（推断为文本列但不含任何值）；否则报告第一个无法解析的单元格所在行。
func requireNumeric(t *table.Table, names ...string) error {
	for _, n := range names {
		c, _ := t.Index(n)
		for i := 0; i < t.Len(); i++ {
			v := t.Cell(i, c)
			if v.Null || v.Kind == table.Number {
				continue
			}
			if _, err := strconv.ParseFloat(strings.TrimSpace(v.Raw), 64); err != nil {
				return &table.LoadError{Path: t.Name(), Line: i + 2, Err: fmt.Errorf("%w: %q = %q", ErrNotNumeric, n, v.Raw)}
			}
		}
	}
	return nil
}

func (s *Store) buildRegions(t *table.Table) error {
	codeIdx, _ := t.Index(s.schema.RegionCode)
	typeIdx, _ := t.Index(s.schema.RegionType)
	nameIdx, _ := t.Index(s.schema.RegionName)
	enrIdx, _ := t.Index(s.schema.Enrolled)
	quotaIdx, _ := t.Index(s.schema.Quota)
	header := t.Header()
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		code, err := parseCode(row[codeIdx])
		if err != nil {
			return &table.LoadError{Path: t.Name(), Line: i + 2, Err: err}
		}
		if first, dup := s.byCode[code]; dup {
			return &table.LoadError{Path: t.Name(), Line: i + 2, Err: fmt.Errorf("%w: %d (first at line %d)", ErrDuplicateCode, code, first+2)}
		}
		r := Region{
			Code:     code,
			Type:     row[typeIdx].String(),
			Name:     row[nameIdx].String(),
			Enrolled: row[enrIdx],
			Quota:    row[quotaIdx],
		}
		for c, v := range row {
			if c == codeIdx || c == typeIdx {
				continue
			}
			r.Fields = append(r.Fields, Field{Name: header[c], Value: v})
		}
		s.byCode[code] = len(s.regions)
		s.regions = append(s.regions, r)
	}
	return nil
}

func (s *Store) buildCities(t *table.Table) error {
	codeIdx, _ := t.Index(s.schema.RegionCode)
	rnameIdx, _ := t.Index(s.schema.RegionName)
	rtypeIdx, _ := t.Index(s.schema.RegionType)
	cityIdx, _ := t.Index(s.schema.City)
	enrIdx, _ := t.Index(s.schema.Enrolled)
	header := t.Header()
	for c := range header {
		if c == codeIdx || c == rnameIdx || c == rtypeIdx {
			continue
		}
		s.cityColumns = append(s.cityColumns, header[c])
	}
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		code, err := parseCode(row[codeIdx])
		if err != nil {
			return &table.LoadError{Path: t.Name(), Line: i + 2, Err: err}
		}
		city := City{RegionCode: code, Name: row[cityIdx].String(), Enrolled: row[enrIdx]}
		for c, v := range row {
			if c == codeIdx || c == rnameIdx || c == rtypeIdx {
				continue
			}
			city.Fields = append(city.Fields, Field{Name: header[c], Value: v})
		}
		s.cities[code] = append(s.cities[code], city)
		s.cityCount++
	}
	return nil
}

// parseCode：地区代码必须为整数；接受 59 与 59.0 两种写法
func parseCode(v table.Value) (int, error) {
	if v.Null {
		return 0, fmt.Errorf("%w: %q", ErrBadCode, v.Raw)
	}
	n := v.Num
	if v.Kind != table.Number {
		// 同列存在非数字单元格时整列退化为文本，逐行解析以定位出错行
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Raw), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadCode, v.Raw)
		}
		n = f
	}
	if n != math.Trunc(n) {
		return 0, fmt.Errorf("%w: %q", ErrBadCode, v.Raw)
	}
	return int(n), nil
}

func (s *Store) Schema() Schema { return s.schema }

// Regions：全部地区记录（文件顺序）；返回切片副本，元素字段切片仍与存储共享，调用方不得修改
func (s *Store) Regions() []Region { return append([]Region(nil), s.regions...) }

// Region：按代码取地区记录
func (s *Store) Region(code int) (Region, bool) {
	i, ok := s.byCode[code]
	if !ok {
		return Region{}, false
	}
	return s.regions[i], true
}

// Cities：某地区的全部城市记录（文件顺序，含不完整行）
func (s *Store) Cities(code int) []City { return append([]City(nil), s.cities[code]...) }

// CityColumns：城市展示列（声明顺序）
func (s *Store) CityColumns() []string { return append([]string(nil), s.cityColumns...) }

func (s *Store) RegionCount() int { return len(s.regions) }
func (s *Store) CityCount() int   { return s.cityCount }
