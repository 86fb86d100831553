// 包 table：扁平表格文件（CSV）的只读内存表示，提供列类型推断与空值识别
package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind：列类型
type Kind int

const (
	Text Kind = iota
	Number
)

func (k Kind) String() string {
	if k == Number {
		return "number"
	}
	return "text"
}

// Column：列定义，顺序即文件表头声明顺序
type Column struct {
	Name string
	Kind Kind
}

// Value：单元格值
// 约束：Raw 始终保留原始文本；Null 为真时 Num 无意义。
type Value struct {
	Kind Kind
	Null bool
	Raw  string
	Num  float64
}

// String：展示用文本；数值列按整数/小数自适应格式化，空值返回空串
func (v Value) String() string {
	if v.Null {
		return ""
	}
	if v.Kind == Number {
		return FormatNumber(v.Num)
	}
	return v.Raw
}

// MarshalJSON：空值 → null，数值列 → number，其余 → string
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Null {
		return []byte("null"), nil
	}
	if v.Kind == Number {
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.Raw)
}

// FormatNumber：整数值不带小数部分（pandas 在列含空值时会把整数写成 120.0）
func FormatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// 与 pandas read_csv 默认 na_values 对齐的常见空值记号
var nullTokens = map[string]struct{}{
	"": {}, "nan": {}, "NaN": {}, "-nan": {}, "-NaN": {}, "NA": {}, "N/A": {}, "n/a": {},
	"NULL": {}, "null": {}, "None": {}, "#N/A": {},
}

// IsNull：判断原始文本是否为空值记号
func IsNull(raw string) bool {
	_, ok := nullTokens[strings.TrimSpace(raw)]
	return ok
}

var (
	ErrEmptyHeader     = errors.New("empty header")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrMissingColumn   = errors.New("missing required column")
	ErrRowWidth        = errors.New("row width does not match header")
)

// Table：不可变内存表
// 约束：构建完成后不提供任何写接口；Row 返回副本，调用方修改不影响表内数据。
type Table struct {
	name string
	cols []Column
	idx  map[string]int
	rows [][]Value
}

// Build：由表头与原始文本记录构建表格并推断列类型
// 背景：CSV 与 Postgres 两种来源都落到同一份原始文本，保证类型推断结果一致。
// 约束：某列全部非空单元格均可解析为数字时判定为数值列；required 中任一列缺失返回 ErrMissingColumn。
func Build(name string, header []string, records [][]string, required ...string) (*Table, error) {
	if len(header) == 0 {
		return nil, &LoadError{Path: name, Err: ErrEmptyHeader}
	}
	t := &Table{name: name, idx: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if _, dup := t.idx[h]; dup {
			return nil, &LoadError{Path: name, Line: 1, Err: fmt.Errorf("%w: %q", ErrDuplicateColumn, h)}
		}
		t.idx[h] = i
		t.cols = append(t.cols, Column{Name: h, Kind: Number})
	}
	for _, r := range required {
		if _, ok := t.idx[r]; !ok {
			return nil, &LoadError{Path: name, Line: 1, Err: fmt.Errorf("%w: %q", ErrMissingColumn, r)}
		}
	}
	for n, rec := range records {
		if len(rec) != len(header) {
			return nil, &LoadError{Path: name, Line: n + 2, Err: ErrRowWidth}
		}
	}
	// 第一遍：推断列类型
	nonNull := make([]int, len(header))
	for _, rec := range records {
		for c, raw := range rec {
			if IsNull(raw) {
				continue
			}
			nonNull[c]++
			if t.cols[c].Kind == Number {
				if _, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
					t.cols[c].Kind = Text
				}
			}
		}
	}
	for c := range t.cols {
		if nonNull[c] == 0 {
			t.cols[c].Kind = Text
		}
	}
	// 第二遍：生成单元格
	t.rows = make([][]Value, 0, len(records))
	for _, rec := range records {
		row := make([]Value, len(rec))
		for c, raw := range rec {
			v := Value{Kind: t.cols[c].Kind, Raw: raw}
			if IsNull(raw) {
				v.Null = true
			} else if v.Kind == Number {
				v.Num, _ = strconv.ParseFloat(strings.TrimSpace(raw), 64)
			}
			row[c] = v
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func (t *Table) Name() string { return t.name }

// Columns：列定义副本
func (t *Table) Columns() []Column { return append([]Column(nil), t.cols...) }

// Header：列名列表（声明顺序）
func (t *Table) Header() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Index：列名到下标
func (t *Table) Index(name string) (int, bool) {
	i, ok := t.idx[name]
	return i, ok
}

func (t *Table) Len() int { return len(t.rows) }

// Row：第 i 行副本
func (t *Table) Row(i int) []Value { return append([]Value(nil), t.rows[i]...) }

// Cell：第 i 行第 c 列
func (t *Table) Cell(i, c int) Value { return t.rows[i][c] }

// Records：还原为原始文本记录，用于持久化
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.rows))
	for i, row := range t.rows {
		rec := make([]string, len(row))
		for c, v := range row {
			rec[c] = v.Raw
		}
		out[i] = rec
	}
	return out
}
