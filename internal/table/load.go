package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// LoadError：启动期加载失败（文件缺失/格式错误/缺列）
// 约束：Line 为 1 起的物理行号，0 表示与具体行无关。
type LoadError struct {
	Path string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load %s: line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load：读取 CSV 文件为不可变表
func Load(path string, required ...string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()
	return Decode(f, path, required...)
}

// Decode：从任意读取器解析 CSV
// 约束：首行为表头；行宽必须与表头一致，不一致即视为整份文件不合法。
func Decode(r io.Reader, name string, required ...string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0
	header, err := cr.Read()
	if err == io.EOF {
		return nil, &LoadError{Path: name, Err: ErrEmptyHeader}
	}
	if err != nil {
		return nil, parseErr(name, err)
	}
	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseErr(name, err)
		}
		records = append(records, rec)
	}
	return Build(name, header, records, required...)
}

func parseErr(name string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		if errors.Is(pe.Err, csv.ErrFieldCount) {
			return &LoadError{Path: name, Line: pe.Line, Err: ErrRowWidth}
		}
		return &LoadError{Path: name, Line: pe.Line, Err: pe.Err}
	}
	return &LoadError{Path: name, Err: err}
}
