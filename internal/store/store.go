// 包 store：统计表在 PostgreSQL 中的持久化，供 adm-ingest 写入、服务端以 DATA_SOURCE=postgres 读取
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"admission-map/internal/dataset"
	"admission-map/internal/logger"
	"admission-map/internal/table"
)

var (
	// ErrNoTable：库中没有该名称的表
	ErrNoTable = errors.New("table not ingested")
	// ErrIncompleteTable：导入未完成，或行数与表头记录不符
	ErrIncompleteTable = errors.New("table ingest incomplete")
)

const batchSize = 1000

// 导入后的表名
const (
	RegionsTable = "regions"
	CitiesTable  = "cities"
)

type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *sql.DB { return s.db }

// 文档注释：整表替换写入
// 背景：导入以表为单位全量覆盖；先删旧表（行级联删除），再按批次插入，每批一个事务。
// 约束：表头先以空 row_count 写入，全部批次成功后才写入行数；中途失败时读取方得到 ErrIncompleteTable，重新导入即可覆盖。
func (s *Store) SaveTable(ctx context.Context, name string, t *table.Table) error {
	cols, err := json.Marshal(t.Header())
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM _adm_tables WHERE name=$1`, name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _adm_tables(name, columns, loaded_at, row_count) VALUES($1, $2, now(), NULL)`, name, string(cols)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert header %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	recs := t.Records()
	for lo := 0; lo < len(recs); lo += batchSize {
		hi := lo + batchSize
		if hi > len(recs) {
			hi = len(recs)
		}
		if err := s.insertBatch(ctx, name, lo, recs[lo:hi]); err != nil {
			return fmt.Errorf("insert rows %s[%d:%d]: %w", name, lo, hi, err)
		}
		logger.L().Debug("store_batch_ok", "table", name, "from", lo, "to", hi)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE _adm_tables SET row_count=$2 WHERE name=$1`, name, len(recs)); err != nil {
		return fmt.Errorf("finish %s: %w", name, err)
	}
	logger.L().Info("store_table_saved", "table", name, "rows", len(recs))
	return nil
}

func (s *Store) insertBatch(ctx context.Context, name string, offset int, recs [][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _adm_rows(table_name, seq, cells) VALUES($1, $2, $3)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for i, rec := range recs {
		cells, err := json.Marshal(rec)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, name, offset+i, string(cells)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadTable：读取整表并重建 *table.Table（重新做类型推断与必需列校验）
func (s *Store) LoadTable(ctx context.Context, name string, required ...string) (*table.Table, error) {
	var raw string
	var want sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT columns, row_count FROM _adm_tables WHERE name=$1`, name).Scan(&raw, &want)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &table.LoadError{Path: "postgres:" + name, Err: ErrNoTable}
	}
	if err != nil {
		return nil, err
	}
	if !want.Valid {
		return nil, &table.LoadError{Path: "postgres:" + name, Err: ErrIncompleteTable}
	}
	var header []string
	if err := json.Unmarshal([]byte(raw), &header); err != nil {
		return nil, &table.LoadError{Path: "postgres:" + name, Err: err}
	}
	rows, err := s.db.QueryContext(ctx, `SELECT cells FROM _adm_rows WHERE table_name=$1 ORDER BY seq`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs [][]string
	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return nil, err
		}
		var rec []string
		if err := json.Unmarshal([]byte(cells), &rec); err != nil {
			return nil, &table.LoadError{Path: "postgres:" + name, Line: len(recs) + 2, Err: err}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if int64(len(recs)) != want.Int64 {
		return nil, &table.LoadError{Path: "postgres:" + name, Err: fmt.Errorf("%w: %d of %d rows", ErrIncompleteTable, len(recs), want.Int64)}
	}
	logger.L().Debug("store_table_loaded", "table", name, "rows", len(recs))
	return table.Build("postgres:"+name, header, recs, required...)
}

// OpenDataset：从库中读取地区表与城市表并构建只读数据集（DATA_SOURCE=postgres）
func (s *Store) OpenDataset(ctx context.Context, schema dataset.Schema) (*dataset.Store, error) {
	regions, err := s.LoadTable(ctx, RegionsTable, schema.RegionRequired()...)
	if err != nil {
		return nil, err
	}
	cities, err := s.LoadTable(ctx, CitiesTable, schema.CityRequired()...)
	if err != nil {
		return nil, err
	}
	return dataset.FromTables(regions, cities, schema)
}
