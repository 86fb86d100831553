package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"admission-map/internal/logger"
)

// 背景：首次运行自动创建统计表的存储结构；每张 CSV 表保存表头与逐行原始单元格，
// 读取后重新走同一套类型推断，保证与直接读 CSV 的结果一致。
// 约束：只用 IF NOT EXISTS，可重复执行。row_count 为空表示导入未完成，读取方据此拒绝半截数据。
var stmts = []string{
	`CREATE TABLE IF NOT EXISTS _adm_tables (
		name TEXT PRIMARY KEY,
		columns JSONB NOT NULL,
		loaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		row_count INT
	)`,
	`ALTER TABLE _adm_tables ADD COLUMN IF NOT EXISTS row_count INT`,
	`CREATE TABLE IF NOT EXISTS _adm_rows (
		table_name TEXT NOT NULL REFERENCES _adm_tables(name) ON DELETE CASCADE,
		seq INT NOT NULL,
		cells JSONB NOT NULL,
		PRIMARY KEY (table_name, seq)
	)`,
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema stmt %d: %w", i, err)
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
