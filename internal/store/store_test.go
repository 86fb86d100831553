package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"

	"admission-map/internal/migrate"
	"admission-map/internal/table"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要可写的 Postgres：PG_TEST_DSN=postgres://...
func openTestDB(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrate.EnsureSchema(context.Background(), db))
	return AttachDB(db)
}

func TestSaveLoadTable(t *testing.T) {
	st := openTestDB(t)
	ctx := context.Background()

	src, err := table.Decode(strings.NewReader("Код региона,Название региона,Поступило\n59,Пермский край,120\n66,Свердловская область,\n"), "regi.csv")
	require.NoError(t, err)

	name := "test_regions_" + strings.ReplaceAll(t.Name(), "/", "_")
	require.NoError(t, st.SaveTable(ctx, name, src))
	// 重复导入覆盖旧数据
	require.NoError(t, st.SaveTable(ctx, name, src))

	got, err := st.LoadTable(ctx, name, "Код региона")
	require.NoError(t, err)
	assert.Equal(t, src.Header(), got.Header())
	assert.Equal(t, src.Records(), got.Records())
	assert.Equal(t, src.Columns(), got.Columns())

	_, err = st.DB().ExecContext(ctx, `DELETE FROM _adm_tables WHERE name=$1`, name)
	require.NoError(t, err)
}

func TestLoadTable_Missing(t *testing.T) {
	st := openTestDB(t)
	_, err := st.LoadTable(context.Background(), "no_such_table")
	var le *table.LoadError
	require.True(t, errors.As(err, &le))
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestLoadTable_Incomplete(t *testing.T) {
	st := openTestDB(t)
	ctx := context.Background()

	src, err := table.Decode(strings.NewReader("Код региона,Поступило\n59,120\n66,80\n77,900\n"), "regi.csv")
	require.NoError(t, err)
	name := "test_partial_" + strings.ReplaceAll(t.Name(), "/", "_")
	require.NoError(t, st.SaveTable(ctx, name, src))
	t.Cleanup(func() {
		_, _ = st.DB().ExecContext(context.Background(), `DELETE FROM _adm_tables WHERE name=$1`, name)
	})

	// 后续批次未写入：表头记录 3 行，库中只剩 1 行
	_, err = st.DB().ExecContext(ctx, `DELETE FROM _adm_rows WHERE table_name=$1 AND seq > 0`, name)
	require.NoError(t, err)
	_, err = st.LoadTable(ctx, name)
	var le *table.LoadError
	require.True(t, errors.As(err, &le))
	assert.ErrorIs(t, err, ErrIncompleteTable)

	// 导入中途：行数尚未写入
	_, err = st.DB().ExecContext(ctx, `UPDATE _adm_tables SET row_count=NULL WHERE name=$1`, name)
	require.NoError(t, err)
	_, err = st.LoadTable(ctx, name)
	assert.ErrorIs(t, err, ErrIncompleteTable)

	// 重新导入恢复
	require.NoError(t, st.SaveTable(ctx, name, src))
	got, err := st.LoadTable(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
}
