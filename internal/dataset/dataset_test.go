package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"admission-map/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	regionsCSV = "Код региона,Тип региона,Название региона,Поступило,Целевое\n" +
		"59,X,Example Oblast,120,30\n" +
		"66.0,область,Свердловская область,80,\n"
	citiesCSV = "Код региона,Название региона,Тип региона,Город,Поступило,Целевое\n" +
		"59,Example Oblast,X,A,50,5\n" +
		"59,Example Oblast,X,B,,1\n" +
		"66,Свердловская область,область,Екатеринбург,70,10\n" +
		"59,Example Oblast,X,C,80,3\n"
)

func mustTables(t *testing.T, regions, cities string) (*table.Table, *table.Table) {
	t.Helper()
	rt, err := table.Decode(strings.NewReader(regions), "regi.csv")
	require.NoError(t, err)
	ct, err := table.Decode(strings.NewReader(cities), "cities.csv")
	require.NoError(t, err)
	return rt, ct
}

func TestFromTables(t *testing.T) {
	rt, ct := mustTables(t, regionsCSV, citiesCSV)
	st, err := FromTables(rt, ct, DefaultSchema())
	require.NoError(t, err)

	assert.Equal(t, 2, st.RegionCount())
	assert.Equal(t, 4, st.CityCount())

	r, ok := st.Region(59)
	require.True(t, ok)
	assert.Equal(t, "Example Oblast", r.Name)
	assert.Equal(t, "X", r.Type)
	assert.Equal(t, 120.0, r.Enrolled.Num)
	assert.Equal(t, 30.0, r.Quota.Num)

	names := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Название региона", "Поступило", "Целевое"}, names)

	r66, ok := st.Region(66)
	require.True(t, ok)
	assert.True(t, r66.Quota.Null)

	_, ok = st.Region(1)
	assert.False(t, ok)

	cities := st.Cities(59)
	require.Len(t, cities, 3)
	assert.Equal(t, "A", cities[0].Name)
	assert.False(t, cities[1].Complete())
	assert.True(t, cities[2].Complete())
	assert.Equal(t, []string{"Город", "Поступило", "Целевое"}, st.CityColumns())
	assert.Empty(t, st.Cities(77))
}

func TestFromTables_DuplicateCode(t *testing.T) {
	rt, ct := mustTables(t, regionsCSV+"59,Y,Другая,1,1\n", citiesCSV)
	_, err := FromTables(rt, ct, DefaultSchema())
	require.Error(t, err)

	var le *table.LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 4, le.Line)
	assert.True(t, errors.Is(err, ErrDuplicateCode))
}

func TestFromTables_BadCode(t *testing.T) {
	rt, ct := mustTables(t, regionsCSV+"abc,Y,Другая,1,1\n", citiesCSV)
	_, err := FromTables(rt, ct, DefaultSchema())

	var le *table.LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 4, le.Line)
	assert.True(t, errors.Is(err, ErrBadCode))

	rt, ct = mustTables(t, regionsCSV+"59.5,Y,Другая,1,1\n", citiesCSV)
	_, err = FromTables(rt, ct, DefaultSchema())
	assert.True(t, errors.Is(err, ErrBadCode))
}

func TestFromTables_NonNumericStatistic(t *testing.T) {
	cities := "Код региона,Название региона,Тип региона,Город,Поступило\n" +
		"59,Example Oblast,X,A,50\n" +
		"59,Example Oblast,X,B,н/д\n" +
		"59,Example Oblast,X,C,80\n"
	rt, ct := mustTables(t, regionsCSV, cities)
	_, err := FromTables(rt, ct, DefaultSchema())

	var le *table.LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "cities.csv", le.Path)
	assert.Equal(t, 3, le.Line)
	assert.True(t, errors.Is(err, ErrNotNumeric))

	rt, ct = mustTables(t, regionsCSV+"77,город,Москва,900,много\n", citiesCSV)
	_, err = FromTables(rt, ct, DefaultSchema())
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "regi.csv", le.Path)
	assert.Equal(t, 4, le.Line)
	assert.True(t, errors.Is(err, ErrNotNumeric))
}

func TestFromTables_AllNullStatistic(t *testing.T) {
	regions := "Код региона,Тип региона,Название региона,Поступило,Целевое\n" +
		"59,X,Example Oblast,120,\n" +
		"66,область,Свердловская область,80,NA\n"
	rt, ct := mustTables(t, regions, citiesCSV)
	st, err := FromTables(rt, ct, DefaultSchema())
	require.NoError(t, err)
	r, ok := st.Region(59)
	require.True(t, ok)
	assert.True(t, r.Quota.Null)
}

func TestFromTables_MissingColumn(t *testing.T) {
	rt, ct := mustTables(t, "Код региона,Название региона\n59,A\n", citiesCSV)
	_, err := FromTables(rt, ct, DefaultSchema())
	assert.True(t, errors.Is(err, table.ErrMissingColumn))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	rp := filepath.Join(dir, "regi.csv")
	cp := filepath.Join(dir, "cities.csv")
	require.NoError(t, os.WriteFile(rp, []byte(regionsCSV), 0o644))
	require.NoError(t, os.WriteFile(cp, []byte(citiesCSV), 0o644))

	st, err := Open(rp, cp, DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, 2, st.RegionCount())

	_, err = Open(rp, filepath.Join(dir, "missing.csv"), DefaultSchema())
	var le *table.LoadError
	assert.True(t, errors.As(err, &le))
}

func TestCustomSchema(t *testing.T) {
	s := Schema{RegionCode: "code", RegionType: "type", RegionName: "name", City: "city", Enrolled: "enrolled", Quota: "quota"}
	rt, ct := mustTables(t,
		"code,type,name,enrolled,quota\n1,t,One,10,2\n",
		"code,name,type,city,enrolled\n1,One,t,Town,4\n")
	st, err := FromTables(rt, ct, s)
	require.NoError(t, err)
	r, ok := st.Region(1)
	require.True(t, ok)
	assert.Equal(t, "One", r.Name)
	assert.Len(t, st.Cities(1), 1)
}
