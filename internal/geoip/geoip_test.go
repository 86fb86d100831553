package geoip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Disabled(t *testing.T) {
	r, err := Open("")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, _, ok, err := r.Coordinates("8.8.8.8")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, r.Close())
}

func TestOpen_Invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "broken.mmdb")
	require.NoError(t, os.WriteFile(p, []byte("not a maxmind db"), 0o644))
	_, err := Open(p)
	assert.Error(t, err)

	_, err = Open(filepath.Join(t.TempDir(), "missing.mmdb"))
	assert.Error(t, err)
}

// 需要真实数据库：GEOIP_TEST_DB 指向 GeoLite2-City.mmdb
func TestCoordinates_RealDB(t *testing.T) {
	p := os.Getenv("GEOIP_TEST_DB")
	if p == "" {
		t.Skip("GEOIP_TEST_DB not set")
	}
	r, err := Open(p)
	require.NoError(t, err)
	defer r.Close()

	_, _, _, err = r.Coordinates("not-an-ip")
	assert.ErrorIs(t, err, ErrBadIP)

	_, _, ok, err := r.Coordinates("127.0.0.1")
	assert.NoError(t, err)
	assert.False(t, ok)
}
