// 包 config：集中读取环境变量，带内联默认值；.env 文件由入口在调用前通过 godotenv 加载
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"admission-map/internal/dataset"
	"admission-map/internal/geo"
)

type Config struct {
	Addr    string
	APIBase string
	UIDist  string

	DataSource string // csv | postgres
	RegionsCSV string
	CitiesCSV  string
	GeoJSON    string

	Schema       dataset.Schema
	Keys         geo.Keys
	CityPageSize int

	GeoIPPath string

	RedisEnable    bool
	LocateCacheTTL time.Duration
	LocateLRUSize  int

	RateLimitEnabled    bool
	RateLimitQPS        int
	RateLimitPerVisitor int

	TLSEnable bool
	TLSCert   string
	TLSKey    string
}

// FromEnv：读取进程环境
// 约束：数值解析失败或非正数时回退默认值；不返回错误，配置错误在依赖初始化时暴露。
func FromEnv() Config {
	def := dataset.DefaultSchema()
	keys := geo.DefaultKeys()
	c := Config{
		Addr:       str("ADDR", ":8080"),
		APIBase:    strings.TrimRight(str("API_BASE", "/api"), "/"),
		UIDist:     str("UI_DIST", filepath.Join("ui", "dist")),
		DataSource: strings.ToLower(str("DATA_SOURCE", "csv")),
		RegionsCSV: str("REGIONS_CSV", filepath.Join("data", "regi.csv")),
		CitiesCSV:  str("CITIES_CSV", filepath.Join("data", "cities.csv")),
		GeoJSON:    str("GEOJSON_PATH", filepath.Join("data", "regions.geojson")),
		Schema: dataset.Schema{
			RegionCode: str("COL_REGION_CODE", def.RegionCode),
			RegionType: str("COL_REGION_TYPE", def.RegionType),
			RegionName: str("COL_REGION_NAME", def.RegionName),
			City:       str("COL_CITY", def.City),
			Enrolled:   str("COL_ENROLLED", def.Enrolled),
			Quota:      str("COL_QUOTA", def.Quota),
		},
		Keys: geo.Keys{
			ID:       str("GEO_ID_PROPERTY", keys.ID),
			Enrolled: str("PROP_ENROLLED", keys.Enrolled),
			Quota:    str("PROP_QUOTA", keys.Quota),
			Name:     str("PROP_NAME", keys.Name),
		},
		CityPageSize:        num("CITY_PAGE_SIZE", 10),
		GeoIPPath:           os.Getenv("GEOIP_DB_PATH"),
		RedisEnable:         os.Getenv("REDIS_ENABLE") == "true",
		LocateCacheTTL:      time.Duration(num("LOCATE_CACHE_TTL_S", 3600)) * time.Second,
		LocateLRUSize:       num("LOCATE_LRU_SIZE", 4096),
		RateLimitEnabled:    os.Getenv("RATE_LIMIT_ENABLED") == "true",
		RateLimitQPS:        num("RATE_LIMIT_QPS", 200),
		RateLimitPerVisitor: num("RATE_LIMIT_PER_VISITOR", 0),
		TLSEnable:           os.Getenv("TLS_ENABLE") == "true",
		TLSCert:             str("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKey:              str("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
	}
	if c.APIBase == "" {
		c.APIBase = "/api"
	}
	return c
}

func str(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func num(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
