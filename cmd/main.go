// 程序入口：读取配置、加载统计表与地图边界、初始化可选依赖并启动服务；API 注册在 internal/api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"admission-map/internal/api"
	"admission-map/internal/config"
	"admission-map/internal/dataset"
	"admission-map/internal/geo"
	"admission-map/internal/geoip"
	"admission-map/internal/logger"
	"admission-map/internal/metrics"
	"admission-map/internal/middleware"
	"admission-map/internal/migrate"
	"admission-map/internal/stats"
	"admission-map/internal/store"
	"admission-map/internal/utils"
	"admission-map/internal/version"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	cfg := config.FromEnv()
	l.Debug("config_loaded", "api_base", cfg.APIBase, "data_source", cfg.DataSource, "ui", cfg.UIDist)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := loadDataset(ctx, cfg)
	if err != nil {
		l.Error("dataset_load_error", "source", cfg.DataSource, "err", err)
		os.Exit(1)
	}
	l.Info("dataset_load_ok", "regions", ds.RegionCount(), "cities", ds.CityCount())

	fc, err := geo.Load(cfg.GeoJSON)
	if err != nil {
		l.Error("geojson_load_error", "err", err)
		os.Exit(1)
	}
	enriched := geo.Enrich(fc, ds.Regions(), cfg.Keys)
	locator := geo.NewLocator(enriched, cfg.Keys.ID, cfg.LocateLRUSize, cfg.LocateCacheTTL)

	deps := api.Deps{
		Stats:      stats.New(ds),
		Map:        enriched,
		Locator:    locator,
		Keys:       cfg.Keys,
		NameColumn: cfg.Schema.RegionName,
		PageSize:   cfg.CityPageSize,
		LocateTTL:  cfg.LocateCacheTTL,
	}

	rc := utils.OpenRedisFromEnv(cfg.RedisEnable)
	if rc == nil {
		l.Info("redis_disabled")
	} else if err := rc.Ping(ctx).Err(); err != nil {
		l.Error("redis_ping_error", "err", err)
		_ = rc.Close()
		rc = nil
	} else {
		l.Info("redis_ping_ok")
		defer rc.Close()
		deps.Cache = api.RedisCache{RC: rc}
	}

	gr, err := geoip.Open(cfg.GeoIPPath)
	if err != nil {
		l.Error("geoip_open_error", "path", cfg.GeoIPPath, "err", err)
	} else if gr != nil {
		defer gr.Close()
		deps.GeoIP = gr
	} else {
		l.Info("geoip_disabled")
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, api.BuildRoutes(deps)))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	mux.HandleFunc("/config.js", api.ConfigJS(cfg.APIBase, version.Commit, dataset.MetricEnrolled))
	mux.Handle("/", http.FileServer(http.Dir(cfg.UIDist)))

	var handler http.Handler = logger.AccessMiddleware(l)(mux)
	if cfg.RateLimitEnabled {
		lm := &middleware.Limiter{Bucket: middleware.NewTokenBucket(cfg.RateLimitQPS), PerVisitor: cfg.RateLimitPerVisitor}
		if rc != nil {
			lm.Visitors = middleware.RedisCounter{RC: rc}
		}
		handler = lm.Wrap(handler)
		l.Info("ratelimit_enabled", "qps", cfg.RateLimitQPS, "per_visitor", cfg.RateLimitPerVisitor)
	}

	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()

	if cfg.TLSEnable {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCert, cfg.TLSKey, "admission-map.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCert)
		err = s.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	} else {
		l.Info("listening", "addr", cfg.Addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	l.Info("server_stopped")
}

// loadDataset：按 DATA_SOURCE 读取 CSV 或已导入 Postgres 的统计表
func loadDataset(ctx context.Context, cfg config.Config) (*dataset.Store, error) {
	if cfg.DataSource != "postgres" {
		return dataset.Open(cfg.RegionsCSV, cfg.CitiesCSV, cfg.Schema)
	}
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	return store.AttachDB(db).OpenDataset(ctx, cfg.Schema)
}
