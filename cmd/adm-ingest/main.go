// 导入工具：校验地区表与城市表 CSV，并整表写入 PostgreSQL，供服务端以 DATA_SOURCE=postgres 读取
package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"admission-map/internal/config"
	"admission-map/internal/dataset"
	"admission-map/internal/logger"
	"admission-map/internal/migrate"
	"admission-map/internal/store"
	"admission-map/internal/table"
	"admission-map/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	cfg := config.FromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	regions, err := table.Load(cfg.RegionsCSV, cfg.Schema.RegionRequired()...)
	if err != nil {
		l.Error("regions_load_error", "err", err)
		os.Exit(1)
	}
	cities, err := table.Load(cfg.CitiesCSV, cfg.Schema.CityRequired()...)
	if err != nil {
		l.Error("cities_load_error", "err", err)
		os.Exit(1)
	}
	// 先按服务端同样的规则构建一次，坏数据不入库
	ds, err := dataset.FromTables(regions, cities, cfg.Schema)
	if err != nil {
		l.Error("dataset_validate_error", "err", err)
		os.Exit(1)
	}
	l.Info("dataset_validate_ok", "regions", ds.RegionCount(), "cities", ds.CityCount())

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		l.Error("db_ping_error", "err", err)
		os.Exit(1)
	}
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)
	if err := st.SaveTable(ctx, store.RegionsTable, regions); err != nil {
		l.Error("ingest_error", "table", store.RegionsTable, "err", err)
		os.Exit(1)
	}
	if err := st.SaveTable(ctx, store.CitiesTable, cities); err != nil {
		l.Error("ingest_error", "table", store.CitiesTable, "err", err)
		os.Exit(1)
	}
	l.Info("ingest_done", "regions", regions.Len(), "cities", cities.Len())
}
