// 包 geoip：访问者 IP → 经纬度（MaxMind GeoLite2-City），用于在地图上预选访问者所在地区
package geoip

import (
	"errors"
	"net"

	"admission-map/internal/logger"
	"admission-map/internal/metrics"

	"github.com/oschwald/geoip2-golang"
)

var ErrBadIP = errors.New("bad ip")

// Resolver：nil 或未打开数据库时所有查询返回 ok=false
type Resolver struct {
	db *geoip2.Reader
}

// Open：path 为空表示禁用，返回 (nil, nil)
func Open(path string) (*Resolver, error) {
	if path == "" {
		return nil, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	logger.L().Info("geoip_open_ok", "path", path, "type", db.Metadata().DatabaseType)
	return &Resolver{db: db}, nil
}

func (r *Resolver) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Coordinates：查询 IP 的经纬度
// 约束：数据库中无该 IP 或没有坐标时 ok=false；IP 文本非法返回 ErrBadIP。
func (r *Resolver) Coordinates(ip string) (lat, lon float64, ok bool, err error) {
	if r == nil || r.db == nil {
		metrics.GeoIPLookupsTotal.WithLabelValues("disabled").Inc()
		return 0, 0, false, nil
	}
	addr := net.ParseIP(ip)
	if addr == nil {
		metrics.GeoIPLookupsTotal.WithLabelValues("bad_ip").Inc()
		return 0, 0, false, ErrBadIP
	}
	rec, err := r.db.City(addr)
	if err != nil {
		metrics.GeoIPLookupsTotal.WithLabelValues("error").Inc()
		return 0, 0, false, err
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		metrics.GeoIPLookupsTotal.WithLabelValues("miss").Inc()
		return 0, 0, false, nil
	}
	metrics.GeoIPLookupsTotal.WithLabelValues("hit").Inc()
	return rec.Location.Latitude, rec.Location.Longitude, true, nil
}
