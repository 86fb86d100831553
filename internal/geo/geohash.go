package geo

// 轻量 geohash 编码（base32），仅用作缓存键；精度 7 约 150m
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

func encodeGeohash(lat, lon float64, precision int) string {
	h, _ := geohashCell(lat, lon, precision)
	return h
}

// geohashCell：编码并返回所在格子的范围 minLon, minLat, maxLon, maxLat
func geohashCell(lat, lon float64, precision int) (string, [4]float64) {
	latLo, latHi := -90.0, 90.0
	lonLo, lonHi := -180.0, 180.0
	out := make([]byte, 0, precision)
	bit, ch := 0, 0
	even := true
	for len(out) < precision {
		if even {
			mid := (lonLo + lonHi) / 2
			if lon >= mid {
				ch |= 1 << (4 - bit)
				lonLo = mid
			} else {
				lonHi = mid
			}
		} else {
			mid := (latLo + latHi) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				latLo = mid
			} else {
				latHi = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			out = append(out, base32[ch])
			bit, ch = 0, 0
		}
	}
	return string(out), [4]float64{lonLo, latLo, lonHi, latHi}
}
