package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
)

func queryInt(q url.Values, name string) (int, error) {
	s := q.Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, badParam(name, s, nil)
	}
	return n, nil
}

func queryBool(q url.Values, name string) (bool, error) {
	s := q.Get(name)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, badParam(name, s, nil)
	}
	return b, nil
}

// queryDate parses a YYYY-MM-DD parameter. An absent parameter is the zero time.
func queryDate(q url.Values, name string) (time.Time, error) {
	s := q.Get(name)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, badParam(name, s, err)
	}
	return t, nil
}

// queryLocation resolves region by name, or lat and lon given together.
// Neither yields the zero location, which the analyzer reads as home.
func (s *Server) queryLocation(q url.Values) (domain.Location, error) {
	if name := strings.TrimSpace(q.Get("region")); name != "" {
		for _, r := range s.analyzer.Regions() {
			if strings.EqualFold(r.Name, name) {
				return r, nil
			}
		}
		return domain.Location{}, badParam("region", name, nil)
	}

	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if latStr == "" && lonStr == "" {
		return domain.Location{}, nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return domain.Location{}, badParam("lat", latStr, nil)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return domain.Location{}, badParam("lon", lonStr, nil)
	}
	// The analyzer reads a zero location as the home region.
	if lat == 0 && lon == 0 {
		return domain.Location{}, badParam("lat", latStr, errZeroLocation)
	}
	return domain.Location{Lat: lat, Lon: lon}, nil
}
