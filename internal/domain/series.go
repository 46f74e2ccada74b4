package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used at every boundary.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned when a date string cannot be parsed.
var ErrInvalidDate = errors.New("invalid date")

// ErrSeriesLength is returned when dates and values differ in length.
var ErrSeriesLength = errors.New("dates and values differ in length")

// Point is one dated observation of a scalar signal (NDVI).
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Location is a WGS-84 coordinate pair with an optional region name.
type Location struct {
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// ParseDate parses a "YYYY-MM-DD" date. RFC 3339 timestamps are accepted and
// truncated to their calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return CalendarDate(t), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseSeries pairs date strings with values. Malformed dates are reported
// with their index rather than skipped.
func ParseSeries(dates []string, values []float64) ([]Point, error) {
	if len(dates) != len(values) {
		return nil, fmt.Errorf("%w: %d dates, %d values", ErrSeriesLength, len(dates), len(values))
	}
	points := make([]Point, len(dates))
	for i, d := range dates {
		t, err := ParseDate(d)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		points[i] = Point{Date: t, Value: values[i]}
	}
	return points, nil
}

// SeriesValues extracts the values of a series in order.
func SeriesValues(points []Point) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}

// PointsForYear returns the points dated within the given calendar year.
func PointsForYear(points []Point, year int) []Point {
	var out []Point
	for _, p := range points {
		if p.Date.Year() == year {
			out = append(out, p)
		}
	}
	return out
}
