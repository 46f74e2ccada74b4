// Command validate runs the smoother, bloom detector and risk scorer over a
// genmock fixture and checks the invariants of their output: lengths,
// bounds, ordering and forecast flags. Each phase is reported as PASS or
// FAIL with its individual errors.
//
// Usage:
//
//	go run ./cmd/validate -fixture data/mock/valencia_arroz.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

const floatTolerance = 1e-9

// fixture mirrors the file written by cmd/genmock.
type fixture struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Seed        uint64                  `json:"seed"`
	Crop        string                  `json:"crop"`
	Location    domain.Location         `json:"location"`
	NDVI        []domain.Point          `json:"ndvi"`
	Weather     []domain.WeatherReading `json:"weather"`
	Forecast    []domain.ForecastDay    `json:"forecast"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	fixturePath := flag.String("fixture", "", "path to a genmock JSON fixture")
	window := flag.Int("window", domain.DefaultSmoothingWindow, "smoothing window (odd, >= 3)")
	polyOrder := flag.Int("poly-order", domain.DefaultPolyOrder, "smoothing polynomial order")
	flag.Parse()

	if *fixturePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*fixturePath, *window, *polyOrder); code != 0 {
		os.Exit(code)
	}
}

func run(path string, window, polyOrder int) int {
	fmt.Println("=== Bloom Risk Output Validation ===")
	fmt.Println()

	f, err := loadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}

	// Score against the fixture's own clock so forecast confidence matches
	// the day it was generated.
	clk := clockwork.NewFakeClockAt(f.GeneratedAt)
	smoother := domain.NewSmoother(window, polyOrder)
	detector := domain.NewDetector(smoother, domain.DefaultDerivativeThreshold)
	scorer := domain.NewScorer(domain.DefaultCropTable(), clk)

	phases := []*phase{
		validateFixture(f),
		validateSmoothing(f, smoother),
		validateDetection(f, detector),
		validateScoring(f, scorer),
		validateForecastSeries(f, scorer),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Fixture: %s, %d NDVI composites, %d weather days, %d forecast days\n",
		f.Crop, len(f.NDVI), len(f.Weather), len(f.Forecast))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadFixture(path string) (fixture, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from a CLI flag
	if err != nil {
		return fixture{}, err
	}
	var f fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return fixture{}, fmt.Errorf("decode: %w", err)
	}
	if len(f.NDVI) == 0 {
		return fixture{}, fmt.Errorf("fixture has no NDVI series")
	}
	return f, nil
}

// ── Phase 1: fixture shape ──

func validateFixture(f fixture) *phase {
	p := &phase{name: "Fixture shape"}
	fmt.Println("Phase 1: Fixture shape")

	for i, pt := range f.NDVI {
		if !finite(pt.Value) || pt.Value < 0 || pt.Value > 1 {
			p.errorf("ndvi[%d] %s: value %v outside [0, 1]", i, day(pt.Date), pt.Value)
		}
		if i > 0 && !pt.Date.After(f.NDVI[i-1].Date) {
			p.errorf("ndvi[%d] %s: not after previous sample %s", i, day(pt.Date), day(f.NDVI[i-1].Date))
		}
	}
	for i := 1; i < len(f.Weather); i++ {
		if got := domain.DaysBetween(f.Weather[i-1].ObservedAt, f.Weather[i].ObservedAt); got != 1 {
			p.errorf("weather[%d]: %d days after previous reading, want 1", i, got)
		}
	}
	if len(f.Forecast) == 0 {
		p.errorf("fixture has no forecast days")
	}
	for i := 1; i < len(f.Forecast); i++ {
		if got := domain.DaysBetween(f.Forecast[i-1].Date, f.Forecast[i].Date); got != 1 {
			p.errorf("forecast[%d]: %d days after previous day, want 1", i, got)
		}
	}

	fmt.Printf("  %d composites from %s to %s\n", len(f.NDVI), day(f.NDVI[0].Date), day(f.NDVI[len(f.NDVI)-1].Date))
	return p
}

// ── Phase 2: smoothing ──

func validateSmoothing(f fixture, s domain.Smoother) *phase {
	p := &phase{name: "Smoothing preserves length and level"}
	fmt.Println("Phase 2: Smoothing")

	values := domain.SeriesValues(f.NDVI)
	smoothed := s.Smooth(values)
	if len(smoothed) != len(values) {
		p.errorf("smoothed length %d, want %d", len(smoothed), len(values))
	}
	for i, v := range smoothed {
		if !finite(v) {
			p.errorf("smoothed[%d] is %v", i, v)
		}
	}

	// A constant signal is a degree-zero polynomial and must come back unchanged.
	flat := make([]float64, len(values))
	for i := range flat {
		flat[i] = 0.42
	}
	for i, v := range s.Smooth(flat) {
		if math.Abs(v-0.42) > floatTolerance {
			p.errorf("constant series smoothed[%d] = %v, want 0.42", i, v)
			break
		}
	}

	fmt.Printf("  window %d, polynomial order %d\n", s.Window(), s.PolyOrder())
	return p
}

// ── Phase 3: bloom detection ──

func validateDetection(f fixture, d domain.Detector) *phase {
	p := &phase{name: "Bloom events ordered and bounded"}
	fmt.Println("Phase 3: Bloom detection")

	first, last := f.NDVI[0].Date.Year(), f.NDVI[len(f.NDVI)-1].Date.Year()
	var historic []int
	seen := map[string]bool{}
	for y := first; y <= last; y++ {
		pts := domain.PointsForYear(f.NDVI, y)
		events := d.Detect(pts, historic)
		fmt.Printf("  %d: %d events from %d composites\n", y, len(events), len(pts))

		dates := map[time.Time]bool{}
		for _, pt := range pts {
			dates[pt.Date] = true
		}
		for i, ev := range events {
			checkEvent(p, y, i, ev, dates, len(historic))
			if seen[ev.ID] {
				p.errorf("%d event %d: duplicate id %s", y, i, ev.ID)
			}
			seen[ev.ID] = true
			if i > 0 && ev.PeakDate.Before(events[i-1].PeakDate) {
				p.errorf("%d event %d: peak %s before previous peak %s", y, i, day(ev.PeakDate), day(events[i-1].PeakDate))
			}
		}

		if doy, ok := domain.PeakDayOfYear(pts); ok {
			historic = append(historic, doy)
		}
	}
	return p
}

func checkEvent(p *phase, year, i int, ev domain.BloomEvent, dates map[time.Time]bool, historic int) {
	if !dates[ev.PeakDate] {
		p.errorf("%d event %d: peak %s is not a sample date", year, i, day(ev.PeakDate))
	}
	if ev.OnsetDate.After(ev.PeakDate) {
		p.errorf("%d event %d: onset %s after peak %s", year, i, day(ev.OnsetDate), day(ev.PeakDate))
	}
	if ev.EndDate != nil && ev.EndDate.Before(ev.PeakDate) {
		p.errorf("%d event %d: end %s before peak %s", year, i, day(*ev.EndDate), day(ev.PeakDate))
	}
	if ev.Reliability < 0 || ev.Reliability > 1 {
		p.errorf("%d event %d: reliability %v outside [0, 1]", year, i, ev.Reliability)
	}
	if ev.Amplitude < 0 {
		p.errorf("%d event %d: negative amplitude %v", year, i, ev.Amplitude)
	}
	if ev.ID == "" {
		p.errorf("%d event %d: empty id", year, i)
	}
	if (historic >= 2) != (ev.AnomalyDays != nil) {
		p.errorf("%d event %d: anomaly days set=%t with %d historic peaks", year, i, ev.AnomalyDays != nil, historic)
	}
}

// ── Phase 4: risk scoring ──

func validateScoring(f fixture, s *domain.Scorer) *phase {
	p := &phase{name: "Risk scores bounded and labelled"}
	fmt.Println("Phase 4: Risk scoring")

	high := 0
	for i, w := range f.Weather {
		date := domain.CalendarDate(w.ObservedAt)
		r := s.Score(domain.RiskInput{
			Date:        date,
			Crop:        f.Crop,
			NDVI:        ndviOn(f.NDVI, date),
			Temperature: w.Temperature,
			Humidity:    w.Humidity,
		})
		checkRisk(p, fmt.Sprintf("weather[%d] %s", i, day(date)), r)
		if r.IsForecast {
			p.errorf("weather[%d]: observed day scored as forecast", i)
		}
		if r.Level == domain.RiskHigh || r.Level == domain.RiskVeryHigh {
			high++
		}
	}

	fmt.Printf("  %d days scored, %d high or very high\n", len(f.Weather), high)
	return p
}

func checkRisk(p *phase, label string, r domain.RiskResult) {
	if r.Score < 0 || r.Score > 1 || !finite(r.Score) {
		p.errorf("%s: score %v outside [0, 1]", label, r.Score)
	}
	if r.Level != domain.RiskLevel(r.Score) {
		p.errorf("%s: level %q does not match score %v", label, r.Level, r.Score)
	}
	if r.Confidence < 0.3-floatTolerance || r.Confidence > 0.95+floatTolerance {
		p.errorf("%s: confidence %v outside [0.3, 0.95]", label, r.Confidence)
	}
	for name, v := range map[string]float64{
		"ndvi":        r.Factors.NDVI,
		"temperature": r.Factors.Temperature,
		"humidity":    r.Factors.Humidity,
		"gdd":         r.Factors.Thermal,
		"seasonal":    r.Factors.Seasonal,
	} {
		if v < 0 || v > 1 {
			p.errorf("%s: %s factor %v outside [0, 1]", label, name, v)
		}
	}
	if r.Recommendation == "" {
		p.errorf("%s: empty recommendation", label)
	}
}

// ── Phase 5: forecast series ──

func validateForecastSeries(f fixture, s *domain.Scorer) *phase {
	p := &phase{name: "Forecast series flags and confidence"}
	fmt.Println("Phase 5: Forecast series")

	historical := make([]domain.DailyRecord, len(f.Weather))
	for i, w := range f.Weather {
		date := domain.CalendarDate(w.ObservedAt)
		historical[i] = domain.DailyRecord{
			Date:        date,
			NDVI:        ptr(ndviOn(f.NDVI, date)),
			Temperature: ptr(w.Temperature),
			Humidity:    ptr(w.Humidity),
		}
	}
	forecast := make([]domain.DailyRecord, len(f.Forecast))
	for i, d := range f.Forecast {
		forecast[i] = domain.DailyRecord{Date: d.Date, Temperature: ptr(d.TempAvg), Humidity: ptr(d.Humidity)}
	}

	results := s.ForecastSeries(historical, forecast, f.Crop)
	if len(results) != len(historical)+len(forecast) {
		p.errorf("series length %d, want %d", len(results), len(historical)+len(forecast))
		return p
	}
	for i, r := range results {
		label := fmt.Sprintf("series[%d] %s", i, day(r.Date))
		checkRisk(p, label, r)
		if wantForecast := i >= len(historical); r.IsForecast != wantForecast {
			p.errorf("%s: is_forecast %t, want %t", label, r.IsForecast, wantForecast)
		}
		if i > len(historical) && r.Confidence > results[i-1].Confidence+floatTolerance {
			p.errorf("%s: confidence %v rose from %v", label, r.Confidence, results[i-1].Confidence)
		}
	}

	sum := domain.SummarizeTimeline(results)
	if sum.HistoricalDays != len(historical) || sum.ForecastDays != len(forecast) || sum.TotalDays != len(results) {
		p.errorf("summary %+v does not match %d historical and %d forecast days", sum, len(historical), len(forecast))
	}

	fmt.Printf("  %d historical + %d forecast days, %d high risk\n", sum.HistoricalDays, sum.ForecastDays, sum.HighRiskDays)
	return p
}

// ndviOn returns the latest composite on or before date, or the first one.
func ndviOn(series []domain.Point, date time.Time) float64 {
	v := series[0].Value
	for _, pt := range series {
		if pt.Date.After(date) {
			break
		}
		v = pt.Value
	}
	return v
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func ptr(v float64) *float64 { return &v }

func day(t time.Time) string { return t.Format(domain.DateLayout) }
