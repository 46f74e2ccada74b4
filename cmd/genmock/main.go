// Command genmock writes a reproducible fixture from the simulator: several
// seasons of NDVI composites, recent daily weather and a short forecast for
// one crop and location. The clock is fixed so repeated runs with the same
// seed produce identical files.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/valencia_arroz.json \
//	  -crop arroz -years 3 -seed 42
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/adapter/simulator"
	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"gonum.org/v1/gonum/floats"
)

var fixedNow = time.Date(2025, time.December, 15, 12, 0, 0, 0, time.UTC)

const weatherHistoryDays = 60

// fixture is the file layout shared with cmd/validate.
type fixture struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Seed        uint64                  `json:"seed"`
	Crop        string                  `json:"crop"`
	Location    domain.Location         `json:"location"`
	NDVI        []domain.Point          `json:"ndvi"`
	Weather     []domain.WeatherReading `json:"weather"`
	Forecast    []domain.ForecastDay    `json:"forecast"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the JSON fixture")
	seed := flag.Uint64("seed", 42, "simulator seed")
	crop := flag.String("crop", domain.DefaultCropKey, "crop key")
	years := flag.Int("years", 3, "number of seasons of NDVI to generate")
	days := flag.Int("forecast-days", 7, "forecast days to include")
	lat := flag.Float64("lat", 39.4699, "latitude")
	lon := flag.Float64("lon", -0.3763, "longitude")
	name := flag.String("region", "valencia", "region name")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *years < 1 || *years > 10 {
		return fmt.Errorf("-years must be between 1 and 10, got %d", *years)
	}
	if *days < 1 || *days > 14 {
		return fmt.Errorf("-forecast-days must be between 1 and 14, got %d", *days)
	}

	ctx := context.Background()
	clk := clockwork.NewFakeClockAt(fixedNow)
	loc := domain.Location{Name: *name, Lat: *lat, Lon: *lon}
	sim := simulator.New(*seed, loc, clk)
	today := domain.Today(clk)

	from := time.Date(today.Year()-*years+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	ndvi, err := sim.NDVISeries(ctx, loc, *crop, from, today)
	if err != nil {
		return fmt.Errorf("generate ndvi: %w", err)
	}
	weather, err := sim.DailyWeather(ctx, loc, today.AddDate(0, 0, -weatherHistoryDays), today)
	if err != nil {
		return fmt.Errorf("generate weather: %w", err)
	}
	forecast, err := sim.Forecast(ctx, loc, *days)
	if err != nil {
		return fmt.Errorf("generate forecast: %w", err)
	}

	f := fixture{
		GeneratedAt: clk.Now(),
		Seed:        *seed,
		Crop:        *crop,
		Location:    loc,
		NDVI:        ndvi,
		Weather:     weather,
		Forecast:    forecast,
	}
	if err := writeJSON(*out, f); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	printStats(f)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644) //nolint:gosec // fixture output is not sensitive
}

func printStats(f fixture) {
	fmt.Println()
	fmt.Printf("%s at %s (%.4f, %.4f), seed %d\n", f.Crop, f.Location.Name, f.Location.Lat, f.Location.Lon, f.Seed)

	first, last := f.NDVI[0].Date.Year(), f.NDVI[len(f.NDVI)-1].Date.Year()
	for y := first; y <= last; y++ {
		pts := domain.PointsForYear(f.NDVI, y)
		if len(pts) == 0 {
			continue
		}
		values := domain.SeriesValues(pts)
		peak := pts[floats.MaxIdx(values)]
		fmt.Printf("  %d: %2d composites, peak %.3f on %s\n", y, len(pts), peak.Value, peak.Date.Format(domain.DateLayout))
	}

	temps := make([]float64, len(f.Weather))
	for i, w := range f.Weather {
		temps[i] = w.Temperature
	}
	fmt.Printf("  weather: %d days, %.1f to %.1f °C\n", len(f.Weather), floats.Min(temps), floats.Max(temps))
	fmt.Printf("  forecast: %d days from %s\n", len(f.Forecast), f.Forecast[0].Date.Format(domain.DateLayout))
}
