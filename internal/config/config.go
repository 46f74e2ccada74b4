package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Weather modes accepted by WEATHER_MODE.
var weatherModes = map[string]bool{
	"fusion":      true,
	"auto":        true,
	"aemet":       true,
	"meteomatics": true,
	"simulator":   true,
}

// DefaultRegions are the Valencian locations scored by the risk map.
var DefaultRegions = []domain.Location{
	{Name: "valencia", Lat: 39.4699, Lon: -0.3763},
	{Name: "castellon", Lat: 39.9864, Lon: -0.0513},
	{Name: "alicante", Lat: 38.3452, Lon: -0.4810},
	{Name: "sagunto", Lat: 39.6775, Lon: -0.2664},
	{Name: "xativa", Lat: 38.9873, Lon: -0.5186},
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Analysis defaults.
	Region                   domain.Location
	Regions                  []domain.Location
	DefaultCrop              string
	SmoothingWindow          int
	SmoothingPolyOrder       int
	OnsetDerivativeThreshold float64

	// Weather providers.
	WeatherMode      string
	WeatherTimeout   time.Duration
	WeatherCacheSize int
	WeatherCacheTTL  time.Duration

	AEMETAPIKey       string
	AEMETEnabled      bool
	AEMETBaseURL      string
	AEMETStation      string
	AEMETMunicipality string

	MeteomaticsUsername string
	MeteomaticsPassword string
	MeteomaticsEnabled  bool
	MeteomaticsBaseURL  string

	SimulatorSeed uint64

	// Result publishing.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaResultsTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	weatherTimeout, err := parsePositiveDuration("WEATHER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("WEATHER_CACHE_TTL", "15m")
	if err != nil {
		return nil, err
	}

	lat, err := parseFloat("REGION_LAT", 39.4699)
	if err != nil {
		return nil, err
	}
	lon, err := parseFloat("REGION_LON", -0.3763)
	if err != nil {
		return nil, err
	}
	threshold, err := parseFloat("ONSET_DERIVATIVE_THRESHOLD", domain.DefaultDerivativeThreshold)
	if err != nil {
		return nil, err
	}
	window, err := parseInt("SMOOTHING_WINDOW", domain.DefaultSmoothingWindow)
	if err != nil {
		return nil, err
	}
	polyOrder, err := parseInt("SMOOTHING_POLY_ORDER", domain.DefaultPolyOrder)
	if err != nil {
		return nil, err
	}

	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("SIMULATOR_SEED", "42"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid SIMULATOR_SEED")
	}

	aemetKey := os.Getenv("AEMET_API_KEY")
	meteoUser := os.Getenv("METEOMATICS_USERNAME")
	meteoPass := os.Getenv("METEOMATICS_PASSWORD")

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Region: domain.Location{
			Name: sharedcfg.EnvOrDefault("REGION_NAME", "valencia"),
			Lat:  lat,
			Lon:  lon,
		},
		Regions:                  DefaultRegions,
		DefaultCrop:              sharedcfg.EnvOrDefault("DEFAULT_CROP", domain.DefaultCropKey),
		SmoothingWindow:          window,
		SmoothingPolyOrder:       polyOrder,
		OnsetDerivativeThreshold: threshold,

		WeatherMode:      sharedcfg.EnvOrDefault("WEATHER_MODE", "fusion"),
		WeatherTimeout:   weatherTimeout,
		WeatherCacheSize: parseCacheSize(),
		WeatherCacheTTL:  cacheTTL,

		AEMETAPIKey:       aemetKey,
		AEMETEnabled:      parseEnabled("AEMET_ENABLED", aemetKey != ""),
		AEMETBaseURL:      sharedcfg.EnvOrDefault("AEMET_BASE_URL", "https://opendata.aemet.es/opendata/api"),
		AEMETStation:      sharedcfg.EnvOrDefault("AEMET_STATION", "8416A"),
		AEMETMunicipality: sharedcfg.EnvOrDefault("AEMET_MUNICIPALITY", "46250"),

		MeteomaticsUsername: meteoUser,
		MeteomaticsPassword: meteoPass,
		MeteomaticsEnabled:  parseEnabled("METEOMATICS_ENABLED", meteoUser != "" && meteoPass != ""),
		MeteomaticsBaseURL:  sharedcfg.EnvOrDefault("METEOMATICS_BASE_URL", "https://api.meteomatics.com"),

		SimulatorSeed: seed,

		KafkaEnabled:      parseEnabled("KAFKA_ENABLED", false),
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaResultsTopic: sharedcfg.EnvOrDefault("KAFKA_RESULTS_TOPIC", "bloom-analysis-results"),
	}

	if !weatherModes[cfg.WeatherMode] {
		return nil, fmt.Errorf("invalid WEATHER_MODE %q", cfg.WeatherMode)
	}
	if cfg.Region.Lat < -90 || cfg.Region.Lat > 90 {
		return nil, errors.New("invalid REGION_LAT: must be -90 to 90")
	}
	if cfg.Region.Lon < -180 || cfg.Region.Lon > 180 {
		return nil, errors.New("invalid REGION_LON: must be -180 to 180")
	}
	if cfg.SmoothingWindow < 3 || cfg.SmoothingWindow%2 == 0 {
		return nil, errors.New("invalid SMOOTHING_WINDOW: must be odd and at least 3")
	}
	if cfg.SmoothingPolyOrder < 0 {
		return nil, errors.New("invalid SMOOTHING_POLY_ORDER: must not be negative")
	}
	if _, ok := domain.DefaultCropTable().Lookup(cfg.DefaultCrop); !ok {
		return nil, fmt.Errorf("invalid DEFAULT_CROP %q", cfg.DefaultCrop)
	}
	if cfg.AEMETEnabled && cfg.AEMETAPIKey == "" {
		return nil, errors.New("AEMET_ENABLED is true but AEMET_API_KEY is not set")
	}
	if cfg.MeteomaticsEnabled && (cfg.MeteomaticsUsername == "" || cfg.MeteomaticsPassword == "") {
		return nil, errors.New("METEOMATICS_ENABLED is true but METEOMATICS_USERNAME or METEOMATICS_PASSWORD is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaEnabled && cfg.KafkaResultsTopic == "" {
		return nil, errors.New("KAFKA_RESULTS_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseEnabled(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true"
	}
	return fallback
}

func parseCacheSize() int {
	if s := os.Getenv("WEATHER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 256
}
