package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

// Factor weights. They sum to 1 so the blended score stays in [0, 1].
const (
	weightNDVI        = 0.40
	weightTemperature = 0.25
	weightHumidity    = 0.15
	weightThermal     = 0.10
	weightSeasonal    = 0.10
)

const (
	maxConfidence        = 0.95
	minConfidence        = 0.3
	confidenceDecayDays  = 30.0
	confidenceDecayRange = 0.5
)

// Risk level labels, from highest to lowest band.
const (
	RiskVeryHigh = "very_high"
	RiskHigh     = "high"
	RiskMedium   = "medium"
	RiskLow      = "low"
	RiskVeryLow  = "very_low"
)

// RiskInput is one day of environmental readings to score.
type RiskInput struct {
	Date        time.Time
	Crop        string
	NDVI        float64
	Temperature float64
	Humidity    float64

	// ThermalUnits are accumulated growing degree days. Nil means estimate
	// them from the date.
	ThermalUnits *float64
	IsForecast   bool
}

// RiskFactors are the five sub-scores behind a risk score, each in [0, 1].
type RiskFactors struct {
	NDVI        float64 `json:"ndvi"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Thermal     float64 `json:"gdd"`
	Seasonal    float64 `json:"seasonal"`
}

// RiskResult is the flowering risk for one crop on one date.
type RiskResult struct {
	Date           time.Time   `json:"date"`
	Crop           string      `json:"crop"`
	Score          float64     `json:"risk_score"`
	Level          string      `json:"risk_level"`
	Confidence     float64     `json:"confidence"`
	Factors        RiskFactors `json:"factors"`
	Recommendation string      `json:"recommendation"`
	IsForecast     bool        `json:"is_forecast"`
}

// Scorer computes flowering risk scores from a crop table. It holds no
// mutable state and is safe for concurrent use.
type Scorer struct {
	crops CropTable
	clock clockwork.Clock
}

// NewScorer creates a scorer. The clock decides "today" for forecast
// confidence; nil uses real time.
func NewScorer(crops CropTable, clk clockwork.Clock) *Scorer {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Scorer{crops: crops, clock: clk}
}

// Crops returns the crop table the scorer resolves profiles from.
func (s *Scorer) Crops() CropTable { return s.crops }

// Score blends the five weighted factors into a risk score. Unknown crops
// are scored with the default profile and reported under its key.
func (s *Scorer) Score(in RiskInput) RiskResult {
	profile, _ := s.crops.Lookup(in.Crop)

	thermal := EstimateThermalUnits(in.Date)
	if in.ThermalUnits != nil {
		thermal = *in.ThermalUnits
	}

	factors := RiskFactors{
		NDVI:        ndviFactor(in.NDVI, profile.NDVIThreshold),
		Temperature: temperatureFactor(in.Temperature, profile.Temperature),
		Humidity:    humidityFactor(in.Humidity, profile.Humidity),
		Thermal:     thermalFactor(thermal, profile.ThermalThreshold),
		Seasonal:    seasonalFactor(in.Date.Month(), profile),
	}

	score := clamp(factors.NDVI*weightNDVI+
		factors.Temperature*weightTemperature+
		factors.Humidity*weightHumidity+
		factors.Thermal*weightThermal+
		factors.Seasonal*weightSeasonal, 0, 1)

	return RiskResult{
		Date:           in.Date,
		Crop:           profile.Key,
		Score:          score,
		Level:          RiskLevel(score),
		Confidence:     s.confidence(in.Date, in.IsForecast),
		Factors:        factors,
		Recommendation: recommendation(score, profile.Key),
		IsForecast:     in.IsForecast,
	}
}

// confidence is 0.95 for observed days and decays by 0.5 per 30 days of
// forecast horizon, floored at 0.3.
func (s *Scorer) confidence(date time.Time, isForecast bool) float64 {
	if !isForecast {
		return maxConfidence
	}
	days := math.Abs(float64(DaysBetween(Today(s.clock), date)))
	return math.Max(minConfidence, maxConfidence-days/confidenceDecayDays*confidenceDecayRange)
}

func ndviFactor(ndvi, threshold float64) float64 {
	if ndvi >= threshold {
		return clamp((ndvi-threshold)/(1-threshold)+0.7, 0, 1)
	}
	return clamp(ndvi/threshold*0.6, 0, 1)
}

func temperatureFactor(temp float64, optimal Range) float64 {
	switch {
	case optimal.Contains(temp):
		return 0.9
	case temp < optimal.Min:
		return clamp(temp/optimal.Min*0.4, 0.1, 1)
	default:
		return clamp(0.8-(temp-optimal.Max)/20*0.6, 0.1, 1)
	}
}

func humidityFactor(humidity float64, optimal Range) float64 {
	switch {
	case optimal.Contains(humidity):
		return 0.8
	case humidity < optimal.Min:
		return clamp(humidity/optimal.Min*0.6, 0.2, 1)
	default:
		return clamp(0.7-(humidity-optimal.Max)/30*0.4, 0.3, 1)
	}
}

func thermalFactor(accumulated, threshold float64) float64 {
	ratio := accumulated / threshold
	if ratio >= 0.9 {
		return math.Min(1, ratio)
	}
	return clamp(ratio*0.7, 0.1, 1)
}

// seasonalFactor is 0.9 inside the flowering months and decays with the
// circular month distance to the nearest flowering month.
func seasonalFactor(month time.Month, profile CropProfile) float64 {
	if profile.floweringIn(month) {
		return 0.9
	}
	nearest := 12
	for _, fm := range profile.FloweringMonths {
		d := int(month) - int(fm)
		if d < 0 {
			d = -d
		}
		nearest = min(nearest, d, 12-d)
	}
	return math.Max(0.1, 0.8-float64(nearest)/6*0.6)
}

func recommendation(score float64, crop string) string {
	switch {
	case score >= 0.8:
		return fmt.Sprintf("High risk: %s is in its critical flowering window. Monitor daily and prepare protection.", crop)
	case score >= 0.6:
		return fmt.Sprintf("Medium risk: %s is approaching flowering. Verify field conditions in the coming days.", crop)
	case score >= 0.4:
		return fmt.Sprintf("Low risk: %s is in pre-flowering. Conditions favor normal development.", crop)
	default:
		return fmt.Sprintf("Minimal risk: %s is outside its flowering period. Keep routine care.", crop)
	}
}

// RiskLevel maps a score to one of five labelled bands.
func RiskLevel(score float64) string {
	switch {
	case score >= 0.8:
		return RiskVeryHigh
	case score >= 0.6:
		return RiskHigh
	case score >= 0.4:
		return RiskMedium
	case score >= 0.2:
		return RiskLow
	default:
		return RiskVeryLow
	}
}
