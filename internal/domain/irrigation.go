package domain

import (
	"fmt"
	"time"
)

// Irrigation actions for a scheduled day.
const (
	ActionSkip     = "skip"
	ActionIrrigate = "irrigate"
	ActionPrepare  = "prepare"
	ActionMonitor  = "monitor"
)

const (
	rainSkipProbability = 70.0
	assumedRainMM       = 5.0
	highDeficitMM       = 20.0
	moderateDeficitMM   = 10.0
)

// CropWater describes a crop's water demand relative to reference ET.
type CropWater struct {
	Coefficient    float64  `json:"coefficient"`
	CriticalStages []string `json:"critical_stages"`
	Flooded        bool     `json:"flood_irrigation"`
}

var cropWater = map[string]CropWater{
	"arroz":   {Coefficient: 1.2, CriticalStages: []string{"tillering", "flowering"}, Flooded: true},
	"trigo":   {Coefficient: 1.15, CriticalStages: []string{"grain_filling"}},
	"maiz":    {Coefficient: 1.2, CriticalStages: []string{"silking", "grain_filling"}},
	"tomate":  {Coefficient: 1.1, CriticalStages: []string{"flowering", "fruit_development"}},
	"naranja": {Coefficient: 0.7, CriticalStages: []string{"flowering", "fruit_set"}},
	"oliva":   {Coefficient: 0.6, CriticalStages: []string{"flowering"}},
}

// CropWaterFor returns the water profile of crop, or rice's.
func CropWaterFor(crop string) CropWater {
	if w, ok := cropWater[crop]; ok {
		return w
	}
	return cropWater[DefaultCropKey]
}

// IrrigationDay is one entry of an irrigation schedule.
type IrrigationDay struct {
	Date               time.Time `json:"date"`
	Action             string    `json:"action"`
	AmountMM           float64   `json:"recommended_amount_mm"`
	ET0                float64   `json:"et0_mm"`
	RainProbability    float64   `json:"rain_probability"`
	AverageTemperature float64   `json:"temperature"`
}

// IrrigationPlan is the water balance and schedule for a crop.
type IrrigationPlan struct {
	Crop            string          `json:"crop"`
	Current         WeatherReading  `json:"current_conditions"`
	ForecastDays    int             `json:"forecast_days"`
	AvgTemperature  float64         `json:"avg_temperature"`
	AvgRainChance   float64         `json:"avg_rain_probability"`
	WaterDeficitMM  float64         `json:"water_deficit_mm"`
	DailyNeedMM     float64         `json:"daily_water_need_mm"`
	WeeklyNeedMM    float64         `json:"weekly_water_need_mm"`
	Water           CropWater       `json:"crop_requirements"`
	Recommendations []string        `json:"recommendations"`
	Schedule        []IrrigationDay `json:"schedule"`
}

// PlanIrrigation derives the crop water balance over the forecast window and
// a day-by-day schedule. Forecast rain is counted as 5 mm scaled by its
// probability.
func PlanIrrigation(current WeatherReading, forecast []ForecastDay, crop string) IrrigationPlan {
	water := CropWaterFor(crop)
	cropET := current.Evapotranspiration * water.Coefficient

	var rainMM, forecastET, tempSum, rainChanceSum float64
	var stressDays, rainDays int
	schedule := make([]IrrigationDay, 0, len(forecast))
	for _, day := range forecast {
		rainMM += day.PrecipitationProbability / 100 * assumedRainMM
		forecastET += day.ET0 * water.Coefficient
		tempSum += day.TempAvg
		rainChanceSum += day.PrecipitationProbability
		if day.Irrigation.Priority() >= IrrigationHigh.Priority() {
			stressDays++
		}
		if day.PrecipitationProbability > rainSkipProbability {
			rainDays++
		}
		schedule = append(schedule, scheduleDay(day, water.Coefficient))
	}
	deficit := forecastET - rainMM

	plan := IrrigationPlan{
		Crop:           crop,
		Current:        current,
		ForecastDays:   len(forecast),
		WaterDeficitMM: deficit,
		DailyNeedMM:    cropET,
		WeeklyNeedMM:   cropET * 7,
		Water:          water,
		Schedule:       schedule,
	}
	if len(forecast) > 0 {
		plan.AvgTemperature = tempSum / float64(len(forecast))
		plan.AvgRainChance = rainChanceSum / float64(len(forecast))
	}

	if water.Flooded {
		plan.Recommendations = append(plan.Recommendations, "Keep fields flooded at a 5-10 cm water level")
	}
	switch {
	case deficit > highDeficitMM:
		plan.Recommendations = append(plan.Recommendations, fmt.Sprintf("High water deficit predicted (%.1f mm): increase irrigation frequency", deficit))
	case deficit > moderateDeficitMM:
		plan.Recommendations = append(plan.Recommendations, fmt.Sprintf("Moderate water deficit (%.1f mm): monitor closely", deficit))
	default:
		plan.Recommendations = append(plan.Recommendations, fmt.Sprintf("Water balance adequate (%.1f mm deficit)", deficit))
	}
	if stressDays > 0 {
		plan.Recommendations = append(plan.Recommendations, fmt.Sprintf("%d high-stress days ahead: pre-irrigate now", stressDays))
	}
	if rainDays > 0 {
		plan.Recommendations = append(plan.Recommendations, fmt.Sprintf("Rain expected on %d days: delay irrigation if possible", rainDays))
	}
	return plan
}

func scheduleDay(day ForecastDay, kc float64) IrrigationDay {
	entry := IrrigationDay{
		Date:               day.Date,
		ET0:                day.ET0,
		RainProbability:    day.PrecipitationProbability,
		AverageTemperature: day.TempAvg,
	}
	switch {
	case day.PrecipitationProbability > rainSkipProbability:
		entry.Action = ActionSkip
	case day.Irrigation.Priority() >= IrrigationHigh.Priority():
		entry.Action = ActionIrrigate
		entry.AmountMM = day.ET0 * kc * 1.2
	case day.Irrigation == IrrigationMedium:
		entry.Action = ActionPrepare
		entry.AmountMM = day.ET0 * kc
	default:
		entry.Action = ActionMonitor
		entry.AmountMM = day.ET0 * kc * 0.8
	}
	return entry
}
