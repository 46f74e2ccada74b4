package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseReadings(t *testing.T) {
	localAt := time.Date(2025, time.June, 20, 9, 0, 0, 0, time.UTC)
	globalAt := localAt.Add(30 * time.Minute)
	local := WeatherReading{
		Provider: "aemet", ObservedAt: localAt, Temperature: 20, Humidity: 70, Precipitation: 1.2,
		WindSpeed: 1, WindDirection: 90, Pressure: 1010, Evapotranspiration: 3, Kind: KindObserved,
		SoilTemperature: ptr(16),
	}
	global := WeatherReading{
		Provider: "meteomatics", ObservedAt: globalAt, Temperature: 25, Humidity: 50, Precipitation: 0,
		WindSpeed: 4, WindDirection: 180, Pressure: 1016, Evapotranspiration: 5, Kind: KindObserved,
	}

	got := FuseReadings(local, global)

	assert.Equal(t, "fusion", got.Provider)
	assert.Equal(t, globalAt, got.ObservedAt)
	assert.InDelta(t, 23.0, got.Temperature, 1e-9)
	assert.InDelta(t, 70.0, got.Humidity, 1e-9)
	assert.InDelta(t, 1.2, got.Precipitation, 1e-9)
	assert.InDelta(t, 4.0, got.WindSpeed, 1e-9)
	assert.InDelta(t, 180.0, got.WindDirection, 1e-9)
	assert.InDelta(t, 1013.0, got.Pressure, 1e-9)
	assert.InDelta(t, 5.0, got.Evapotranspiration, 1e-9)
	assert.Equal(t, KindObserved, got.Kind)
	assert.Equal(t, []string{"aemet", "meteomatics"}, got.Sources)

	require.NotNil(t, got.SoilTemperature)
	assert.InDelta(t, 16.0, *got.SoilTemperature, 1e-9)
	require.NotNil(t, got.SoilMoisture)
	assert.InDelta(t, defaultSoilMoisture, *got.SoilMoisture, 1e-9)
}

func TestFuseReadings_SoilPrecedence(t *testing.T) {
	local := WeatherReading{SoilTemperature: ptr(16), SoilMoisture: ptr(10)}
	global := WeatherReading{SoilTemperature: ptr(21), SoilMoisture: ptr(35)}

	got := FuseReadings(local, global)
	assert.InDelta(t, 21.0, *got.SoilTemperature, 1e-9)
	assert.InDelta(t, 35.0, *got.SoilMoisture, 1e-9)

	none := FuseReadings(WeatherReading{}, WeatherReading{})
	assert.InDelta(t, defaultSoilTemperature, *none.SoilTemperature, 1e-9)
	assert.InDelta(t, defaultSoilMoisture, *none.SoilMoisture, 1e-9)
}

func TestFuseReadings_EstimatedSourceTaintsKind(t *testing.T) {
	got := FuseReadings(WeatherReading{Kind: KindObserved}, WeatherReading{Kind: KindEstimated})
	assert.Equal(t, KindEstimated, got.Kind)
}

func TestFuseForecasts(t *testing.T) {
	day := time.Date(2025, time.June, 21, 0, 0, 0, 0, time.UTC)
	local := []ForecastDay{
		{Date: day, TempMax: 30, TempMin: 20, TempAvg: 25, Humidity: 60, PrecipitationProbability: 40, PrecipitationMM: 3, WindSpeed: 1, ET0: 4, Irrigation: IrrigationLow, Kind: KindObserved},
		{Date: day.AddDate(0, 0, 1), TempAvg: 26, Irrigation: IrrigationNone, Kind: KindObserved},
		{Date: day.AddDate(0, 0, 2), TempAvg: 27, Kind: KindObserved},
	}
	global := []ForecastDay{
		{Date: day, TempMax: 35, TempMin: 15, TempAvg: 30, Humidity: 40, PrecipitationProbability: 10, PrecipitationMM: 1, WindSpeed: 5, ET0: 6, Irrigation: IrrigationHigh, Kind: KindObserved},
		{Date: day.AddDate(0, 0, 1), TempAvg: 26, Irrigation: IrrigationLow, Kind: KindEstimated},
	}

	got := FuseForecasts(local, global, 7)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, day, first.Date)
	assert.InDelta(t, 33.0, first.TempMax, 1e-9)
	assert.InDelta(t, 17.0, first.TempMin, 1e-9)
	assert.InDelta(t, 28.0, first.TempAvg, 1e-9)
	assert.InDelta(t, 50.0, first.Humidity, 1e-9)
	assert.InDelta(t, 40.0, first.PrecipitationProbability, 1e-9)
	assert.InDelta(t, 1.0, first.PrecipitationMM, 1e-9)
	assert.InDelta(t, 5.0, first.WindSpeed, 1e-9)
	assert.InDelta(t, 6.0, first.ET0, 1e-9)
	assert.Equal(t, IrrigationHigh, first.Irrigation)
	assert.Equal(t, "fusion", first.Provider)
	assert.Equal(t, KindObserved, first.Kind)

	assert.Equal(t, IrrigationLow, got[1].Irrigation)
	assert.Equal(t, KindEstimated, got[1].Kind)

	assert.Len(t, FuseForecasts(local, global, 1), 1)
	assert.Empty(t, FuseForecasts(local, nil, 7))
	assert.Empty(t, FuseForecasts(local, global, -1))
}

func TestSeasonalFallback(t *testing.T) {
	tests := []struct {
		month                  time.Month
		temp, humidity, precip float64
	}{
		{time.July, 28, 55, 0.1},
		{time.January, 15, 75, 2.0},
		{time.December, 15, 75, 2.0},
		{time.April, 21, 65, 0.8},
		{time.October, 21, 65, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			now := time.Date(2025, tt.month, 10, 12, 0, 0, 0, time.UTC)
			got := SeasonalFallback(now)
			assert.Equal(t, "seasonal_fallback", got.Provider)
			assert.Equal(t, now, got.ObservedAt)
			assert.InDelta(t, tt.temp, got.Temperature, 1e-9)
			assert.InDelta(t, tt.humidity, got.Humidity, 1e-9)
			assert.InDelta(t, tt.precip, got.Precipitation, 1e-9)
			assert.InDelta(t, 1013.2, got.Pressure, 1e-9)
			assert.InDelta(t, 2.0, got.WindSpeed, 1e-9)
			assert.Equal(t, KindEstimated, got.Kind)
			assert.InDelta(t, ReferenceET(tt.temp, tt.humidity, 2), got.Evapotranspiration, 1e-9)
		})
	}
}

func TestSeasonalForecast(t *testing.T) {
	start := time.Date(2025, time.June, 28, 15, 4, 0, 0, time.UTC)
	got := SeasonalForecast(start, 5)
	require.Len(t, got, 5)

	for i, d := range got {
		assert.Equal(t, time.Date(2025, time.June, 28, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i), d.Date)
		assert.InDelta(t, d.TempAvg+5, d.TempMax, 1e-9)
		assert.InDelta(t, d.TempAvg-5, d.TempMin, 1e-9)
		assert.InDelta(t, d.PrecipitationMM*25, d.PrecipitationProbability, 1e-9)
		assert.Equal(t, KindEstimated, d.Kind)
	}
	assert.InDelta(t, 28.0, got[0].TempAvg, 1e-9)
	assert.Equal(t, IrrigationLow, got[0].Irrigation)
	// The forecast crosses into July and keeps summer values.
	assert.Equal(t, time.July, got[4].Date.Month())
	assert.InDelta(t, 28.0, got[4].TempAvg, 1e-9)

	assert.Empty(t, SeasonalForecast(start, 0))
}

func TestCompareReadings(t *testing.T) {
	tests := []struct {
		local, global float64
		want          string
	}{
		{20, 21.5, ConsistencyHigh},
		{20, 18, ConsistencyMedium},
		{20, 24.9, ConsistencyMedium},
		{20, 25, ConsistencyLow},
		{30, 10, ConsistencyLow},
	}
	for _, tt := range tests {
		got := CompareReadings(WeatherReading{Temperature: tt.local}, WeatherReading{Temperature: tt.global})
		assert.Equal(t, tt.want, got.Consistency, "%v vs %v", tt.local, tt.global)
		assert.GreaterOrEqual(t, got.TemperatureDifference, 0.0)
	}
}

func TestParseIrrigationNeed(t *testing.T) {
	tests := []struct {
		in   string
		want IrrigationNeed
	}{
		{"CRITICAL", IrrigationCritical},
		{"HIGH - Immediate irrigation needed", IrrigationHigh},
		{"high", IrrigationHigh},
		{"MODERATE - Plan irrigation", IrrigationMedium},
		{"MEDIUM", IrrigationMedium},
		{" LOW ", IrrigationLow},
		{"MINIMAL - No irrigation needed", IrrigationNone},
		{"", IrrigationNone},
		{"unknown", IrrigationNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseIrrigationNeed(tt.in), tt.in)
	}
}

func TestIrrigationNeedPriority(t *testing.T) {
	levels := []IrrigationNeed{IrrigationNone, IrrigationLow, IrrigationMedium, IrrigationHigh, IrrigationCritical}
	for i := 1; i < len(levels); i++ {
		assert.Greater(t, levels[i].Priority(), levels[i-1].Priority())
	}
	assert.Zero(t, IrrigationNeed("bogus").Priority())

	assert.Equal(t, IrrigationHigh, MoreUrgent(IrrigationLow, IrrigationHigh))
	assert.Equal(t, IrrigationCritical, MoreUrgent(IrrigationCritical, IrrigationMedium))
	assert.Equal(t, IrrigationLow, MoreUrgent(IrrigationLow, IrrigationLow))
}

func TestReferenceET(t *testing.T) {
	hot := ReferenceET(35, 20, 5)
	mild := ReferenceET(20, 60, 2)
	cold := ReferenceET(-5, 90, 0)

	assert.Greater(t, hot, mild)
	assert.Greater(t, mild, cold)
	assert.GreaterOrEqual(t, cold, 0.0)
	assert.Greater(t, ReferenceET(25, 30, 2), ReferenceET(25, 90, 2))
}

func TestAssessIrrigationNeed(t *testing.T) {
	tests := []struct {
		name                         string
		temp, humidity, wind, precip float64
		want                         IrrigationNeed
	}{
		{"hot and dry", 38, 20, 5, 0, IrrigationHigh},
		{"heat without rain", 32, 50, 2, 10, IrrigationMedium},
		{"mild and dry", 20, 60, 2, 10, IrrigationLow},
		{"cool and rainy", 15, 90, 1, 80, IrrigationNone},
		{"some rain chance", 20, 60, 2, 40, IrrigationLow},
		{"freezing", -5, 90, 0, 0, IrrigationLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssessIrrigationNeed(tt.temp, tt.humidity, tt.wind, tt.precip))
		})
	}
}
