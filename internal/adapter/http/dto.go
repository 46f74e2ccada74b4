package http

import (
	"math"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/pipeline"
)

// Response shapes. Dates are rendered as YYYY-MM-DD and scores rounded to
// three decimals; the domain types keep full precision.

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}

type riskFactorsDTO struct {
	NDVI        float64 `json:"ndvi"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Thermal     float64 `json:"gdd"`
	Seasonal    float64 `json:"seasonal"`
}

type riskResultDTO struct {
	Date           string         `json:"date"`
	Crop           string         `json:"crop"`
	Score          float64        `json:"risk_score"`
	Level          string         `json:"risk_level"`
	Confidence     float64        `json:"confidence"`
	Factors        riskFactorsDTO `json:"factors"`
	Recommendation string         `json:"recommendation"`
	IsForecast     bool           `json:"is_forecast"`
}

func toRiskResult(r domain.RiskResult) riskResultDTO {
	return riskResultDTO{
		Date:       formatDate(r.Date),
		Crop:       r.Crop,
		Score:      round3(r.Score),
		Level:      r.Level,
		Confidence: round3(r.Confidence),
		Factors: riskFactorsDTO{
			NDVI:        round3(r.Factors.NDVI),
			Temperature: round3(r.Factors.Temperature),
			Humidity:    round3(r.Factors.Humidity),
			Thermal:     round3(r.Factors.Thermal),
			Seasonal:    round3(r.Factors.Seasonal),
		},
		Recommendation: r.Recommendation,
		IsForecast:     r.IsForecast,
	}
}

type riskInputsDTO struct {
	NDVI            float64         `json:"ndvi"`
	Temperature     float64         `json:"temperature"`
	Humidity        float64         `json:"humidity"`
	WeatherProvider string          `json:"weather_provider"`
	WeatherKind     domain.DataKind `json:"weather_kind"`
}

func toRiskInputs(in pipeline.RiskInputs) riskInputsDTO {
	return riskInputsDTO{
		NDVI:            round3(in.NDVI),
		Temperature:     round1(in.Temperature),
		Humidity:        round1(in.Humidity),
		WeatherProvider: in.WeatherProvider,
		WeatherKind:     in.WeatherKind,
	}
}

type riskAssessmentDTO struct {
	Location domain.Location `json:"location"`
	Risk     riskResultDTO   `json:"risk"`
	Inputs   riskInputsDTO   `json:"input_data"`
}

func toRiskAssessment(a pipeline.RiskAssessment) riskAssessmentDTO {
	return riskAssessmentDTO{
		Location: a.Location,
		Risk:     toRiskResult(a.Risk),
		Inputs:   toRiskInputs(a.Inputs),
	}
}

type timelineDTO struct {
	Crop     string                 `json:"crop"`
	Location domain.Location        `json:"location"`
	Start    string                 `json:"start_date"`
	End      string                 `json:"end_date"`
	Today    string                 `json:"today"`
	Timeline []riskResultDTO        `json:"timeline"`
	Summary  domain.TimelineSummary `json:"summary"`
}

func toTimeline(t pipeline.RiskTimeline) timelineDTO {
	out := timelineDTO{
		Crop:     t.Crop,
		Location: t.Location,
		Start:    formatDate(t.Start),
		End:      formatDate(t.End),
		Today:    formatDate(t.Today),
		Timeline: make([]riskResultDTO, len(t.Results)),
		Summary:  t.Summary,
	}
	for i, r := range t.Results {
		out.Timeline[i] = toRiskResult(r)
	}
	return out
}

type regionRiskDTO struct {
	Region domain.Location `json:"region"`
	Risk   *riskResultDTO  `json:"risk,omitempty"`
	Inputs *riskInputsDTO  `json:"input_data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type riskMapDTO struct {
	Crop    string          `json:"crop"`
	Date    string          `json:"date"`
	Regions []regionRiskDTO `json:"regions"`
}

func toRiskMap(m pipeline.RiskMap) riskMapDTO {
	out := riskMapDTO{Crop: m.Crop, Date: formatDate(m.Date), Regions: make([]regionRiskDTO, len(m.Regions))}
	for i, r := range m.Regions {
		dto := regionRiskDTO{Region: r.Region, Error: r.Err}
		if r.Risk != nil {
			risk := toRiskResult(*r.Risk)
			dto.Risk = &risk
		}
		if r.Inputs != nil {
			in := toRiskInputs(*r.Inputs)
			dto.Inputs = &in
		}
		out.Regions[i] = dto
	}
	return out
}

type pointDTO struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type temperatureDTO struct {
	PeriodStart string          `json:"period_start"`
	PeriodEnd   string          `json:"period_end"`
	Mean        float64         `json:"avg_temp"`
	Max         float64         `json:"max_temp"`
	Min         float64         `json:"min_temp"`
	Source      string          `json:"source"`
	Kind        domain.DataKind `json:"kind"`
}

type enrichmentDTO struct {
	Available     bool                    `json:"available"`
	Temperature   *temperatureDTO         `json:"temperature,omitempty"`
	Yield         *domain.YieldPrediction `json:"yield_prediction,omitempty"`
	WeatherImpact string                  `json:"weather_impact"`
	Note          string                  `json:"note,omitempty"`
}

type bloomEventDTO struct {
	ID              string         `json:"id"`
	PeakDate        string         `json:"peak_date"`
	OnsetDate       string         `json:"onset_date"`
	EndDate         string         `json:"end_date,omitempty"`
	DurationDays    *int           `json:"duration_days,omitempty"`
	Amplitude       float64        `json:"amplitude"`
	Reliability     float64        `json:"reliability"`
	AnomalyDays     *float64       `json:"anomaly_days,omitempty"`
	PeakValue       float64        `json:"peak_value"`
	Baseline        float64        `json:"baseline"`
	SupportingPeaks int            `json:"supporting_peaks"`
	Enrichment      *enrichmentDTO `json:"enrichment,omitempty"`
}

func toBloomEvent(ev domain.BloomEvent) bloomEventDTO {
	out := bloomEventDTO{
		ID:              ev.ID,
		PeakDate:        formatDate(ev.PeakDate),
		OnsetDate:       formatDate(ev.OnsetDate),
		DurationDays:    ev.DurationDays,
		Amplitude:       round3(ev.Amplitude),
		Reliability:     round3(ev.Reliability),
		PeakValue:       round3(ev.PeakValue),
		Baseline:        round3(ev.Baseline),
		SupportingPeaks: ev.SupportingPeaks,
	}
	if ev.EndDate != nil {
		out.EndDate = formatDate(*ev.EndDate)
	}
	if ev.AnomalyDays != nil {
		d := round1(*ev.AnomalyDays)
		out.AnomalyDays = &d
	}
	if e := ev.Enrichment; e != nil {
		enr := enrichmentDTO{Available: e.Available, Yield: e.Yield, WeatherImpact: e.WeatherImpact, Note: e.Note}
		if t := e.Temperature; t != nil {
			enr.Temperature = &temperatureDTO{
				PeriodStart: formatDate(t.PeriodStart),
				PeriodEnd:   formatDate(t.PeriodEnd),
				Mean:        round1(t.Mean),
				Max:         round1(t.Max),
				Min:         round1(t.Min),
				Source:      t.Source,
				Kind:        t.Kind,
			}
		}
		out.Enrichment = &enr
	}
	return out
}

type anomalyAlertDTO struct {
	Date           string  `json:"date"`
	Type           string  `json:"type"`
	Severity       float64 `json:"severity"`
	Value          float64 `json:"value"`
	Expected       float64 `json:"expected"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
}

func toAlerts(alerts []domain.AnomalyAlert) []anomalyAlertDTO {
	out := make([]anomalyAlertDTO, len(alerts))
	for i, a := range alerts {
		out[i] = anomalyAlertDTO{
			Date:           formatDate(a.Date),
			Type:           a.Type,
			Severity:       round3(a.Severity),
			Value:          round3(a.Value),
			Expected:       round3(a.Expected),
			Description:    a.Description,
			Recommendation: a.Recommendation,
		}
	}
	return out
}

type phenologyDTO struct {
	Crop             string            `json:"crop"`
	Location         domain.Location   `json:"location"`
	Year             int               `json:"year"`
	YearsAnalyzed    int               `json:"years_analyzed"`
	Series           []pointDTO        `json:"ndvi_series"`
	Smoothed         []float64         `json:"ndvi_smoothed"`
	HistoricPeakDays []int             `json:"historic_peak_days,omitempty"`
	Events           []bloomEventDTO   `json:"events"`
	Anomalies        []anomalyAlertDTO `json:"anomalies,omitempty"`
}

func toPhenology(p pipeline.PhenologyAnalysis) phenologyDTO {
	out := phenologyDTO{
		Crop:             p.Crop,
		Location:         p.Location,
		Year:             p.Year,
		YearsAnalyzed:    p.YearsAnalyzed,
		Series:           make([]pointDTO, len(p.Series)),
		Smoothed:         make([]float64, len(p.Smoothed)),
		HistoricPeakDays: p.HistoricPeakDays,
		Events:           make([]bloomEventDTO, len(p.Events)),
	}
	for i, pt := range p.Series {
		out.Series[i] = pointDTO{Date: formatDate(pt.Date), Value: round3(pt.Value)}
	}
	for i, v := range p.Smoothed {
		out.Smoothed[i] = round3(v)
	}
	for i, ev := range p.Events {
		out.Events[i] = toBloomEvent(ev)
	}
	if len(p.Anomalies) > 0 {
		out.Anomalies = toAlerts(p.Anomalies)
	}
	return out
}

type anomalyReportDTO struct {
	Crop       string                   `json:"crop"`
	Location   domain.Location          `json:"location"`
	From       string                   `json:"from"`
	To         string                   `json:"to"`
	Samples    int                      `json:"samples"`
	Thresholds domain.AnomalyThresholds `json:"thresholds"`
	Alerts     []anomalyAlertDTO        `json:"alerts"`
}

func toAnomalyReport(r pipeline.AnomalyReport) anomalyReportDTO {
	return anomalyReportDTO{
		Crop:       r.Crop,
		Location:   r.Location,
		From:       formatDate(r.From),
		To:         formatDate(r.To),
		Samples:    r.Samples,
		Thresholds: r.Thresholds,
		Alerts:     toAlerts(r.Alerts),
	}
}

type forecastDayDTO struct {
	Date                     string                `json:"date"`
	TempMax                  float64               `json:"temp_max"`
	TempMin                  float64               `json:"temp_min"`
	TempAvg                  float64               `json:"temp_avg"`
	Humidity                 float64               `json:"humidity"`
	PrecipitationProbability float64               `json:"precipitation_probability"`
	PrecipitationMM          float64               `json:"precipitation_mm"`
	WindSpeed                float64               `json:"wind_speed"`
	ET0                      float64               `json:"et0"`
	Irrigation               domain.IrrigationNeed `json:"irrigation_need"`
	Provider                 string                `json:"provider"`
	Kind                     domain.DataKind       `json:"kind"`
}

func toForecast(days []domain.ForecastDay) []forecastDayDTO {
	out := make([]forecastDayDTO, len(days))
	for i, d := range days {
		out[i] = forecastDayDTO{
			Date:                     formatDate(d.Date),
			TempMax:                  round1(d.TempMax),
			TempMin:                  round1(d.TempMin),
			TempAvg:                  round1(d.TempAvg),
			Humidity:                 round1(d.Humidity),
			PrecipitationProbability: round1(d.PrecipitationProbability),
			PrecipitationMM:          round1(d.PrecipitationMM),
			WindSpeed:                round1(d.WindSpeed),
			ET0:                      round3(d.ET0),
			Irrigation:               d.Irrigation,
			Provider:                 d.Provider,
			Kind:                     d.Kind,
		}
	}
	return out
}

type forecastDTO struct {
	Days     int              `json:"days"`
	Forecast []forecastDayDTO `json:"forecast"`
}

type irrigationDayDTO struct {
	Date               string  `json:"date"`
	Action             string  `json:"action"`
	AmountMM           float64 `json:"recommended_amount_mm"`
	ET0                float64 `json:"et0_mm"`
	RainProbability    float64 `json:"rain_probability"`
	AverageTemperature float64 `json:"temperature"`
}

type irrigationPlanDTO struct {
	Crop            string                `json:"crop"`
	Current         domain.WeatherReading `json:"current_conditions"`
	ForecastDays    int                   `json:"forecast_days"`
	AvgTemperature  float64               `json:"avg_temperature"`
	AvgRainChance   float64               `json:"avg_rain_probability"`
	WaterDeficitMM  float64               `json:"water_deficit_mm"`
	DailyNeedMM     float64               `json:"daily_water_need_mm"`
	WeeklyNeedMM    float64               `json:"weekly_water_need_mm"`
	Water           domain.CropWater      `json:"crop_requirements"`
	Recommendations []string              `json:"recommendations"`
	Schedule        []irrigationDayDTO    `json:"schedule"`
}

func toIrrigationPlan(p domain.IrrigationPlan) irrigationPlanDTO {
	out := irrigationPlanDTO{
		Crop:            p.Crop,
		Current:         p.Current,
		ForecastDays:    p.ForecastDays,
		AvgTemperature:  round1(p.AvgTemperature),
		AvgRainChance:   round1(p.AvgRainChance),
		WaterDeficitMM:  round1(p.WaterDeficitMM),
		DailyNeedMM:     round1(p.DailyNeedMM),
		WeeklyNeedMM:    round1(p.WeeklyNeedMM),
		Water:           p.Water,
		Recommendations: p.Recommendations,
		Schedule:        make([]irrigationDayDTO, len(p.Schedule)),
	}
	for i, d := range p.Schedule {
		out.Schedule[i] = irrigationDayDTO{
			Date:               formatDate(d.Date),
			Action:             d.Action,
			AmountMM:           round1(d.AmountMM),
			ET0:                round3(d.ET0),
			RainProbability:    round1(d.RainProbability),
			AverageTemperature: round1(d.AverageTemperature),
		}
	}
	return out
}
