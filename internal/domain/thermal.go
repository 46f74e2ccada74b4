package domain

import (
	"math"
	"time"
)

// Reference temperate-climate sinusoid used when accumulated growing degree
// days are not supplied.
const (
	thermalBaseTemp     = 10.0
	thermalMeanTemp     = 15.0
	thermalSeasonalAmpl = 8.0
)

// EstimateThermalUnits approximates growing degree days accumulated from
// January 1 to date: the seasonal mean temperature of date above base 10 °C,
// multiplied by the days elapsed in the year.
func EstimateThermalUnits(date time.Time) float64 {
	doy := float64(date.YearDay())
	avg := thermalMeanTemp + thermalSeasonalAmpl*math.Sin(doy/365*2*math.Pi-math.Pi/2)
	daily := math.Max(0, avg-thermalBaseTemp)
	return daily * float64(date.YearDay()-1)
}
