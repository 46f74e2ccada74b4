package simulator

import (
	"math"
	"time"
)

const (
	mixedCropNDVI  = 0.1
	fallowCropNDVI = 0.05
)

// dayRange is an inclusive day-of-year span. A start after the end wraps
// across the new year.
type dayRange struct {
	start, end int
}

func (r dayRange) contains(doy int) bool {
	if r.start <= r.end {
		return doy >= r.start && doy <= r.end
	}
	return doy >= r.start || doy <= r.end
}

// cropCycle is the growing calendar of a crop and its NDVI at full canopy.
type cropCycle struct {
	planting  dayRange
	flowering dayRange
	harvest   dayRange
	peakNDVI  float64
	perennial bool
}

func defaultCropCycles() map[string]cropCycle {
	return map[string]cropCycle{
		"arroz": {
			planting:  dayRange{90, 120},
			flowering: dayRange{180, 210},
			harvest:   dayRange{240, 270},
			peakNDVI:  0.85,
		},
		"naranja": {
			flowering: dayRange{75, 135},
			harvest:   dayRange{300, 60},
			peakNDVI:  0.70,
			perennial: true,
		},
		"trigo": {
			planting:  dayRange{300, 330},
			flowering: dayRange{105, 135},
			harvest:   dayRange{165, 195},
			peakNDVI:  0.75,
		},
	}
}

// cropNDVI is the crop's contribution to NDVI on a day of the year.
func (s *Simulator) cropNDVI(crop string, doy int) float64 {
	c, ok := s.crops[crop]
	if !ok {
		return mixedCropNDVI
	}

	if c.perennial {
		switch {
		case c.flowering.contains(doy):
			return c.peakNDVI * 0.8
		case c.harvest.contains(doy):
			return c.peakNDVI * 0.6
		default:
			return c.peakNDVI * 0.4
		}
	}

	switch {
	case doy >= c.planting.start && doy <= c.flowering.start:
		progress := float64(doy-c.planting.start) / float64(c.flowering.start-c.planting.start)
		return c.peakNDVI * progress * 0.7
	case c.flowering.contains(doy):
		return c.peakNDVI
	case doy >= c.flowering.end && doy <= c.harvest.end:
		progress := float64(c.harvest.end-doy) / float64(c.harvest.end-c.flowering.end)
		return c.peakNDVI * progress * 0.8
	default:
		return fallowCropNDVI
	}
}

type eventKind int

const (
	eventDrought eventKind = iota
	eventHeatWave
	eventStorm
)

type channel int

const (
	channelNDVI channel = iota
	channelTemperature
	channelHumidity
)

// climateEvent is a historical or scheduled anomaly that scales the
// simulated signals with a half-sine intensity curve.
type climateEvent struct {
	kind      eventKind
	start     time.Time
	days      int
	intensity float64
}

func defaultClimateEvents() []climateEvent {
	return []climateEvent{
		{kind: eventDrought, start: date(2023, time.June, 15), days: 90, intensity: 0.7},
		{kind: eventHeatWave, start: date(2024, time.July, 10), days: 15, intensity: 0.8},
		{kind: eventStorm, start: date(2025, time.September, 20), days: 7, intensity: 0.6},
		{kind: eventDrought, start: date(2026, time.May, 1), days: 60, intensity: 0.5},
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// eventFactor multiplies the effects of every event active on date for ch.
func (s *Simulator) eventFactor(on time.Time, ch channel) float64 {
	factor := 1.0
	for _, ev := range s.events {
		elapsed := int(on.Sub(ev.start).Hours() / 24)
		if elapsed < 0 || elapsed > ev.days {
			continue
		}
		i := ev.intensity * math.Sin(math.Pi*float64(elapsed)/float64(ev.days))
		factor *= ev.effect(ch, i)
	}
	return clamp(factor, minEventFactor, maxEventFactor)
}

func (ev climateEvent) effect(ch channel, i float64) float64 {
	switch ev.kind {
	case eventDrought:
		switch ch {
		case channelNDVI:
			return 1 - 0.3*i
		case channelTemperature:
			return 1 + 0.2*i
		case channelHumidity:
			return 1 - 0.3*i
		}
	case eventHeatWave:
		switch ch {
		case channelNDVI:
			return 1 - 0.2*i
		case channelTemperature:
			return 1 + 0.4*i
		}
	case eventStorm:
		if ch == channelHumidity {
			return 1 + 0.4*i
		}
	}
	return 1
}
