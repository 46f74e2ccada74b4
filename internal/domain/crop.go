package domain

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"
)

// DefaultCropKey is the profile used when a crop key is not recognized.
const DefaultCropKey = "arroz"

// Range is a closed interval [Min, Max].
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within the interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// CropProfile holds the flowering thresholds of one crop.
type CropProfile struct {
	Key              string       `json:"key"`
	NDVIThreshold    float64      `json:"ndvi_flowering_threshold"`
	Temperature      Range        `json:"optimal_temperature"`
	ThermalThreshold float64      `json:"gdd_threshold"`
	Humidity         Range        `json:"optimal_humidity"`
	FloweringMonths  []time.Month `json:"flowering_months"`
}

func (p CropProfile) validate() error {
	switch {
	case p.Key == "":
		return errors.New("crop profile key is required")
	case p.NDVIThreshold <= 0 || p.NDVIThreshold >= 1:
		return fmt.Errorf("crop %q: ndvi threshold must be in (0, 1)", p.Key)
	case p.Temperature.Min <= 0 || p.Temperature.Max < p.Temperature.Min:
		return fmt.Errorf("crop %q: invalid temperature range", p.Key)
	case p.ThermalThreshold <= 0:
		return fmt.Errorf("crop %q: gdd threshold must be positive", p.Key)
	case p.Humidity.Min <= 0 || p.Humidity.Max < p.Humidity.Min:
		return fmt.Errorf("crop %q: invalid humidity range", p.Key)
	case len(p.FloweringMonths) == 0:
		return fmt.Errorf("crop %q: at least one flowering month is required", p.Key)
	}
	return nil
}

func (p CropProfile) floweringIn(m time.Month) bool {
	return slices.Contains(p.FloweringMonths, m)
}

// CropTable is an immutable set of crop profiles with a default entry.
type CropTable struct {
	profiles   map[string]CropProfile
	defaultKey string
}

// NewCropTable validates profiles and builds a table. Every denominator used
// by the scorer (thresholds, range minimums) must be positive.
func NewCropTable(defaultKey string, profiles ...CropProfile) (CropTable, error) {
	t := CropTable{profiles: make(map[string]CropProfile, len(profiles)), defaultKey: defaultKey}
	for _, p := range profiles {
		if err := p.validate(); err != nil {
			return CropTable{}, err
		}
		if _, dup := t.profiles[p.Key]; dup {
			return CropTable{}, fmt.Errorf("duplicate crop profile %q", p.Key)
		}
		p.FloweringMonths = slices.Clone(p.FloweringMonths)
		t.profiles[p.Key] = p
	}
	if _, ok := t.profiles[defaultKey]; !ok {
		return CropTable{}, fmt.Errorf("default crop %q has no profile", defaultKey)
	}
	return t, nil
}

// DefaultCropTable returns the built-in Mediterranean crop profiles.
func DefaultCropTable() CropTable {
	t, err := NewCropTable(DefaultCropKey,
		CropProfile{Key: "arroz", NDVIThreshold: 0.75, Temperature: Range{20, 30}, ThermalThreshold: 1200, Humidity: Range{70, 85}, FloweringMonths: []time.Month{6, 7, 8}},
		CropProfile{Key: "trigo", NDVIThreshold: 0.70, Temperature: Range{15, 25}, ThermalThreshold: 1500, Humidity: Range{60, 75}, FloweringMonths: []time.Month{4, 5, 6}},
		CropProfile{Key: "maiz", NDVIThreshold: 0.80, Temperature: Range{18, 28}, ThermalThreshold: 1400, Humidity: Range{65, 80}, FloweringMonths: []time.Month{7, 8, 9}},
		CropProfile{Key: "naranja", NDVIThreshold: 0.65, Temperature: Range{16, 26}, ThermalThreshold: 1000, Humidity: Range{55, 70}, FloweringMonths: []time.Month{3, 4, 5}},
		CropProfile{Key: "oliva", NDVIThreshold: 0.60, Temperature: Range{15, 25}, ThermalThreshold: 800, Humidity: Range{50, 65}, FloweringMonths: []time.Month{4, 5, 6}},
		CropProfile{Key: "tomate", NDVIThreshold: 0.78, Temperature: Range{20, 28}, ThermalThreshold: 900, Humidity: Range{60, 75}, FloweringMonths: []time.Month{5, 6, 7, 8}},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the profile for key, or the default profile and false when
// key is unknown.
func (t CropTable) Lookup(key string) (CropProfile, bool) {
	p, ok := t.profiles[key]
	if !ok {
		p = t.profiles[t.defaultKey]
	}
	p.FloweringMonths = slices.Clone(p.FloweringMonths)
	return p, ok
}

// Keys returns the supported crop keys in sorted order.
func (t CropTable) Keys() []string {
	keys := make([]string, 0, len(t.profiles))
	for k := range t.profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultKey returns the key of the fallback profile.
func (t CropTable) DefaultKey() string { return t.defaultKey }
