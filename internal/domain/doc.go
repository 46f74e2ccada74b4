// Package domain holds the signal-processing and scoring core of the bloom
// risk service: the NDVI smoother, the phenology event detector, the
// flowering-risk scorer and the weather fusion rules. Everything in here is
// pure and synchronous; I/O lives in the adapters.
//
// # NDVI Conventions
//
// Vegetation index values are scalars in roughly [0, 1]. Satellite products
// (MODIS) deliver one composite every 16 days, so series are not evenly
// spaced in general. The detector only assumes non-decreasing dates.
//
// Dates are calendar days in UTC, formatted "2006-01-02" at the boundary
// (see [ParseDate]). Day-of-year follows [time.Time.YearDay].
//
// # Detection
//
// A series is smoothed ([Smoother]), differentiated with central
// differences, and peaks of the signal above its 10th percentile baseline
// are accepted when they are strict local maxima at least two samples apart.
// Onset walks backwards from the peak until the rise flattens or drops to
// 10% of the rise height; end is the first sample below half the rise height
// after the peak.
//
//	reliability = clamp(amplitude / 0.5, 0, 1)
//	anomaly     = peak day-of-year - mean(historic peak day-of-year)
//
// The peak height bar is the 10th percentile of the relative signal, so
// sparse series still produce a candidate whenever they vary at all.
//
// # Risk Scoring
//
// Five factors, each in [0, 1], are blended with fixed weights:
//
//	NDVI 0.40 | temperature 0.25 | humidity 0.15 | thermal units 0.10 | season 0.10
//
// Crop thresholds come from an immutable [CropTable] handed to the [Scorer];
// unknown crop keys resolve to the table's default profile (rice, "arroz").
// Forecast confidence decays linearly with the horizon and is floored at 0.3.
//
// # Weather Fusion
//
// Two providers are fused field by field: temperature 0.4 local + 0.6 global,
// humidity and precipitation from the local station, wind from the global
// model, pressure averaged, evapotranspiration takes the maximum. Readings
// carry a [DataKind] so callers can tell observed data from estimates.
//
// # ID Generation
//
// Bloom event IDs are deterministic SHA-256 hashes of peak date, onset date
// and peak value, so re-running detection over the same series yields the
// same IDs. See [generateEventID].
package domain
