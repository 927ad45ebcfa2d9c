// Package domain models the civic risk feeds for one municipality and the
// scoring that turns them into a single dashboard snapshot.
//
// # Domains
//
// Seven independent feeds are collected per snapshot:
//
//	weather      Open-Meteo forecast (current conditions + 7 daily entries)
//	alerts       NWS active alerts merged with forecast-derived alerts
//	air-quality  Open-Meteo air quality (US AQI + EPA category)
//	flood        USGS instantaneous river gauge values (stage, discharge)
//	seismic      USGS FDSN earthquakes, trailing 7 days within a radius
//	incidents    municipal police incident records (Socrata open data)
//	news         city website announcements + local news headlines
//
// Every fetch becomes a [DomainResult]. A result is either available with a
// payload of the domain's shape, or unavailable with an error description.
// The constructors [NewResult] and [Unavailable] are the only way to build one.
//
// # Scoring
//
// [Score] maps six factors onto 0-100 sub-scores and sums them with fixed
// weights:
//
//	factor            domain       weight  signal
//	alerts            alerts       0.24    Σ severity weight (35/25/12/5), cap 100
//	flood             flood        0.22    max(label score, max stage × 2 capped at 100)
//	heatwave          weather      0.20    peak of current, apparent, today's max (°C)
//	air-quality       air-quality  0.16    US AQI buckets 50/100/150/200
//	seismic           seismic      0.10    max magnitude buckets 3/4/5/6
//	community-safety  incidents    0.08    high × 16 + moderate × 7, cap 100
//
// Unavailable defaults: alerts 0, flood 20, heatwave 12, air quality 20,
// seismic 8, community safety 0. With every feed down the composite is 11 (low).
//
// Labels follow one step function for factors and the composite:
//
//	≥75 severe | ≥50 high | ≥25 moderate | else low
//
// Qualitative source labels convert through [LabelScore]:
//
//	severe 90 | high, unhealthy 70 | moderate, sensitive 45 | low, good 15 | else 20
package domain
