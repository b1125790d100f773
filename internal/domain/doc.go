// Package domain models urban health-sensor readings and the outbreak alerts
// derived from them.
//
// # Data Sources
//
// Field collectors publish one JSON object per observation to the readings
// topic. Four source types are recognised:
//
//	water     pH of a municipal water sample        (normal 6.5–8.5)
//	air       air-quality index                      (normal 50–150)
//	hospital  admissions reported by a facility      (normal 30–90)
//	pharmacy  units sold, tagged with a sale category (normal 70–170)
//
// Pharmacy categories are antidiarrheal, antipyretic, respiratory and other;
// anything unrecognised is folded into other.
//
// # Zones
//
// Alerts are localised to a fixed set of city zones (Bandra, Colaba, Andheri,
// Dadar, Borivali). Readings that arrive with coordinates but no zone are
// assigned by a [ZoneResolver]; the built-in [CentroidResolver] picks the
// nearest zone centroid by great-circle distance.
//
// # Threat Types
//
// Each confirmed anomaly maps to a threat type by source:
//
//	water              → waterborne_contamination
//	air                → airborne_contamination
//	pharmacy, hospital → foodborne_illness
//
// Three or more distinct source types confirmed in the same zone inside one
// correlation window additionally raise vector_borne_disease.
//
// # Severity
//
// Severity is ordered low < medium < high < critical and derived from the
// maximum confidence of the contributing evidence by [SeverityPolicy]:
//
//	critical  confidence ≥ 90, or ≥ 2 distinct threat types at once
//	high      confidence ≥ 75
//	medium    confidence ≥ 50
//	low       otherwise
//
// # Alert Lifecycle
//
// At most one non-resolved [Alert] exists per [AlertKey] (zone, threat type).
// Alerts open on first evidence, escalate when severity strictly increases and
// resolve after a quiet period. Recommendations come from a static [Playbook].
package domain
