// Package status computes whether the restaurant is open at a given
// instant from the manual override, scheduled closures, holiday rules
// and the weekly hours table. Evaluation is pure: no clocks, no stores.
package status
