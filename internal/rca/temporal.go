package rca

import (
	"fmt"
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

// temporalAnalysis implements spec §4.3's two temporal detectors:
// (a) sequence detection — monotonically decreasing inter-arrival
// times suggests a gradual-escalation hypothesis; (b) clustering —
// more than one alert per minute suggests a burst hypothesis. Either,
// both, or neither may fire; results are returned in a slice.
func temporalAnalysis(alerts []model.Alert) []*Result {
	if len(alerts) < 2 {
		return nil
	}
	times := sortedTimes(alerts)

	var results []*Result
	if r := sequenceDetection(times); r != nil {
		results = append(results, r)
	}
	if r := clusterDetection(times); r != nil {
		results = append(results, r)
	}
	return results
}

// sequenceDetection checks whether successive inter-arrival gaps
// monotonically shrink, i.e. the incident is accelerating.
func sequenceDetection(times []time.Time) *Result {
	if len(times) < 3 {
		return nil
	}
	gaps := make([]time.Duration, len(times)-1)
	for i := 1; i < len(times); i++ {
		gaps[i-1] = times[i].Sub(times[i-1])
	}
	decreasing := true
	for i := 1; i < len(gaps); i++ {
		if gaps[i] > gaps[i-1] {
			decreasing = false
			break
		}
	}
	if !decreasing {
		return nil
	}
	return &Result{
		SuspectedCause:      "gradual escalation",
		Confidence:          0.4,
		ContributingFactors: []string{fmt.Sprintf("%d monotonically shrinking gaps", len(gaps))},
		Analyzer:            "temporal:sequence",
	}
}

// clusterDetection flags bursts of more than one alert per minute.
func clusterDetection(times []time.Time) *Result {
	span := times[len(times)-1].Sub(times[0])
	if span <= 0 {
		span = time.Second
	}
	perMinute := float64(len(times)) / (float64(span) / float64(time.Minute))
	if perMinute <= 1.0 {
		return nil
	}
	confidence := 0.3 + 0.02*perMinute
	if confidence > 0.55 {
		confidence = 0.55
	}
	return &Result{
		SuspectedCause:      "alert burst",
		Confidence:          confidence,
		ContributingFactors: []string{fmt.Sprintf("%.1f alerts/minute", perMinute)},
		Analyzer:            "temporal:clustering",
	}
}
