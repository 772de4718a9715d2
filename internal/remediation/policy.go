package remediation

import (
	"sort"
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

// sortedActivePolicies returns the enabled, active policies from all,
// sorted by Priority ascending (lower value evaluated first).
func sortedActivePolicies(all []model.Policy) []model.Policy {
	var out []model.Policy
	for _, p := range all {
		if p.Enabled && p.Status == model.PolicyActive {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// matchesConditions reports whether every trigger condition holds and
// no exclude condition holds.
func matchesConditions(ctx ConditionContext, p model.Policy) bool {
	for _, c := range p.Triggers {
		if !Evaluate(ctx, c) {
			return false
		}
	}
	for _, c := range p.Excludes {
		if Evaluate(ctx, c) {
			return false
		}
	}
	return true
}

// businessHoursRange defines the fixed business-hours window used
// when a policy sets business_hours_only without its own allowed_hours.
var businessHoursRange = model.HourRange{Start: 9, End: 17}

func isBusinessDay(d time.Weekday) bool {
	return d >= time.Monday && d <= time.Friday
}

// matchesTimeCondition reports whether now satisfies tc.
func matchesTimeCondition(tc model.TimeCondition, now time.Time) bool {
	if tc.BusinessHoursOnly {
		if !isBusinessDay(now.Weekday()) {
			return false
		}
		hours := businessHoursRange
		if tc.AllowedHours != nil {
			hours = *tc.AllowedHours
		}
		if !inHourRange(now, hours) {
			return false
		}
	}
	if len(tc.AllowedDays) > 0 && !dayIn(now.Weekday(), tc.AllowedDays) {
		return false
	}
	if tc.AllowedHours != nil && !inHourRange(now, *tc.AllowedHours) {
		return false
	}
	return true
}

func inHourRange(t time.Time, r model.HourRange) bool {
	return t.Hour() >= r.Start && t.Hour() < r.End
}

func dayIn(d time.Weekday, days []time.Weekday) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}

// SelectPolicy returns the first policy (priority ascending) whose
// triggers/excludes/time-condition match ctx/now and whose rate-limit
// budget (checked via rateOK) still has room, per spec §4.4 "Policy
// matching". Returns (nil, false) if none match.
func SelectPolicy(policies []model.Policy, ctx ConditionContext, now time.Time, rateOK func(model.Policy) bool) (*model.Policy, bool) {
	for _, p := range sortedActivePolicies(policies) {
		if !matchesConditions(ctx, p) {
			continue
		}
		if !matchesTimeCondition(p.TimeCondition, now) {
			continue
		}
		if rateOK != nil && !rateOK(p) {
			continue
		}
		pCopy := p
		return &pCopy, true
	}
	return nil, false
}
