package cryptoutil

import (
	"fmt"
	"time"
)

// Timelock arithmetic per spec.md §3/§8. Timelocks are always absolute
// unix seconds — §9 flags the source's "timelock = 600" bug where a
// relative delta was treated as an absolute timestamp. We reject
// anything that isn't plausibly a future absolute timestamp.
const (
	MinTimelockDuration = 24 * time.Hour
	SubmissionGrace     = 5 * time.Minute

	// BidGrace closes an auction before its order's deadline to leave
	// enough time to drive HtlcStateMachine afterward (spec.md §4.4).
	BidGrace = 10 * time.Minute
)

// ValidateTimelock enforces timelock-now >= minDuration (limits.min_timelock,
// spec.md §6, defaulting to MinTimelockDuration) and deadline < timelock,
// per spec.md §3/§8 boundary cases.
func ValidateTimelock(now time.Time, deadline, timelock time.Time, minDuration time.Duration) error {
	if !(deadline.Before(timelock)) {
		return fmt.Errorf("deadline %s must precede timelock %s", deadline, timelock)
	}
	if timelock.Sub(now) < minDuration {
		return fmt.Errorf("timelock %s is less than %s from now", timelock, minDuration)
	}
	return nil
}

// ValidateDeadline enforces deadline > now + grace, per OrderEngine.submit_intent.
func ValidateDeadline(now, deadline time.Time, grace time.Duration) error {
	if !deadline.After(now.Add(grace)) {
		return fmt.Errorf("deadline %s is not after now+grace (%s)", deadline, now.Add(grace))
	}
	return nil
}

// StageOffset describes the relative timelock offset a destination leg
// must use with respect to the source leg's timelock, so that a claim
// on the destination (which must settle before the source claim can
// safely follow) always has a materially earlier expiry than the source
// leg — this is what prevents the free-option attack described in §4.5.
const StageOffset = 2 * time.Hour

// DstTimelock derives the destination leg's timelock from the source
// leg's, offset earlier by StageOffset so the destination always expires
// first and can be safely refunded before the source leg's deadline.
func DstTimelock(srcTimelock time.Time) time.Time {
	return srcTimelock.Add(-StageOffset)
}
