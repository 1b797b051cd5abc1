// Package cadence decides, from the learner's step counter, when the target
// networks are refreshed and when parameters are broadcast.
package cadence

import "fmt"

// ShouldSyncTarget reports whether step is a positive multiple of freq.
func ShouldSyncTarget(step, freq int64) bool {
	return isMultiple(step, freq)
}

// ShouldPublish reports whether step is a positive multiple of interval.
func ShouldPublish(step, interval int64) bool {
	return isMultiple(step, interval)
}

func isMultiple(step, n int64) bool {
	if step <= 0 || n <= 0 {
		return false
	}
	return step%n == 0
}

type Policy struct {
	TargetUpdateFrequency int64
	ParamUpdateInterval   int64
}

type Decision struct {
	SyncTarget bool
	Publish    bool
}

func (p Policy) Validate() error {
	if p.TargetUpdateFrequency <= 0 {
		return fmt.Errorf("target update frequency must be > 0, got %d", p.TargetUpdateFrequency)
	}
	if p.ParamUpdateInterval <= 0 {
		return fmt.Errorf("param update interval must be > 0, got %d", p.ParamUpdateInterval)
	}
	return nil
}

// Decide evaluates both predicates for the 1-based number of a completed step.
func (p Policy) Decide(step int64) Decision {
	return Decision{
		SyncTarget: ShouldSyncTarget(step, p.TargetUpdateFrequency),
		Publish:    ShouldPublish(step, p.ParamUpdateInterval),
	}
}
