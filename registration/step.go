package registration

//go:generate go tool stringer -type=Step -trimprefix=Step

// Step is where a Session is in the registration flow.
type Step int

const (
	StepCollecting Step = iota
	StepAwaitingOtp
	StepCompleted
)

// ParseStep is the inverse of Step.String.
func ParseStep(s string) (Step, bool) {
	for _, step := range []Step{StepCollecting, StepAwaitingOtp, StepCompleted} {
		if step.String() == s {
			return step, true
		}
	}
	return 0, false
}
