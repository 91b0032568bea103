package submission

import "fmt"

// State is a step of the submission lifecycle.
type State uint8

const (
	StateReceived State = iota
	StateStructureValidated
	StateSecurityChecked
	StateIntegrityValidated
	StateRewardCalculated
	StateRecorded
	StateResponded
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "RECEIVED"
	case StateStructureValidated:
		return "STRUCTURE_VALIDATED"
	case StateSecurityChecked:
		return "SECURITY_CHECKED"
	case StateIntegrityValidated:
		return "INTEGRITY_VALIDATED"
	case StateRewardCalculated:
		return "REWARD_CALCULATED"
	case StateRecorded:
		return "RECORDED"
	case StateResponded:
		return "RESPONDED"
	case StateRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

var transitions = map[State][]State{
	StateReceived:           {StateStructureValidated, StateRejected},
	StateStructureValidated: {StateSecurityChecked, StateRejected},
	StateSecurityChecked:    {StateIntegrityValidated, StateRejected},
	StateIntegrityValidated: {StateRewardCalculated, StateRejected},
	StateRewardCalculated:   {StateRecorded, StateRejected},
	StateRecorded:           {StateResponded},
}

func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool {
	return s == StateResponded || s == StateRejected
}

type lifecycle struct {
	state State
	trail []State
}

func newLifecycle() *lifecycle {
	return &lifecycle{state: StateReceived, trail: []State{StateReceived}}
}

func (l *lifecycle) advance(to State) error {
	if !l.state.CanTransition(to) {
		return fmt.Errorf("illegal transition %s -> %s", l.state, to)
	}
	l.state = to
	l.trail = append(l.trail, to)
	return nil
}
