package core

import "fmt"

// State 订单状态
type State uint8

const (
	StateAuthorizationsPending State = iota
	StateAuthorizationsValid
	StateFinalized
	StateCertificateAvailable
)

var stateNames = map[State]string{
	StateAuthorizationsPending: "authorizations-pending",
	StateAuthorizationsValid:   "authorizations-valid",
	StateFinalized:             "finalized",
	StateCertificateAvailable:  "certificate-available",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// transitions 每个状态唯一的后继，StateCertificateAvailable 为终态
var transitions = map[State]State{
	StateAuthorizationsPending: StateAuthorizationsValid,
	StateAuthorizationsValid:   StateFinalized,
	StateFinalized:             StateCertificateAvailable,
}

// orderState 跟踪订单状态
type orderState struct {
	current State
}

func (s *orderState) State() State {
	return s.current
}

func (s *orderState) Done() bool {
	return s.current == StateCertificateAvailable
}

// advance 迁移到 next，只允许唯一合法后继
func (s *orderState) advance(next State) error {
	want, ok := transitions[s.current]
	if !ok || want != next {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.current, next)
	}
	s.current = next
	return nil
}
