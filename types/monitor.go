package types

var (
	InitState string = "init"
	FailState string = "fail"
)

// MonitorState is a state in the state machine (Monitor)
// Use MonitorBuilder to create monitor states (do not instantiate directly)
type MonitorState struct {
	Success     bool
	Name        string
	transitions map[string]MonitorCondition
	order       []string
}

// Transitions of a Monitor are labelled with a MonitorCondition
// MonitorCondition is a predicate on a sample of the trial
type MonitorCondition func(*Sample) bool

// Not operator on the MonitorCondition
func (m MonitorCondition) Not() MonitorCondition {
	return func(s *Sample) bool {
		return !m(s)
	}
}

// Or operator between MonitorCondition's
func (m MonitorCondition) Or(other MonitorCondition) MonitorCondition {
	return func(s *Sample) bool {
		return m(s) || other(s)
	}
}

// And operator between MonitorCondition's
func (m MonitorCondition) And(other MonitorCondition) MonitorCondition {
	return func(s *Sample) bool {
		return m(s) && other(s)
	}
}

// Monitor is a generic state machine over the samples of a trace
type Monitor struct {
	states map[string]*MonitorState
}

// Checks if a trace satisfies the monitor
// Simulates the monitor and returns the prefix
// that results in a transition to a success state (the sample causing it included)
func (m *Monitor) Check(t *Trace) (*Trace, bool) {
	curState := m.states[InitState]
	if t.Len() == 0 || curState.Success {
		return NewTrace(), curState.Success
	}
	for i := 0; i < t.Len(); i++ {
		s, _ := t.Get(i)
		// transitions are tried in the order they were defined
		for _, next := range curState.order {
			if curState.transitions[next](s) {
				curState = m.states[next]
				break
			}
		}
		if curState.Success {
			return t.GetPrefix(i + 1)
		}
	}
	return nil, false
}

// Creates a new Monitor
// with a default initial state
func NewMonitor() *Monitor {
	m := &Monitor{
		states: make(map[string]*MonitorState),
	}
	m.states[InitState] = newMonitorState(InitState)
	return m
}

func newMonitorState(name string) *MonitorState {
	return &MonitorState{
		Name:        name,
		Success:     false,
		transitions: make(map[string]MonitorCondition),
		order:       make([]string, 0),
	}
}

// Returns a MonitorBuilder to construct the remainder of the state machine
// Initialized at the initial state
func (m *Monitor) Build() *MonitorBuilder {
	return &MonitorBuilder{
		monitor:  m,
		curState: m.states[InitState],
	}
}

// Encodes a Builder pattern to create the state machine
// The builder is indexed at a particular state of the state machine (Monitor)
type MonitorBuilder struct {
	monitor  *Monitor
	curState *MonitorState
}

// On defines a transition from the current state based on the condition the next state
// returns a new builder instance that is indexed at the next state.
// To construct a chain of state one can call s1.On().On().On()...
// Note: If `next` is not part of the state machine, then its newly created otherwise the existing state is indexed
func (m *MonitorBuilder) On(cond MonitorCondition, next string) *MonitorBuilder {
	nextState, ok := m.monitor.states[next]
	if !ok {
		nextState = newMonitorState(next)
		m.monitor.states[next] = nextState
	}
	if _, exists := m.curState.transitions[next]; !exists {
		m.curState.order = append(m.curState.order, next)
	}
	m.curState.transitions[next] = cond
	return &MonitorBuilder{
		monitor:  m.monitor,
		curState: nextState,
	}
}

// Mark the corresponding state indexed at this builder instance as a success state
func (m *MonitorBuilder) MarkSuccess() *MonitorBuilder {
	m.curState.Success = true
	return m
}
