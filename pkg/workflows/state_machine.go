package workflows

import "sort"

// Transition is a named edge of the state machine.
type Transition struct {
	Action string `json:"action"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// StateMachine enforces status transitions keyed by (from, action)
type StateMachine struct {
	allowedTransitions map[string]map[string]string
}

// NewStateMachine creates a state machine from the given edges. A later edge with the same
// (from, action) pair replaces an earlier one.
func NewStateMachine(transitions []Transition) *StateMachine {
	sm := &StateMachine{allowedTransitions: make(map[string]map[string]string)}
	for _, t := range transitions {
		if sm.allowedTransitions[t.From] == nil {
			sm.allowedTransitions[t.From] = make(map[string]string)
		}
		sm.allowedTransitions[t.From][t.Action] = t.To
	}
	return sm
}

// Next returns the destination for action taken from status.
func (sm *StateMachine) Next(from, action string) (string, bool) {
	actions, exists := sm.allowedTransitions[from]
	if !exists {
		return "", false
	}
	to, ok := actions[action]
	return to, ok
}

// GetAllowedTransitions returns the edges leaving from, ordered by action name
func (sm *StateMachine) GetAllowedTransitions(from string) []Transition {
	actions, exists := sm.allowedTransitions[from]
	if !exists {
		return []Transition{}
	}

	transitions := make([]Transition, 0, len(actions))
	for action, to := range actions {
		transitions = append(transitions, Transition{Action: action, From: from, To: to})
	}
	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].Action < transitions[j].Action
	})
	return transitions
}
