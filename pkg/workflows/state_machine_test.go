package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestMachine() *StateMachine {
	//          PENDING      DOING        DONE
	// PENDING  -            begin        close
	// DOING    cancel       -            finish
	// DONE     reopen       X            -
	return NewStateMachine([]Transition{
		{Action: "begin", From: "PENDING", To: "DOING"},
		{Action: "close", From: "PENDING", To: "DONE"},
		{Action: "cancel", From: "DOING", To: "PENDING"},
		{Action: "finish", From: "DOING", To: "DONE"},
		{Action: "reopen", From: "DONE", To: "PENDING"},
	})
}

func TestNext(t *testing.T) {
	sm := newTestMachine()

	to, ok := sm.Next("PENDING", "begin")
	assert.True(t, ok)
	assert.Equal(t, "DOING", to)

	_, ok = sm.Next("DONE", "finish")
	assert.False(t, ok)

	_, ok = sm.Next("UNKNOWN", "begin")
	assert.False(t, ok)
}

func TestGetAllowedTransitions(t *testing.T) {
	sm := newTestMachine()

	assert.Equal(t, []Transition{
		{Action: "begin", From: "PENDING", To: "DOING"},
		{Action: "close", From: "PENDING", To: "DONE"},
	}, sm.GetAllowedTransitions("PENDING"))
	assert.Empty(t, sm.GetAllowedTransitions("UNKNOWN"))
}
