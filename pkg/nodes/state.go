package nodes

import "sync/atomic"

// CallState is shared between the conversation node and the escalation
// monitor of one session.
type CallState struct {
	escalated atomic.Bool
}

func NewCallState() *CallState { return &CallState{} }

func (s *CallState) MarkEscalated() { s.escalated.Store(true) }

func (s *CallState) Escalated() bool { return s.escalated.Load() }
