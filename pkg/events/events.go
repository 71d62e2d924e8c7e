package events

import "time"

type Kind string

const (
	KindUserTranscription    Kind = "user_transcription"
	KindAgentResponse        Kind = "agent_response"
	KindAgentSpeechSent      Kind = "agent_speech_sent"
	KindToolCall             Kind = "tool_call"
	KindToolResult           Kind = "tool_result"
	KindEndCall              Kind = "end_call"
	KindTransferCall         Kind = "transfer_call"
	KindEscalationVerdict    Kind = "escalation_verdict"
	KindUserStartedSpeaking  Kind = "user_started_speaking"
	KindUserStoppedSpeaking  Kind = "user_stopped_speaking"
	KindAgentStartedSpeaking Kind = "agent_started_speaking"
	KindAgentStoppedSpeaking Kind = "agent_stopped_speaking"
	KindDTMFInput            Kind = "dtmf_input"
	KindCallStarted          Kind = "call_started"
	KindCallEnded            Kind = "call_ended"
)

// Event is a typed conversation event exchanged between the harness,
// the conversation node, and the escalation monitor.
type Event interface {
	Kind() Kind
	At() time.Time
}

type base struct {
	time time.Time
}

func (b base) At() time.Time { return b.time }

func now() base { return base{time: time.Now()} }

type UserTranscription struct {
	base
	Content string
}

func NewUserTranscription(content string) UserTranscription {
	return UserTranscription{base: now(), Content: content}
}

func (UserTranscription) Kind() Kind { return KindUserTranscription }

type AgentResponse struct {
	base
	Content string
}

func NewAgentResponse(content string) AgentResponse {
	return AgentResponse{base: now(), Content: content}
}

func (AgentResponse) Kind() Kind { return KindAgentResponse }

// AgentSpeechSent is the voice runtime's echo of speech actually played.
type AgentSpeechSent struct {
	base
	Content string
}

func NewAgentSpeechSent(content string) AgentSpeechSent {
	return AgentSpeechSent{base: now(), Content: content}
}

func (AgentSpeechSent) Kind() Kind { return KindAgentSpeechSent }

type ToolCall struct {
	base
	ID        string
	Name      string
	Arguments map[string]any
}

func NewToolCall(id, name string, args map[string]any) ToolCall {
	return ToolCall{base: now(), ID: id, Name: name, Arguments: args}
}

func (ToolCall) Kind() Kind { return KindToolCall }

type ToolResult struct {
	base
	ToolName string
	ToolArgs map[string]any
	Result   string
	Error    string
}

func NewToolResult(name string, args map[string]any, result, errText string) ToolResult {
	return ToolResult{base: now(), ToolName: name, ToolArgs: args, Result: result, Error: errText}
}

func (ToolResult) Kind() Kind { return KindToolResult }

type EndCall struct {
	base
	GoodbyeMessage string
}

func NewEndCall(goodbye string) EndCall {
	return EndCall{base: now(), GoodbyeMessage: goodbye}
}

func (EndCall) Kind() Kind { return KindEndCall }

type TransferCall struct {
	base
	TargetNumber string
	Reason       string
}

func NewTransferCall(target, reason string) TransferCall {
	return TransferCall{base: now(), TargetNumber: target, Reason: reason}
}

func (TransferCall) Kind() Kind { return KindTransferCall }

type UserStartedSpeaking struct{ base }

func NewUserStartedSpeaking() UserStartedSpeaking { return UserStartedSpeaking{base: now()} }

func (UserStartedSpeaking) Kind() Kind { return KindUserStartedSpeaking }

type UserStoppedSpeaking struct{ base }

func NewUserStoppedSpeaking() UserStoppedSpeaking { return UserStoppedSpeaking{base: now()} }

func (UserStoppedSpeaking) Kind() Kind { return KindUserStoppedSpeaking }

type AgentStartedSpeaking struct{ base }

func NewAgentStartedSpeaking() AgentStartedSpeaking { return AgentStartedSpeaking{base: now()} }

func (AgentStartedSpeaking) Kind() Kind { return KindAgentStartedSpeaking }

type AgentStoppedSpeaking struct{ base }

func NewAgentStoppedSpeaking() AgentStoppedSpeaking { return AgentStoppedSpeaking{base: now()} }

func (AgentStoppedSpeaking) Kind() Kind { return KindAgentStoppedSpeaking }

type DTMFInput struct {
	base
	Button string
}

func NewDTMFInput(button string) DTMFInput {
	return DTMFInput{base: now(), Button: button}
}

func (DTMFInput) Kind() Kind { return KindDTMFInput }

type CallStarted struct {
	base
	CallID string
	From   string
}

func NewCallStarted(callID, from string) CallStarted {
	return CallStarted{base: now(), CallID: callID, From: from}
}

func (CallStarted) Kind() Kind { return KindCallStarted }

type CallEnded struct {
	base
	CallID string
	Reason string
}

func NewCallEnded(callID, reason string) CallEnded {
	return CallEnded{base: now(), CallID: callID, Reason: reason}
}

func (CallEnded) Kind() Kind { return KindCallEnded }
