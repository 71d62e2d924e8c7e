package voicews

import "encoding/json"

// Inbound message types sent by the voice runtime.
const (
	inputMessage     = "message"
	inputUserState   = "user_state"
	inputAgentState  = "agent_state"
	inputAgentSpeech = "agent_speech"
	inputDTMF        = "dtmf"
	inputCustom      = "custom"
)

// Outbound message types sent to the voice runtime.
const (
	outputMessage   = "message"
	outputToolCall  = "tool_call"
	outputEndCall   = "end_call"
	outputTransfer  = "transfer"
	outputError     = "error"
	outputLogEvent  = "log_event"
	outputLogMetric = "log_metric"
)

const (
	stateStartedSpeaking = "started_speaking"
	stateStoppedSpeaking = "stopped_speaking"
)

// InputMessage is the envelope for everything the runtime sends over the
// websocket.
type InputMessage struct {
	Type    string          `json:"type"`
	Content string          `json:"content,omitempty"`
	State   string          `json:"state,omitempty"`
	Button  string          `json:"button,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OutputMessage is the envelope for everything sent back to the runtime.
type OutputMessage struct {
	Type           string         `json:"type"`
	Content        string         `json:"content,omitempty"`
	ToolName       string         `json:"tool_name,omitempty"`
	ToolArgs       map[string]any `json:"tool_args,omitempty"`
	Result         string         `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
	GoodbyeMessage string         `json:"goodbye_message,omitempty"`
	TargetNumber   string         `json:"target_number,omitempty"`
	Event          string         `json:"event,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Metric         string         `json:"metric,omitempty"`
	Value          float64        `json:"value,omitempty"`
}

// ChatResponse is the body returned by the session bootstrap endpoint.
type ChatResponse struct {
	ID           string `json:"id"`
	WebsocketURL string `json:"websocket_url"`
}

// StatusResponse is the body returned by the health endpoint.
type StatusResponse struct {
	Status      string `json:"status"`
	ActiveCalls int    `json:"active_calls"`
}
