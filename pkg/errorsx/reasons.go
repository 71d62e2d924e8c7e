package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonLLMGenerate  ReasonCode = "llm_generate"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"

	ReasonVerdictParse  ReasonCode = "verdict_parse"
	ReasonVerdictSchema ReasonCode = "verdict_schema"

	ReasonToolUnknown ReasonCode = "tool_unknown"
	ReasonToolFailed  ReasonCode = "tool_failed"

	ReasonTransportSend ReasonCode = "transport_send"
	ReasonHandoffDial   ReasonCode = "handoff_dial"
)
