package metrics

// Well-known metric event names.
const (
	EventRateLimit     = "rate_limit"
	EventBreakerOpen   = "breaker_open"
	EventBreakerClose  = "breaker_close"
	EventBreakerDenied = "breaker_denied"

	EventUtteranceReceived = "utterance_received"
	EventReplySent         = "reply_sent"
	EventToolExecuted      = "tool_executed"
	EventFallbackUsed      = "fallback_used"
	EventVerdictRequested  = "verdict_requested"
	EventVerdictDone       = "verdict_done"
	EventVerdictAnomaly    = "verdict_anomaly"
	EventLLMUsage          = "llm_usage"
)
