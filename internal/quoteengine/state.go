package quoteengine

// State is a market slot's position in the quoting lifecycle (spec §4.8):
// Unsubscribed -> Subscribed/NoQuote -> Subscribed/Quoting <-> Subscribed/Suppressed -> Unsubscribed.
type State string

const (
	StateUnsubscribed State = "unsubscribed"
	StateNoQuote      State = "subscribed_no_quote"
	StateQuoting      State = "subscribed_quoting"
	StateSuppressed   State = "subscribed_suppressed"
)
