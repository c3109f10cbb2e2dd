package domain

// DeliveryTask is one matched (channel, rule) pair for one message.
// It only lives for the duration of a single dispatch.
type DeliveryTask struct {
	ID      string         `json:"id"`
	Channel Channel        `json:"channel"`
	Rule    Rule           `json:"rule"`
	Message InboundMessage `json:"message"`
}

// DeliveryOutcome is the result of running one task to completion.
type DeliveryOutcome struct {
	Task      DeliveryTask `json:"task"`
	Succeeded bool         `json:"succeeded"`
	Attempts  int          `json:"attempts"`
	LastError error        `json:"-"`
}

// ErrorString returns the last error text, or empty.
func (o DeliveryOutcome) ErrorString() string {
	if o.LastError == nil {
		return ""
	}
	return o.LastError.Error()
}
