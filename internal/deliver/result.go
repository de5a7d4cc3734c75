// Package deliver handles best-effort external delivery of notifications:
// mobile push, Slack ops pings, and email. Delivery never blocks or rolls
// back the persisted notification; each recipient's outcome is captured in a
// Result and aggregated into a Report so the caller decides what to log.
package deliver

// Channel names for delivery results and metrics.
const (
	ChannelPush  = "mobile_push"
	ChannelEmail = "email"
	ChannelSlack = "slack"
)

// Result is the outcome of one delivery attempt to one recipient. A skipped
// attempt (disabled integration, user opt-out) carries no error.
type Result struct {
	UserID  int64  `json:"user_id"`
	Channel string `json:"channel"`
	Skipped bool   `json:"skipped,omitempty"`
	Err     error  `json:"-"`
}

// Delivered reports whether the attempt reached the external service.
func (r Result) Delivered() bool {
	return !r.Skipped && r.Err == nil
}

// Report aggregates per-recipient results for one dispatch.
type Report struct {
	Results []Result
}

// Add appends a result to the report.
func (rp *Report) Add(r Result) {
	rp.Results = append(rp.Results, r)
}

// Failures returns the results that attempted delivery and failed.
func (rp *Report) Failures() []Result {
	var out []Result
	for _, r := range rp.Results {
		if !r.Skipped && r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// DeliveredCount returns the number of successful deliveries.
func (rp *Report) DeliveredCount() int {
	n := 0
	for _, r := range rp.Results {
		if r.Delivered() {
			n++
		}
	}
	return n
}
