package event_bus

const (
	ReportDeliveredType      EventType = "report.delivered"
	ReportDeliveryFailedType EventType = "report.delivery_failed"
)

// ReportDelivered is published after a message was accepted by the transport.
type ReportDelivered struct {
	RunId     string
	Report    string
	Recipient string
	Subject   string
	Attempts  int
}

// ReportDeliveryFailed is published once retries for a recipient are exhausted.
type ReportDeliveryFailed struct {
	RunId     string
	Report    string
	Recipient string
	Subject   string
	Attempts  int
	Error     string
}
