package types

const (
	ActionRabbitMQConnected       = "rabbitmq_connected"
	ActionRabbitConnectionClosed  = "rabbitmq_connection_closed"
	ActionRabbitConnectionClosing = "rabbitmq_connection_closing"

	ActionBackendCallFailed = "backend_call_failed"
	ActionOfferDropped      = "offer_dropped"
	ActionPhaseChanged      = "phase_changed"
	ActionTokenRegistration = "push_token_registration"
	ActionReconcile         = "booking_status_reconcile"
)
