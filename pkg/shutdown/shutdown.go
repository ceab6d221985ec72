package shutdown

// Background workers are shut down in descending order of their priority.
// Add the dependencies if you add a priority here.

const (
	PriorityCloseDatabase = iota // no dependencies
	PriorityManagers             // depends on PriorityCloseDatabase
	PriorityAuditLog             // fed by PriorityManagers
	PriorityTicker               // depends on PriorityManagers
	PriorityRestAPI              // depends on PriorityManagers, PriorityAuditLog
	PriorityMQTT                 // fed by PriorityManagers
	PriorityPrometheus
)
