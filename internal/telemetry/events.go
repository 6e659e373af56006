package telemetry

// Event names.
const (
	EventPredictionServed = "prediction_served"
	EventModelUpdated     = "model_updated"
	EventTaskCompleted    = "task_completed"
	EventCommandExecuted  = "command_executed"
)

// Bucket reduces a duration in minutes to a coarse label so events never
// carry exact task timings.
func Bucket(minutes float64) string {
	switch {
	case minutes <= 0:
		return "none"
	case minutes < 15:
		return "<15m"
	case minutes < 60:
		return "15-60m"
	case minutes < 240:
		return "1-4h"
	default:
		return ">=4h"
	}
}
