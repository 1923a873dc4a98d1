package constants

// ProcessingStatus is the final outcome of a pipeline run for one receipt.
type ProcessingStatus string

// Stable values (serialized verbatim in receipt JSON).
const (
	StatusSuccess        ProcessingStatus = "SUCCESS"         // store and total both found
	StatusPartialSuccess ProcessingStatus = "PARTIAL_SUCCESS" // exactly one of store/total found
	StatusFailed         ProcessingStatus = "FAILED"          // neither found, or extraction failed
)

// AllStatuses returns every status in a stable order.
func AllStatuses() []string {
	return []string{string(StatusSuccess), string(StatusPartialSuccess), string(StatusFailed)}
}
