package telemetry

// TrackResponse is the ingestion endpoint's reply to a batch.
type TrackResponse struct {
	ItemsReceived int          `json:"itemsReceived"`
	ItemsAccepted int          `json:"itemsAccepted"`
	Errors        []TrackError `json:"errors"`
}

// TrackError describes one rejected envelope by its position in the batch.
type TrackError struct {
	Index      int    `json:"index"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Retriable reports whether a status means the item may be sent again.
func Retriable(status int) bool {
	switch status {
	case 408, 429, 500, 503:
		return true
	}
	return false
}
