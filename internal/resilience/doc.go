/*
Package resilience provides the circuit breaker that guards the ingestion
endpoint.

When the endpoint keeps failing, the breaker opens and the transport stage
stops posting batches until the timeout elapses; a limited number of trial
requests then decide whether it closes again.

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open

# Usage

	breaker := resilience.New("ingestion", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})

	resp, err := resilience.Execute(breaker, func() (*resty.Response, error) {
		return req.Post(url)
	})
*/
package resilience
