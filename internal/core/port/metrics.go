package port

// AuthMetrics records authentication outcomes.
type AuthMetrics interface {
	ObserveLogin(outcome string)
	ObserveTokenIssued(kind string)
	ObserveVerification(outcome string)
	ObserveMailDispatch(outcome string)
}

// NopAuthMetrics discards all observations.
type NopAuthMetrics struct{}

func (NopAuthMetrics) ObserveLogin(string)        {}
func (NopAuthMetrics) ObserveTokenIssued(string)  {}
func (NopAuthMetrics) ObserveVerification(string) {}
func (NopAuthMetrics) ObserveMailDispatch(string) {}
