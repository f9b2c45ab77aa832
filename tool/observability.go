package tool

// InvocationObservation captures one dispatch outcome.
type InvocationObservation struct {
	InvocationID string
	ToolName     string
	Cluster      string
	DurationMS   int64
	Success      bool
	Kind         Kind
	Message      string
}

// Observer receives dispatch observability events. Implementations must be
// safe for concurrent use and must not block for long.
type Observer interface {
	ObserveInvocation(observation InvocationObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveInvocation(InvocationObservation) {}

// MultiObserver fans one observation out to several observers.
type MultiObserver []Observer

// ObserveInvocation forwards the observation to every non-nil observer.
func (m MultiObserver) ObserveInvocation(observation InvocationObservation) {
	for _, observer := range m {
		if observer != nil {
			observer.ObserveInvocation(observation)
		}
	}
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(InvocationObservation)

// ObserveInvocation calls f.
func (f ObserverFunc) ObserveInvocation(observation InvocationObservation) {
	f(observation)
}
