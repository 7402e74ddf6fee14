package entrycache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// An entry was found stale on read and deleted.
	// reason ∈ {"ttl", "dependency"}
	EntryExpired(identifier, reason string)

	// A backend returned an error. op ∈ {"read", "write", "remove", "remove_all", "read_many"}.
	BackendFailure(op, identifier string, err error)

	// Call missed and is about to run the compute function.
	ComputeOnMiss(identifier string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) EntryExpired(string, string)          {}
func (NopHooks) BackendFailure(string, string, error) {}
func (NopHooks) ComputeOnMiss(string)                 {}
