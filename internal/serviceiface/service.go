package serviceiface

// Service is a long-running component the app manager starts and stops.
// Start must not block.
type Service interface {
	Name() string
	Start() error
	Stop() error
}
