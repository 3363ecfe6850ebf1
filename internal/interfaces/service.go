package interfaces

// Service is implemented by every interface the daemon exposes to its
// clients.
type Service interface {
	Start() error
	Stop()
}
