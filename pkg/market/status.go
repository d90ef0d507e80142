package market

// Connection is the readiness of the storage node as shown on the landing view.
type Connection string

const (
	ConnectionLoading      Connection = "loading"
	ConnectionConnected    Connection = "connected"
	ConnectionDisconnected Connection = "disconnected"
)

// ConnectionState derives the landing view state. While the node has neither failed nor
// become ready it is still loading.
func ConnectionState(initFailed, ready, connected bool) Connection {
	if !initFailed && !ready {
		return ConnectionLoading
	}
	if connected {
		return ConnectionConnected
	}
	return ConnectionDisconnected
}
