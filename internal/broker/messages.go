// internal/broker/messages.go
// The broker's own tiny JSON tagged-union vocabulary, deliberately distinct
// from internal/wire's relay protocol: the broker never frames with a
// format byte and never parses application payloads past pairing.
package broker

type Type string

const (
    TypeServerRegister   Type = "server_register"
    TypeServerRegistered Type = "server_registered"
    TypeServerRejected   Type = "server_rejected"
    TypeClientConnect    Type = "client_connect"
    TypeClientConnected  Type = "client_connected"
    TypeClientError      Type = "client_error"
)

type Envelope struct {
    Type Type `json:"type"`
}

type ServerRegisterMsg struct {
    Type      Type   `json:"type"`
    Username  string `json:"username"`
    InstallID string `json:"installId"`
}

type ServerRegisteredMsg struct {
    Type Type `json:"type"`
}

type ServerRejectedMsg struct {
    Type   Type   `json:"type"`
    Reason string `json:"reason"` // invalid_username | username_taken
}

type ClientConnectMsg struct {
    Type     Type   `json:"type"`
    Username string `json:"username"`
}

type ClientConnectedMsg struct {
    Type Type `json:"type"`
}

type ClientErrorMsg struct {
    Type   Type   `json:"type"`
    Reason string `json:"reason"` // unknown_username | server_offline
}
