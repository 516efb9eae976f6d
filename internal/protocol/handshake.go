package protocol

// Protocol version bounds this client speaks. The gateway negotiates a
// version within [MinProtocol, MaxProtocol] or rejects the handshake.
const (
	MinProtocol = 1
	MaxProtocol = 3
)

// Roles a client may request during the connect handshake.
const (
	// RoleOperator is an interactive user client (chat front-end).
	RoleOperator = "operator"

	// RoleNode is a headless worker client.
	RoleNode = "node"
)

// ConnectParams is the payload of the connect handshake request.
type ConnectParams struct {
	// MinProtocol and MaxProtocol bound the protocol versions the client
	// can speak. The gateway picks one or rejects the connect.
	MinProtocol int `json:"minProtocol"`
	MaxProtocol int `json:"maxProtocol"`

	// Client identifies this client build to the gateway.
	Client ClientInfo `json:"client"`

	// Role is RoleOperator or RoleNode.
	Role string `json:"role"`

	// Scopes lists the capabilities the client requests.
	Scopes []string `json:"scopes"`

	// Caps lists optional protocol capabilities the client understands.
	Caps []string `json:"caps,omitempty"`

	// Auth carries credentials. Omitted when the gateway does not
	// require authentication.
	Auth *AuthParams `json:"auth,omitempty"`

	// Device carries a signed device identity for device-token auth.
	Device *DeviceParams `json:"device,omitempty"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
	Mode        string `json:"mode"`
	DisplayName string `json:"displayName,omitempty"`
}

// AuthParams carries one of the supported credential kinds. Exactly one
// field should be set.
type AuthParams struct {
	Token       string `json:"token,omitempty"`
	Password    string `json:"password,omitempty"`
	DeviceToken string `json:"deviceToken,omitempty"`
}

// DeviceParams is a signed device identity. The signature covers the
// device id, nonce, and signing timestamp so the gateway can reject
// replays.
type DeviceParams struct {
	// ID is the stable device identifier.
	ID string `json:"id"`

	// PublicKey is the base64-encoded ed25519 public key.
	PublicKey string `json:"publicKey"`

	// Signature is the base64-encoded signature over "id|nonce|signedAt".
	Signature string `json:"signature"`

	// SignedAt is the RFC3339 timestamp the signature was produced.
	SignedAt string `json:"signedAt"`

	// Nonce is the gateway-issued challenge nonce, when one was offered
	// via the connect.challenge event.
	Nonce string `json:"nonce,omitempty"`
}

// HelloOK is the payload of a successful connect response.
type HelloOK struct {
	// Type is always "hello-ok".
	Type string `json:"type"`

	// Protocol is the negotiated protocol version.
	Protocol int `json:"protocol"`

	// Server optionally describes the gateway build.
	Server *ServerInfo `json:"server,omitempty"`

	// Features lists capability flags the gateway supports.
	Features []string `json:"features,omitempty"`

	// Snapshot is the authoritative state snapshot at connect time.
	Snapshot *Snapshot `json:"snapshot,omitempty"`

	// Auth is returned when the gateway minted or refreshed a device
	// token during the handshake.
	Auth *HelloAuth `json:"auth,omitempty"`

	// Policy carries connection policy the client must honor.
	Policy HelloPolicy `json:"policy"`
}

// ServerInfo describes the gateway build.
type ServerInfo struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// Snapshot is the gateway's authoritative view delivered at connect.
type Snapshot struct {
	// Presence lists currently connected peers.
	Presence []PresenceEntry `json:"presence,omitempty"`

	// Health is the gateway's own health summary.
	Health string `json:"health,omitempty"`

	// StateVersions maps named state streams to their current versions,
	// letting the client detect missed updates after a reconnect.
	StateVersions map[string]int64 `json:"stateVersions,omitempty"`
}

// PresenceEntry is one connected peer in the snapshot.
type PresenceEntry struct {
	ClientID string `json:"clientId"`
	Role     string `json:"role"`
	Since    int64  `json:"since,omitempty"`
}

// HelloAuth carries credentials minted during the handshake.
type HelloAuth struct {
	DeviceToken string   `json:"deviceToken"`
	Role        string   `json:"role"`
	Scopes      []string `json:"scopes"`
}

// HelloPolicy is connection policy from the gateway.
type HelloPolicy struct {
	// TickIntervalMs is the keepalive tick interval the gateway will use.
	// The client treats a silent connection longer than a few ticks as
	// suspect.
	TickIntervalMs int `json:"tickIntervalMs"`
}

// HelloOKType is the expected HelloOK.Type value.
const HelloOKType = "hello-ok"

// ConnectChallenge is the payload of the connect.challenge event. The
// gateway sends it mid-handshake when it wants a signed device identity;
// the client signs the nonce and repeats the connect request.
type ConnectChallenge struct {
	Nonce string `json:"nonce"`
}
