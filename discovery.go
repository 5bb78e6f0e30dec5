package shadowwire

// DiscoveryEndpoint describes one payable endpoint in the discovery document.
type DiscoveryEndpoint struct {
	Path        string   `json:"path"`
	Method      string   `json:"method"`
	Price       string   `json:"price"`
	Asset       string   `json:"asset"`
	Description string   `json:"description,omitempty"`
	Schemes     []string `json:"schemes"`
}

// DiscoveryDocument is the static capability listing a server publishes.
type DiscoveryDocument struct {
	X402Version int                 `json:"x402Version"`
	Schemes     []string            `json:"schemes"`
	Network     string              `json:"network"`
	Facilitator string              `json:"facilitator,omitempty"`
	Endpoints   []DiscoveryEndpoint `json:"endpoints"`
}

// DiscoveryConfig is the input to BuildDiscoveryDocument.
type DiscoveryConfig struct {
	Network        string
	FacilitatorURL string
	Endpoints      []DiscoveryEndpoint
}

// BuildDiscoveryDocument produces the static discovery document for a
// configuration. It is a pure function: identical input yields a
// structurally identical document, with no timestamp-dependent fields.
// Endpoints that name no schemes inherit the supported scheme.
func BuildDiscoveryDocument(cfg DiscoveryConfig) DiscoveryDocument {
	network := cfg.Network
	if network == "" {
		network = NetworkMainnet
	}

	endpoints := make([]DiscoveryEndpoint, len(cfg.Endpoints))
	for i, ep := range cfg.Endpoints {
		endpoints[i] = ep
		if len(ep.Schemes) == 0 {
			endpoints[i].Schemes = []string{SchemeShadowWire}
		}
	}

	return DiscoveryDocument{
		X402Version: ProtocolVersion,
		Schemes:     []string{SchemeShadowWire},
		Network:     network,
		Facilitator: cfg.FacilitatorURL,
		Endpoints:   endpoints,
	}
}
