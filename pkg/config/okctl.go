package config

// Okctl is the runner context for okctl-mcp. The kubeconfig is ambient, so
// only the shared settings apply.
type Okctl struct {
	Server
}

func LoadOkctl() Okctl {
	return Okctl{Server: loadServer()}
}
