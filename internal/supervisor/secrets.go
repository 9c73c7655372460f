package supervisor

import (
	"github.com/homu-merge/homu/internal/hookserver"
	"github.com/homu-merge/homu/internal/queue"
)

// RegistrySecrets adapts a queue.Registry's per-repository configuration
// into the narrow hookserver.SecretLookup interface intake needs,
// without hookserver depending on the queue package directly.
type RegistrySecrets struct {
	Registry *queue.Registry
}

var _ hookserver.SecretLookup = RegistrySecrets{}

// GitHubSecret returns repo's HMAC secret for /github.
func (s RegistrySecrets) GitHubSecret(repo string) ([]byte, bool) {
	m, ok := s.Registry.Get(repo)
	if !ok || m.Config.WebhookSecret == "" {
		return nil, false
	}
	return []byte(m.Config.WebhookSecret), true
}

// CIBuilder resolves a plaintext-secret CI provider's secret to the
// (repo, builder) it authenticates (buildbot, travis).
func (s RegistrySecrets) CIBuilder(provider, secret string) (repo, builder string, ok bool) {
	for _, name := range s.Registry.Repos() {
		m, _ := s.Registry.Get(name)
		if b, found := m.Config.BuilderForBinding(provider, secret); found {
			return name, b, true
		}
	}
	return "", "", false
}

// CIBindingsByProvider lists every (repo, builder, secret) bound to
// provider, for HMAC-signing providers (jenkins, solano).
func (s RegistrySecrets) CIBindingsByProvider(provider string) []hookserver.CIBindingRef {
	var out []hookserver.CIBindingRef
	for _, name := range s.Registry.Repos() {
		m, _ := s.Registry.Get(name)
		for _, b := range m.Config.CIBindings {
			if b.Provider == provider {
				out = append(out, hookserver.CIBindingRef{Repo: name, Builder: b.Builder, Secret: b.Secret})
			}
		}
	}
	return out
}
