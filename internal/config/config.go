// Package config loads Homu's launcher configuration from the external
// TOML file §6 describes. It is explicitly out of core scope (§1: "the
// command-line launcher and configuration file loader" is an external
// collaborator) — this package exists only so cmd/homu has somewhere to
// turn a file on disk into the queue.RepoConfig values the core actually
// consumes, grounded on the teacher's config.Agent read-only snapshot
// pattern (config/config.go) but loaded once at startup rather than
// watched, since Homu's repo list changing is an operational event, not a
// steady-state one.
package config

import (
	"fmt"
	"time"

	"github.com/pelletier/go-toml"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/homu-merge/homu/internal/queue"
)

// Server holds the process-wide options (§6: host credentials, listen
// port, storage path).
type Server struct {
	Port                string `toml:"port"`
	SqlitePath          string `toml:"sqlite_path"`
	GitHubToken         string `toml:"github_token"`
	GitHubRatePerSecond float64 `toml:"github_rate_per_second"`
	GitHubRateBurst     int     `toml:"github_rate_burst"`
}

// ciBinding mirrors queue.CIBinding's TOML shape.
type ciBinding struct {
	Builder  string `toml:"builder"`
	Provider string `toml:"provider"`
	Secret   string `toml:"secret"`
}

// repo mirrors queue.RepoConfig's TOML shape (§6 "per-repo..." table).
type repo struct {
	Name                  string      `toml:"name"`
	Reviewers             []string    `toml:"reviewers"`
	Admins                []string    `toml:"admins"`
	RequiredBuilders      []string    `toml:"required_builders"`
	CIBindings            []ciBinding `toml:"ci_binding"`
	IntegrationBranch     string      `toml:"integration_branch"`
	ProtectedBranch       string      `toml:"protected_branch"`
	RollupCap             int         `toml:"rollup_cap"`
	BisectOnRollupFailure bool        `toml:"bisect_on_rollup_failure"`
	TriggerToken          string      `toml:"trigger_token"`
	WebhookSecret         string      `toml:"webhook_secret"`
	SyncPeriod            string      `toml:"sync_period"`
}

// file is the root of the TOML document.
type file struct {
	Server Server `toml:"server"`
	Repos  []repo `toml:"repo"`
}

// Config is the parsed, validated launcher configuration.
type Config struct {
	Server Server
	Repos  []queue.RepoConfig
}

// Load reads and parses path into a Config, converting every [[repo]]
// table into a queue.RepoConfig ready for supervisor.Manager.AddRepo.
func Load(path string) (*Config, error) {
	var f file
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := tree.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := &Config{Server: f.Server}
	for _, r := range f.Repos {
		rc, err := r.toRepoConfig()
		if err != nil {
			return nil, fmt.Errorf("repo %q: %w", r.Name, err)
		}
		cfg.Repos = append(cfg.Repos, rc)
	}
	return cfg, nil
}

func (r repo) toRepoConfig() (queue.RepoConfig, error) {
	if r.Name == "" {
		return queue.RepoConfig{}, fmt.Errorf("missing repo name")
	}
	period := time.Duration(0)
	if r.SyncPeriod != "" {
		d, err := time.ParseDuration(r.SyncPeriod)
		if err != nil {
			return queue.RepoConfig{}, fmt.Errorf("sync_period: %w", err)
		}
		period = d
	}

	rollupCap := r.RollupCap
	if rollupCap <= 0 {
		rollupCap = 1
	}

	bindings := make([]queue.CIBinding, 0, len(r.CIBindings))
	for _, b := range r.CIBindings {
		bindings = append(bindings, queue.CIBinding{Builder: b.Builder, Provider: b.Provider, Secret: b.Secret})
	}

	return queue.RepoConfig{
		Repo:                  r.Name,
		Reviewers:             sets.NewString(r.Reviewers...),
		Admins:                sets.NewString(r.Admins...),
		RequiredBuilders:      sets.NewString(r.RequiredBuilders...),
		CIBindings:            bindings,
		IntegrationBranch:     orDefault(r.IntegrationBranch, "auto"),
		ProtectedBranch:       orDefault(r.ProtectedBranch, "master"),
		RollupCap:             rollupCap,
		BisectOnRollupFailure: r.BisectOnRollupFailure,
		TriggerToken:          orDefault(r.TriggerToken, "@bot"),
		SyncPeriod:            period,
		WebhookSecret:         r.WebhookSecret,
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
