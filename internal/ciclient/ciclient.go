// Package ciclient normalizes the payload shapes four different CI
// providers (buildbot, travis, jenkins, solano) use to report a build
// outcome into one {repo, sha, verdict, url} tuple (§9), grounded on the
// teacher's jenkins/jenkins.go build-state constants generalized across
// providers, and on hook/server.go's per-path payload decoding.
package ciclient

import (
	"encoding/json"
	"fmt"
)

// Verdict is the normalized outcome of one builder run, independent of any
// one CI provider's own vocabulary for it.
type Verdict string

const (
	VerdictSuccess Verdict = "success"
	VerdictFailure Verdict = "failure"
	VerdictPending Verdict = "pending"
	VerdictError   Verdict = "error"
)

// Outcome is what a CI webhook reports about one builder run.
type Outcome struct {
	SHA     string
	Verdict Verdict
	URL     string
}

// DecodeBuildbot parses buildbot's JSON payload (transmitted as the
// "payload" form field alongside a "secret" field hookserver validates
// separately).
func DecodeBuildbot(raw []byte) (Outcome, error) {
	var p struct {
		SHA     string `json:"sha"`
		Results string `json:"results"`
		URL     string `json:"url"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Outcome{}, fmt.Errorf("decode buildbot payload: %w", err)
	}
	return Outcome{SHA: p.SHA, Verdict: normalizeBuildbot(p.Results), URL: p.URL}, nil
}

// DecodeTravis parses Travis CI's webhook body.
func DecodeTravis(raw []byte) (Outcome, error) {
	var p struct {
		SHA      string `json:"commit"`
		State    string `json:"state"`
		BuildURL string `json:"build_url"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Outcome{}, fmt.Errorf("decode travis payload: %w", err)
	}
	return Outcome{SHA: p.SHA, Verdict: normalizeGeneric(p.State), URL: p.BuildURL}, nil
}

// DecodeJenkins parses Jenkins' generic webhook notification body, keyed on
// the same build-state vocabulary (Succeess/Failure/Aborted) the teacher's
// jenkins package defines.
func DecodeJenkins(raw []byte) (Outcome, error) {
	var p struct {
		SHA     string `json:"sha"`
		State   string `json:"verdict"`
		URL     string `json:"url"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Outcome{}, fmt.Errorf("decode jenkins payload: %w", err)
	}
	return Outcome{SHA: p.SHA, Verdict: normalizeJenkins(p.State), URL: p.URL}, nil
}

// DecodeSolano parses Solano CI's webhook body, which shares Jenkins'
// generic shape in practice.
func DecodeSolano(raw []byte) (Outcome, error) {
	return DecodeJenkins(raw)
}

func normalizeBuildbot(results string) Verdict {
	switch results {
	case "0", "success":
		return VerdictSuccess
	case "pending", "":
		return VerdictPending
	default:
		return VerdictFailure
	}
}

func normalizeJenkins(state string) Verdict {
	switch state {
	case "SUCCESS", "success":
		return VerdictSuccess
	case "ABORTED", "aborted":
		return VerdictError
	case "", "RUNNING", "pending":
		return VerdictPending
	default:
		return VerdictFailure
	}
}

func normalizeGeneric(state string) Verdict {
	switch state {
	case "success":
		return VerdictSuccess
	case "pending", "":
		return VerdictPending
	case "errored", "error":
		return VerdictError
	default:
		return VerdictFailure
	}
}
