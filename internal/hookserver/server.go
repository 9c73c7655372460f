// Package hookserver is the webhook intake surface (§4.5): it validates
// inbound requests from the host and every configured CI provider, converts
// them into normalized event.Event records, and dispatches them onto the
// target repository's supervisor queue. Intake is stateless and safe to run
// on any number of concurrent handler goroutines (§5), grounded on the
// teacher's hook.Server but generalized from GitHub-only to the multi-CI
// surface §6 describes.
package hookserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/homu-merge/homu/internal/ciclient"
	"github.com/homu-merge/homu/internal/event"
)

// dedupeTTL bounds how long a delivery GUID is remembered for retry
// detection (§4.5 EXPANSION).
const dedupeTTL = 10 * time.Minute

// Server implements http.Handler via its Router method. It validates
// incoming webhooks and hands normalized events to a Dispatcher.
type Server struct {
	Secrets    SecretLookup
	Dispatcher Dispatcher
	Metrics    *Metrics

	dedupeMu sync.Mutex
	dedupe   map[string]*dedupeSet
}

// NewServer constructs a Server ready to be routed.
func NewServer(secrets SecretLookup, dispatcher Dispatcher, metrics *Metrics) *Server {
	return &Server{
		Secrets:    secrets,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		dedupe:     make(map[string]*dedupeSet),
	}
}

// Router builds the gorilla/mux router serving every path §6 lists.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/github", s.handleGitHub).Methods(http.MethodPost)
	r.HandleFunc("/buildbot", s.handleBuildbot).Methods(http.MethodPost)
	r.HandleFunc("/travis", s.handleTravis).Methods(http.MethodPost)
	r.HandleFunc("/jenkins", s.handleHMACProvider("jenkins")).Methods(http.MethodPost)
	r.HandleFunc("/solano", s.handleHMACProvider("solano")).Methods(http.MethodPost)
	r.HandleFunc("/callback", s.handleCallback).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleCallback absorbs the host's OAuth redirect. OAuth token exchange
// itself is out of core scope (§1); this endpoint exists so the route is
// routable and returns a stable response rather than a router 404.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

func (s *Server) handleGitHub(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	l := logrus.WithField("path", "/github")

	eventType := r.Header.Get("X-GitHub-Event")
	deliveryGUID := r.Header.Get("X-GitHub-Delivery")
	sig := r.Header.Get("X-Hub-Signature")
	if eventType == "" || deliveryGUID == "" || sig == "" {
		s.reject(w, "/github", "missing_headers", http.StatusBadRequest, "missing required GitHub headers")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
		return
	}

	// The repo-specific secret is not known until the payload itself is
	// parsed for its repo field, so a first pass peeks at just that field.
	var peek struct {
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		s.reject(w, "/github", "bad_payload", http.StatusBadRequest, "could not parse payload")
		return
	}

	secret, ok := s.Secrets.GitHubSecret(peek.Repository.FullName)
	if !ok || !validateHMACSHA1(body, sig, secret) {
		s.reject(w, "/github", "bad_signature", http.StatusBadRequest, "invalid X-Hub-Signature")
		return
	}

	if s.dedupeFor(peek.Repository.FullName).seenBefore(deliveryGUID) {
		s.Metrics.DedupeCounter.WithLabelValues("/github").Inc()
		fmt.Fprint(w, "duplicate delivery, ignored")
		return
	}

	ev, err := decodeGitHubEvent(eventType, deliveryGUID, body)
	if err != nil {
		l.WithError(err).Warn("failed to decode github event")
		s.reject(w, "/github", "decode_error", http.StatusBadRequest, err.Error())
		return
	}
	fmt.Fprint(w, "Event received. Have a nice day.")
	if ev == nil {
		return
	}
	s.dispatch(r, l, *ev)
}

func (s *Server) handleBuildbot(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	l := logrus.WithField("path", "/buildbot")

	if err := r.ParseForm(); err != nil {
		s.reject(w, "/buildbot", "bad_form", http.StatusBadRequest, "could not parse form body")
		return
	}
	secret := r.PostFormValue("secret")
	repo, builder, ok := s.Secrets.CIBuilder("buildbot", secret)
	if !ok {
		s.reject(w, "/buildbot", "bad_secret", http.StatusBadRequest, "unrecognized buildbot secret")
		return
	}

	outcome, err := ciclient.DecodeBuildbot([]byte(r.PostFormValue("payload")))
	if err != nil {
		s.reject(w, "/buildbot", "bad_payload", http.StatusBadRequest, "could not parse payload field")
		return
	}

	ev := event.Event{
		Repo: repo,
		Kind: event.BuildStatus,
		Build: &event.BuildStatusPayload{
			Builder: builder,
			SHA:     outcome.SHA,
			Verdict: string(outcome.Verdict),
			URL:     outcome.URL,
		},
	}
	fmt.Fprint(w, "ok")
	s.dispatch(r, l, ev)
}

func (s *Server) handleTravis(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	l := logrus.WithField("path", "/travis")

	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	repo, builder, ok := s.Secrets.CIBuilder("travis", token)
	if !ok {
		s.reject(w, "/travis", "bad_token", http.StatusBadRequest, "unrecognized travis token")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
		return
	}
	outcome, err := ciclient.DecodeTravis(body)
	if err != nil {
		s.reject(w, "/travis", "bad_payload", http.StatusBadRequest, "could not parse travis payload")
		return
	}

	ev := event.Event{
		Repo: repo,
		Kind: event.BuildStatus,
		Build: &event.BuildStatusPayload{
			Builder: builder,
			SHA:     outcome.SHA,
			Verdict: string(outcome.Verdict),
			URL:     outcome.URL,
		},
	}
	fmt.Fprint(w, "ok")
	s.dispatch(r, l, ev)
}

// handleHMACProvider builds a handler for a CI provider that authenticates
// by signing its body rather than transmitting a plaintext secret. Since the
// repo isn't known up front, every (repo, builder, secret) bound to provider
// is tried until one validates the signature.
func (s *Server) handleHMACProvider(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		l := logrus.WithField("path", "/"+provider)

		sig := r.Header.Get("X-Signature")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
			return
		}

		var repo, builder string
		var matched bool
		for _, b := range s.Secrets.CIBindingsByProvider(provider) {
			if validateHMACSHA1(body, sig, []byte(b.Secret)) {
				repo, builder, matched = b.Repo, b.Builder, true
				break
			}
		}
		if !matched {
			s.reject(w, "/"+provider, "bad_signature", http.StatusBadRequest, "no bound secret matched signature")
			return
		}

		decode := ciclient.DecodeJenkins
		if provider == "solano" {
			decode = ciclient.DecodeSolano
		}
		outcome, err := decode(body)
		if err != nil {
			s.reject(w, "/"+provider, "bad_payload", http.StatusBadRequest, "could not parse payload")
			return
		}

		ev := event.Event{
			Repo: repo,
			Kind: event.BuildStatus,
			Build: &event.BuildStatusPayload{
				Builder: builder,
				SHA:     outcome.SHA,
				Verdict: string(outcome.Verdict),
				URL:     outcome.URL,
			},
		}
		fmt.Fprint(w, "ok")
		s.dispatch(r, l, ev)
	}
}

func (s *Server) dispatch(r *http.Request, l *logrus.Entry, ev event.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	s.Metrics.WebhookCounter.WithLabelValues(string(ev.Kind)).Inc()
	if err := s.Dispatcher.Dispatch(r.Context(), ev); err != nil {
		l.WithError(err).WithField("repo", ev.Repo).Error("failed to dispatch event")
	}
}

func (s *Server) reject(w http.ResponseWriter, path, reason string, status int, msg string) {
	s.Metrics.RejectCounter.WithLabelValues(path, reason).Inc()
	http.Error(w, msg, status)
}

func (s *Server) dedupeFor(repo string) *dedupeSet {
	s.dedupeMu.Lock()
	defer s.dedupeMu.Unlock()
	if d, ok := s.dedupe[repo]; ok {
		return d
	}
	d := newDedupeSet(dedupeTTL)
	s.dedupe[repo] = d
	return d
}
