package api

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/International-Combat-Archery-Alliance/guest-registration/config"
	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/International-Combat-Archery-Alliance/guest-registration/registration"
	"github.com/International-Combat-Archery-Alliance/guest-registration/sessionstore"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed openapi.yaml
var openapiSpec []byte

// GetSwagger parses the embedded OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}

	if err := swagger.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("openapi spec is invalid: %w", err)
	}

	return swagger, nil
}

type Machine interface {
	SubmitFields(ctx context.Context, session registration.Session, fields registration.Fields) (registration.Session, error)
	SubmitCode(ctx context.Context, session registration.Session, code string) (registration.Session, error)
	Reset(session registration.Session) registration.Session
}

var _ Machine = &registration.Machine{}

type API struct {
	machine  Machine
	sessions sessionstore.Repository
	guests   guests.Store
	logger   *slog.Logger
	env      config.Environment

	allowedOrigins []string
	locks          *sessionLocks
}

func NewAPI(machine Machine, sessions sessionstore.Repository, guestStore guests.Store, logger *slog.Logger, env config.Environment, allowedOrigins []string) *API {
	return &API{
		machine:        machine,
		sessions:       sessions,
		guests:         guestStore,
		logger:         logger,
		env:            env,
		allowedOrigins: allowedOrigins,
		locks:          newSessionLocks(),
	}
}

func (a *API) routes() *http.ServeMux {
	r := http.NewServeMux()

	r.HandleFunc("POST /registrations", a.PostRegistrations)
	r.HandleFunc("GET /registrations/{id}", a.GetRegistrationsId)
	r.HandleFunc("POST /registrations/{id}/fields", a.PostRegistrationsIdFields)
	r.HandleFunc("POST /registrations/{id}/code", a.PostRegistrationsIdCode)
	r.HandleFunc("POST /registrations/{id}/reset", a.PostRegistrationsIdReset)
	r.HandleFunc("GET /guests", a.GetGuests)
	r.HandleFunc("GET /guests/export", a.GetGuestsExport)

	return r
}

// Handler serves the API routes behind request validation, and the metrics
// from gatherer on /metrics.
func (a *API) Handler(gatherer prometheus.Gatherer) (http.Handler, error) {
	swagger, err := GetSwagger()
	if err != nil {
		return nil, err
	}

	// Request validation matches on path only, whatever host we are served from.
	swagger.Servers = nil

	root := http.NewServeMux()
	root.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	root.Handle("/", a.openapiValidateMiddleware(swagger)(a.routes()))

	return useMiddlewares(
		root,
		a.loggingMiddleware(),
		a.requestIdMiddleware(),
		a.corsMiddleware(),
	), nil
}
