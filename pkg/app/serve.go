package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/flemzord/crongen/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

// NewServer builds the preview server for the schedule described by p.
// Requests compile the schedule afresh and are not recorded in History.
func NewServer(p Params) *server.Server {
	p = p.withDefaults()
	p.History = nil

	var gatherer prometheus.Gatherer
	if p.Metrics != nil {
		gatherer = p.Metrics.Registry()
	}
	return server.New(server.Options{
		Config:     p.Config.Serve,
		Compiler:   compiler{p: p},
		Gatherer:   gatherer,
		StatusCode: StatusCode,
		Logger:     p.Logger,
	})
}

// StatusCode maps a compile error to an HTTP status: 422 for definition and
// resolution failures, 500 otherwise.
func StatusCode(err error) int {
	var ae *Error
	if errors.As(err, &ae) && (ae.Kind == KindDefinition || ae.Kind == KindResolution) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

type compiler struct {
	p Params
}

func (c compiler) Cron(ctx context.Context) (string, error) {
	return Cron(ctx, c.p)
}

func (c compiler) YAML(ctx context.Context) ([]byte, error) {
	return YAMLDocument(ctx, c.p)
}
