package http_test

import (
	"io"
	"log/slog"

	"github.com/aretw0/tollgate/pkg/ports"
)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func portsModel(fn ports.ModelFunc) ports.Model {
	return fn
}
