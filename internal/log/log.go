// Package log wraps gopkg.in/op/go-logging.v1 behind a Backend that is
// constructed once per process and handed explicitly into every component's
// constructor: no package-level logger globals anywhere in Selium.
package log

import (
	"fmt"
	"io"
	"os"

	logging "gopkg.in/op/go-logging.v1"
)

// Backend owns the go-logging backend configuration and mints named
// *logging.Logger instances for callers.
type Backend struct {
	level    logging.Level
	disabled bool
}

// New constructs a Backend writing to stderr at the given level ("DEBUG",
// "INFO", "NOTICE", "WARNING", "ERROR", "CRITICAL"). An empty level defaults
// to "NOTICE". If disable is true, GetLogger returns loggers with output
// suppressed.
func New(level string, disable bool) (*Backend, error) {
	if level == "" {
		level = "NOTICE"
	}
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log: invalid level %q: %w", level, err)
	}

	fmtr := logging.MustStringFormatter(
		`%{time:2006-01-02 15:04:05.000} %{level:.4s} %{module}: %{message}`,
	)
	var out io.Writer = os.Stderr
	if disable {
		out = io.Discard
	}
	backend := logging.NewLogBackend(out, "", 0)
	formatted := logging.NewBackendFormatter(backend, fmtr)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)

	return &Backend{level: lvl, disabled: disable}, nil
}

// GetLogger returns a named logger. Loggers sharing a Backend all honor the
// same level and enable/disable setting.
func (b *Backend) GetLogger(name string) *logging.Logger {
	l := logging.MustGetLogger(name)
	if b.disabled {
		logging.SetLevel(logging.CRITICAL, name)
	} else {
		logging.SetLevel(b.level, name)
	}
	return l
}
