package main

import (
	"os"

	"github.com/ligustah/turbodl/internal/progress"
	"github.com/ligustah/turbodl/pkg/turbodl"
)

// newSession builds a turbodl.Session for cfg, subscribing a terminal
// progress reporter when withProgress is set.
func newSession(cfg turbodl.Config, withProgress bool) (*turbodl.Session, error) {
	if !withProgress {
		return turbodl.New(cfg)
	}
	reporter := progress.NewReporter(os.Stderr, 0)
	return turbodl.New(cfg, reporter)
}
