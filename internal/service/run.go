package service

import (
	"log/slog"

	"github.com/efreitasn/dexfuzz/internal/sim"
)

// RunService executes simulation runs on behalf of the handler layer,
// applying configured defaults.
type RunService struct {
	defaultVerbosity int
	forceCrank       bool
	logger           *slog.Logger
}

// NewRunService creates a RunService with the given defaults.
func NewRunService(defaultVerbosity int, forceCrank bool, logger *slog.Logger) *RunService {
	return &RunService{
		defaultVerbosity: defaultVerbosity,
		forceCrank:       forceCrank,
		logger:           logger,
	}
}

// Execute runs one byte stream through the harness. verbosity overrides
// the configured default when non-nil.
func (s *RunService) Execute(data []byte, verbosity *int) (*sim.Report, error) {
	v := s.defaultVerbosity
	if verbosity != nil {
		v = *verbosity
	}
	return sim.Run(data, sim.Options{
		Verbosity:  v,
		ForceCrank: s.forceCrank,
		Logger:     s.logger,
	})
}
