package nmadmin

import (
	"context"
	"time"

	"github.com/docspp/docspp/internal/logger"
	"github.com/docspp/docspp/pkg/ssreg"
)

// RunFailureDetector drives SSReg's failure sweep, logging each newly
// failed SS the way check_ss_failures's log_write/printf pair does. It
// blocks until ctx is cancelled; callers run it in its own goroutine.
func (s *Server) RunFailureDetector(ctx context.Context, interval, deadline time.Duration) {
	s.SSReg.RunFailureDetector(ctx, interval, deadline, func(rec *ssreg.Record) {
		logger.Warn("SS marked as failed", logger.Op("SS_FAILURE"), logger.SSID(rec.SSID))
	})
}
