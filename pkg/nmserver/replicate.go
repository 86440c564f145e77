package nmserver

import (
	"github.com/docspp/docspp/internal/logger"
)

// replicateAsync fires cmd (a CREATE or CREATEFOLDER line) at every
// active replica of primaryID without waiting for a reply; replication
// is best-effort and eventual.
func (s *Server) replicateAsync(primaryID, cmd string) {
	for _, rec := range s.SSReg.ReplicasOf(primaryID) {
		rec := rec
		go func() {
			if _, err := adminCmd(rec, cmd); err != nil {
				logger.Info("NM replication failed", logger.Op("REPLICATE"), logger.SSID(rec.SSID), logger.Err(err))
			}
		}()
	}
}
