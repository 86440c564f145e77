package nmadmin

import (
	"strings"

	"github.com/docspp/docspp/internal/logger"
	"github.com/docspp/docspp/pkg/ssreg"
	"github.com/docspp/docspp/pkg/wireproto"
)

// recover re-populates rec's storage by FETCHing every file bound to it
// from a source SS and SYNCing it back: find files whose
// (ss_ip, ss_client_port) matches the recovered SS, prefer a direct
// replica as the source, else any other active SS.
func (s *Server) recover(rec *ssreg.Record) {
	var targets []string
	for _, e := range s.Catalog.List() {
		if e.SSIP == rec.IP && e.SSClientPort == rec.ClientPort {
			targets = append(targets, e.Filename)
		}
	}

	source, ok := s.recoverySource(rec)
	synced := 0
	if ok {
		for _, fname := range targets {
			if syncFile(source, rec, fname) {
				synced++
			}
		}
	}
	logger.Info("NM SS recovered", logger.Op("SS_RECOVERY"), logger.SSID(rec.SSID), logger.Count(synced))
}

// recoverySource picks the SS to FETCH from: a direct active replica of
// rec, else any other active SS.
func (s *Server) recoverySource(rec *ssreg.Record) (*ssreg.Record, bool) {
	if replicas := s.SSReg.ReplicasOf(rec.SSID); len(replicas) > 0 {
		return replicas[0], true
	}
	for _, other := range s.SSReg.Active() {
		if other.SSID != rec.SSID {
			return other, true
		}
	}
	return nil, false
}

func syncFile(source, dest *ssreg.Record, fname string) bool {
	fetchConn, err := wireproto.Dial(source.IP, source.AdminPort)
	if err != nil {
		return false
	}
	defer fetchConn.Close()
	if err := fetchConn.SendLine("FETCH " + fname); err != nil {
		return false
	}
	header, err := fetchConn.RecvLine()
	if err != nil || header != "BEGIN" {
		return false
	}
	lines, err := fetchConn.RecvBlock()
	if err != nil {
		return false
	}
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, "L ")
	}
	content := strings.Join(lines, "\n")

	syncConn, err := wireproto.Dial(dest.IP, dest.AdminPort)
	if err != nil {
		return false
	}
	defer syncConn.Close()
	if err := syncConn.SendLine("SYNC " + fname); err != nil {
		return false
	}
	ack, err := syncConn.RecvLine()
	if err != nil || !strings.HasPrefix(ack, "OK") {
		return false
	}
	if err := syncConn.SendBlock(strings.Split(content, "\n")); err != nil {
		return false
	}
	_, _ = syncConn.RecvLine()
	return true
}
