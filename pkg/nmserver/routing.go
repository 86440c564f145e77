package nmserver

import (
	"github.com/docspp/docspp/pkg/ssreg"
	"github.com/docspp/docspp/pkg/wireproto"
)

// adminCmd opens a one-shot connection to rec's admin port, sends cmd,
// and returns its single-line reply, the SS admin port's
// one-command-per-connection contract (pkg/ssadmin).
func adminCmd(rec *ssreg.Record, cmd string) (string, error) {
	conn, err := wireproto.Dial(rec.IP, rec.AdminPort)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	if err := conn.SendLine(cmd); err != nil {
		return "", err
	}
	return conn.RecvLine()
}

// adminCmdBlock is adminCmd for commands whose reply is a header line
// followed by an END-terminated block (FETCH, LISTCHECKPOINTS, SEARCH).
func adminCmdBlock(rec *ssreg.Record, cmd string) (header string, lines []string, err error) {
	conn, err := wireproto.Dial(rec.IP, rec.AdminPort)
	if err != nil {
		return "", nil, err
	}
	defer conn.Close()
	if err := conn.SendLine(cmd); err != nil {
		return "", nil, err
	}
	header, err = conn.RecvLine()
	if err != nil {
		return "", nil, err
	}
	if header != "BEGIN" && header != "CHECKPOINTS:" && header != "SEARCH RESULTS:" {
		return header, nil, nil
	}
	lines, err = conn.RecvBlock()
	return header, lines, err
}

// pickCreateTarget chooses the SS a new CREATE/CREATEFOLDER is assigned
// to: the first active primary, falling back to any active SS.
func (s *Server) pickCreateTarget() (*ssreg.Record, bool) {
	if rec, ok := s.SSReg.FirstActivePrimary(); ok {
		return rec, true
	}
	return s.SSReg.FirstActiveAny()
}
