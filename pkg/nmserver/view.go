package nmserver

import (
	"fmt"
	"strings"

	"github.com/docspp/docspp/internal/istime"
	"github.com/docspp/docspp/pkg/catalog"
	"github.com/docspp/docspp/pkg/wireproto"
)

// handleView answers VIEW/VIEW -a/VIEW -l: "-a" shows every file
// regardless of ACL, "-l" switches to the fixed-width
// Filename/Words/Chars/Last Access Time/Owner table (querying each
// file's SS for live stats), combinable as "-al"/"-la".
func (s *Server) handleView(conn *wireproto.Conn, sess *session, flags string) {
	showAll := strings.ContainsAny(flags, "aA")
	showLong := strings.ContainsAny(flags, "lL")

	var lines []string
	if showLong {
		lines = append(lines,
			"-------------------------------------------------------------------",
			"|  Filename      | Words | Chars | Last Access Time  | Owner   |",
			"|----------------|-------|-------|-------------------|---------|",
		)
	}

	for _, e := range s.Catalog.List() {
		if e.IsFolder {
			continue
		}
		if !showAll && !e.CanRead(sess.user) {
			continue
		}
		if !showLong {
			lines = append(lines, "--> "+e.Filename)
			continue
		}
		_, words, chars := s.ssInfo(e)
		lines = append(lines, fmt.Sprintf("| %-14s | %5d | %5d | %-17s | %-7s |",
			e.Filename, words, chars, istime.FormatMinute(e.LastAccessTime), e.Owner))
	}

	if showLong {
		lines = append(lines, "-------------------------------------------------------------------")
	}

	header := "FILES:"
	if showLong {
		header = lines[0]
		lines = lines[1:]
	}
	_ = conn.SendLine(header)
	_ = conn.SendBlock(lines)
}

// ssInfo queries the active SS bound to e for its current SIZE/WORDS/CHARS,
// returning zeros if no SS is reachable; VIEW -l and INFO's shared stats
// fetch.
func (s *Server) ssInfo(e *catalog.FileEntry) (size, words, chars int) {
	rec, ok := s.SSReg.RouteFor(e.SSIP, e.SSClientPort)
	if !ok {
		return 0, 0, 0
	}
	resp, err := adminCmd(rec, "INFO "+e.Filename)
	if err != nil {
		return 0, 0, 0
	}
	fmt.Sscanf(resp, "SIZE %d WORDS %d CHARS %d", &size, &words, &chars)
	return size, words, chars
}

// handleViewFolder answers VIEWFOLDER <folder>, rendering the folder's
// subtree with box-drawing prefixes: "├── "/"└── " for items,
// "│   "/"    " as the prefix grows for nested folders, folders sorted
// before files and lexicographically within each group
// (catalog.Children already applies that ordering).
func (s *Server) handleViewFolder(conn *wireproto.Conn, folder string) {
	e, ok := s.Catalog.Get(folder)
	if !ok || !e.IsFolder {
		_ = conn.SendLine("ERR folder not found")
		return
	}
	_ = conn.SendLine("Contents of folder:")
	var lines []string
	s.renderFolderTree(folder, "", &lines)
	_ = conn.SendBlock(lines)
}

func (s *Server) renderFolderTree(folder, prefix string, lines *[]string) {
	kids := s.Catalog.Children(folder)
	for i, kid := range kids {
		isLast := i == len(kids)-1
		branch := "├── "
		if isLast {
			branch = "└── "
		}
		name := kid.Filename[strings.LastIndex(kid.Filename, "/")+1:]
		if kid.IsFolder {
			*lines = append(*lines, prefix+branch+"[DIR] "+name)
			childPrefix := prefix + "│   "
			if isLast {
				childPrefix = prefix + "    "
			}
			s.renderFolderTree(kid.Filename, childPrefix, lines)
		} else {
			*lines = append(*lines, prefix+branch+name)
		}
	}
}
