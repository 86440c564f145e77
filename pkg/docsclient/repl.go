package docsclient

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

var replCommands = []string{
	"LOGIN", "VIEW", "VIEW -a", "VIEW -l", "CREATE", "CREATEFOLDER",
	"READ", "WRITE", "STREAM", "EXEC", "INFO", "DELETE", "UNDO",
	"ADDACCESS", "REMACCESS", "CHECKPOINT", "VIEWCHECKPOINT", "REVERT",
	"LISTCHECKPOINTS", "MOVE", "VIEWFOLDER", "LIST", "REQUESTACCESS",
	"APPROVE_REQUEST", "LISTREQUESTS", "SEARCH", "QUIT",
}

// HistoryPath returns the REPL history file location.
func HistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".docspp_history")
}

// REPL drives the interactive command loop: prompt, send to NM, print
// the reply, with READ/STREAM/WRITE taking a direct SS hop.
type REPL struct {
	sess  *Session
	liner *liner.State
	stdin *bufio.Reader
}

// NewREPL builds a REPL bound to an already-dialed, already-logged-in
// session.
func NewREPL(sess *Session) *REPL {
	return &REPL{sess: sess, stdin: bufio.NewReader(os.Stdin)}
}

func (r *REPL) completer(line string) []string {
	var matches []string
	upper := strings.ToUpper(line)
	for _, cmd := range replCommands {
		if strings.HasPrefix(cmd, upper) {
			matches = append(matches, cmd)
		}
	}
	return matches
}

func (r *REPL) saveHistory() {
	path := HistoryPath()
	if path == "" {
		return
	}
	if f, err := os.Create(path); err == nil {
		_, _ = r.liner.WriteHistory(f)
		f.Close()
	}
}

// Run starts the prompt loop and blocks until QUIT, EOF, or Ctrl-C.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(HistoryPath()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		f.Close()
	}

	for {
		line, err := r.liner.Prompt("> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println()
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		quit, err := r.dispatch(line)
		if err != nil {
			fmt.Printf("ERR: %v\n", err)
			continue
		}
		if quit {
			break
		}
	}

	r.saveHistory()
	return nil
}
