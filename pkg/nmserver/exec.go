package nmserver

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// execSafeCmds is the EXEC allow-list: only these leading command tokens
// may appear in a script fetched via EXEC.
var execSafeCmds = map[string]bool{
	"echo": true,
	"ls":   true,
	"pwd":  true,
	"dir":  true,
	"type": true,
}

// execCommandAllowed reports whether every non-blank, non-comment line
// of script begins with an allow-listed command, case-insensitively.
// With allowAll set it returns true without inspecting the script.
func execCommandAllowed(script string, allowAll bool) bool {
	if allowAll {
		return true
	}
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd := line
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			cmd = line[:i]
		}
		if !execSafeCmds[strings.ToLower(cmd)] {
			return false
		}
	}
	return true
}

// runExecScript runs script through /bin/sh and returns its combined
// stdout/stderr split into lines. It is only ever reached after
// execCommandAllowed has approved the script (every line cleared against
// the allow-list above, unless the allow-all override is on).
func runExecScript(ctx context.Context, script string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", script)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	_ = cmd.Run() // whatever the script printed is sent regardless of exit status

	var lines []string
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, nil
}
