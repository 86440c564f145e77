package docsclient

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docspp/docspp/pkg/wireproto"
)

// dispatch sends line to the NM and drives whatever reply protocol that
// command entails: a direct SS hop for READ/STREAM/WRITE, streamed
// output for EXEC, and a terminator-driven print loop for the rest.
func (r *REPL) dispatch(line string) (quit bool, err error) {
	if err := r.sess.NM.SendLine(line); err != nil {
		return false, err
	}

	switch {
	case strings.HasPrefix(line, "READ ") || strings.HasPrefix(line, "STREAM "):
		return false, r.readOrStream(line)
	case strings.HasPrefix(line, "WRITE "):
		return false, r.writeFlow(line)
	case strings.HasPrefix(line, "EXEC "):
		return false, r.execFlow()
	default:
		return r.genericFlow(line)
	}
}

// readOrStream handles the NM's "SS ip port" hop: connect to the SS
// directly, replay the command there, then render its reply: full
// content for READ, word-by-word for STREAM.
func (r *REPL) readOrStream(line string) error {
	resp, err := r.sess.NM.RecvLine()
	if err != nil {
		fmt.Println("<no response>")
		return nil
	}
	if strings.HasPrefix(resp, "ERR") {
		fmt.Println(resp)
		return nil
	}
	if !strings.HasPrefix(resp, "SS ") {
		fmt.Println(resp)
		return nil
	}

	fields := strings.Fields(strings.TrimPrefix(resp, "SS "))
	if len(fields) < 2 {
		fmt.Println("ERR: malformed SS redirect")
		return nil
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Println("ERR: malformed SS redirect")
		return nil
	}
	ssConn, err := wireproto.Dial(fields[0], port)
	if err != nil {
		fmt.Println("ERR: cannot connect to SS")
		return nil
	}
	defer func() {
		_ = ssConn.SendLine("QUIT")
		_, _ = ssConn.RecvLine()
		ssConn.Close()
	}()

	if _, err := ssConn.RecvLine(); err != nil {
		return nil
	}
	if err := ssConn.SendLine(line); err != nil {
		fmt.Println("ERR: cannot reach SS")
		return nil
	}
	ssResp, err := ssConn.RecvLine()
	if err != nil {
		fmt.Println("ERR: no response from SS")
		return nil
	}
	if !strings.HasPrefix(ssResp, "OK") {
		fmt.Println(ssResp)
		return nil
	}

	if strings.HasPrefix(line, "READ ") {
		for {
			content, err := ssConn.RecvLine()
			if err != nil || content == "END" {
				break
			}
			fmt.Println(content)
		}
		return nil
	}

	for {
		word, err := ssConn.RecvLine()
		if err != nil || word == "STOP" || word == "END" {
			break
		}
		fmt.Print(word + " ")
	}
	fmt.Println()
	return nil
}

// writeFlow implements the interactive sentence editor: ask the NM for
// the owning SS, WRITE_BEGIN to lock the sentence, stream
// "<word_index> <content>" lines from the user until ETIRW, then
// WRITE_END. A VIEWCHECKPOINT/READ/CREATE line typed mid-edit commits
// the session and re-dispatches that command instead.
func (r *REPL) writeFlow(line string) error {
	nmResp, err := r.sess.NM.RecvLine()
	if err != nil {
		fmt.Println("<no response>")
		return nil
	}
	if strings.HasPrefix(nmResp, "ERR") {
		fmt.Println(nmResp)
		return nil
	}
	if !strings.HasPrefix(nmResp, "SS ") {
		return nil
	}
	fields := strings.Fields(strings.TrimPrefix(nmResp, "SS "))
	if len(fields) < 2 {
		fmt.Println("ERR: malformed SS redirect")
		return nil
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Println("ERR: malformed SS redirect")
		return nil
	}
	ssConn, err := wireproto.Dial(fields[0], port)
	if err != nil {
		fmt.Println("ERR connect SS")
		return nil
	}
	defer ssConn.Close()
	if _, err := ssConn.RecvLine(); err != nil {
		return nil
	}

	args := strings.Fields(strings.TrimPrefix(line, "WRITE "))
	if len(args) < 2 {
		fmt.Println("ERR bad args")
		return nil
	}
	fname := args[0]
	sidx := args[1]

	if err := ssConn.SendLinef("WRITE_BEGIN %s %s", fname, sidx); err != nil {
		fmt.Println("ERR no response")
		return nil
	}
	sresp, err := ssConn.RecvLine()
	if err != nil {
		fmt.Println("ERR no response")
		return nil
	}
	if !strings.HasPrefix(sresp, "OK") {
		fmt.Println(sresp)
		return nil
	}
	if toks := strings.Fields(sresp); len(toks) >= 4 && toks[1] == "lock" {
		fname, sidx = toks[2], toks[3]
	}

	fmt.Println("Enter '<word_index> <content>' lines, end with 'ETIRW'")
	for {
		input, err := r.liner.Prompt("write> ")
		if err != nil {
			break
		}
		input = strings.TrimSpace(input)
		if strings.EqualFold(input, "ETIRW") {
			break
		}
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "VIEWCHECKPOINT") || strings.HasPrefix(input, "READ") ||
			strings.HasPrefix(input, "CREATE") {
			_ = ssConn.SendLinef("WRITE_END %s %s", fname, sidx)
			_, _ = ssConn.RecvLine()
			_ = ssConn.SendLine("QUIT")
			_, _ = ssConn.RecvLine()
			ssConn.Close()
			quit, err := r.dispatch(input)
			if err != nil {
				fmt.Printf("ERR: %v\n", err)
			}
			_ = quit
			return nil
		}
		parts := strings.SplitN(input, " ", 2)
		if len(parts) != 2 {
			fmt.Println("ERR format: <word_index> <content>")
			continue
		}
		if _, err := strconv.Atoi(parts[0]); err != nil {
			fmt.Println("ERR format: <word_index> <content>")
			continue
		}
		if err := ssConn.SendLinef("WRITE_UPDATE %s %s %s", fname, sidx, input); err != nil {
			fmt.Println("ERR: connection to SS lost")
			return nil
		}
		if reply, err := ssConn.RecvLine(); err == nil {
			fmt.Println(reply)
		}
	}

	_ = ssConn.SendLinef("WRITE_END %s %s", fname, sidx)
	if reply, err := ssConn.RecvLine(); err == nil {
		fmt.Println(reply)
	}
	_ = ssConn.SendLine("QUIT")
	_, _ = ssConn.RecvLine()
	return nil
}

// execFlow prints the NM's streamed EXEC output until END.
func (r *REPL) execFlow() error {
	resp, err := r.sess.NM.RecvLine()
	if err != nil {
		fmt.Println("<no response>")
		return nil
	}
	if !strings.HasPrefix(resp, "OK") {
		fmt.Println(resp)
		return nil
	}
	for {
		line, err := r.sess.NM.RecvLine()
		if err != nil {
			fmt.Println("<no response>")
			return nil
		}
		if line == "END" {
			return nil
		}
		fmt.Println(line)
	}
}

// genericFlow prints NM replies line by line until a terminator: END, a
// leading OK/ERR, or BYE.
func (r *REPL) genericFlow(line string) (quit bool, err error) {
	for {
		resp, err := r.sess.NM.RecvLine()
		if err != nil {
			fmt.Println("<no response>")
			return false, nil
		}
		fmt.Println(resp)
		if resp == "END" || strings.HasPrefix(resp, "OK") || strings.HasPrefix(resp, "ERR") || resp == "BYE" {
			break
		}
	}
	return line == "QUIT", nil
}
