package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docspp/docspp/internal/config"
	"github.com/docspp/docspp/pkg/docsclient"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a Naming Server and start an interactive session",
	Long: `Connect dials the Naming Server, logs in (prompting for a username if
none was given), and drops into an interactive prompt where every
line is sent to the Naming Server as a Docs++ command.`,
	RunE: runConnect,
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadClient(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	host := cfg.NMHost
	if nmHost != "" {
		host = nmHost
	}
	port := cfg.NMPort
	if nmPort != 0 {
		port = nmPort
	}

	fmt.Printf("Client will connect to the Naming Server at %s:%d\n", host, port)
	sess, err := docsclient.Dial(host, port)
	if err != nil {
		return err
	}
	defer sess.Close()

	if sess.LocalPort != 0 {
		fmt.Printf("Client local endpoint port %d\n", sess.LocalPort)
	}
	if welcome, err := sess.Welcome(); err == nil {
		fmt.Println(welcome)
	}

	user := username
	if user == "" {
		fmt.Print("username> ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		user = strings.TrimSpace(line)
	}
	if user == "" {
		return fmt.Errorf("username required")
	}

	reply, err := sess.Login(user)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Println(reply)

	repl := docsclient.NewREPL(sess)
	return repl.Run()
}
