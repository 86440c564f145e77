package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docspp/docspp/internal/config"
	"github.com/docspp/docspp/internal/logger"
	"github.com/docspp/docspp/pkg/catalog"
	"github.com/docspp/docspp/pkg/catalog/badgerstore"
	"github.com/docspp/docspp/pkg/nmadmin"
	"github.com/docspp/docspp/pkg/nmserver"
	"github.com/docspp/docspp/pkg/ssreg"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Naming Server",
	Long: `Start the Naming Server: the client-facing command port plus the
storage-server registration port, both bound from the same process.

Examples:
  nm start
  nm start --config /etc/docspp/nm.yaml`,
	RunE: runStart,
}

var execAllow bool

func init() {
	startCmd.Flags().BoolVar(&execAllow, "exec-allow", false, "Run EXEC scripts without the command allow-list gate")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadNM(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if execAllow {
		cfg.ExecAllowAll = true
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := badgerstore.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open catalog store: %w", err)
	}
	defer store.Close()

	cat, err := catalog.New(cfg.Limits, store)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	reg := ssreg.New(cfg.Limits.MaxStorageServers)

	clientAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	adminAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.AdminPort)

	srv := nmserver.NewServer(cat, reg, clientAddr, cfg.ExecAllowAll)
	admin := nmadmin.NewServer(cat, reg, adminAddr)

	if err := srv.Bind(); err != nil {
		return fmt.Errorf("bind client port: %w", err)
	}
	if err := admin.Bind(); err != nil {
		return fmt.Errorf("bind admin port: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go admin.RunFailureDetector(ctx, cfg.FailureDetectorInterval, cfg.HeartbeatDeadline)

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Serve() }()
	go func() { errCh <- admin.Serve() }()

	logger.Info("naming server listening", logger.Op("START"),
		"client_addr", srv.Addr(), "admin_addr", admin.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", logger.Op("SHUTDOWN"), "signal", sig.String())
		cancel()
		srv.Stop()
		admin.Stop()
		return nil
	case err := <-errCh:
		cancel()
		srv.Stop()
		admin.Stop()
		return err
	}
}
