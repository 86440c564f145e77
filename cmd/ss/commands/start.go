package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docspp/docspp/internal/config"
	"github.com/docspp/docspp/internal/logger"
	"github.com/docspp/docspp/pkg/blobstore"
	"github.com/docspp/docspp/pkg/filelock"
	"github.com/docspp/docspp/pkg/ssadmin"
	"github.com/docspp/docspp/pkg/ssserver"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a Storage Server",
	Long: `Start a Storage Server: the client content port (READ/STREAM/WRITE_*)
plus the admin port the Naming Server uses for CREATE/DELETE/FETCH/SYNC
and recovery, and a background heartbeat that registers this SS with
the Naming Server.

Examples:
  ss start
  ss start --config /etc/docspp/ss-1.yaml`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadSS(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	blobs, err := blobstore.New(cfg.DataRoot)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	locks := filelock.NewTable(cfg.MaxSentenceSlots)

	clientAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.ClientPort)
	adminAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.AdminPort)

	client := ssserver.NewServer(blobs, locks, clientAddr)
	admin := ssadmin.NewServer(blobs, locks, adminAddr)

	if err := client.Bind(); err != nil {
		return fmt.Errorf("bind client port: %w", err)
	}
	if err := admin.Bind(); err != nil {
		return fmt.Errorf("bind admin port: %w", err)
	}

	heartbeat := ssadmin.NewHeartbeat(ssadmin.HeartbeatConfig{
		NMHost:      cfg.NMHost,
		NMPort:      cfg.NMAdminPort,
		SSID:        cfg.SSID,
		ClientPort:  cfg.ClientPort,
		AdminPort:   cfg.AdminPort,
		AdvertiseIP: cfg.Host,
		Interval:    cfg.HeartbeatInterval,
	})

	errCh := make(chan error, 2)
	go func() { errCh <- client.Serve() }()
	go func() { errCh <- admin.Serve() }()
	heartbeat.Start(cmd.Context())

	logger.Info("storage server listening", logger.Op("START"), logger.SSID(cfg.SSID),
		"client_addr", client.Addr(), "admin_addr", admin.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", logger.Op("SHUTDOWN"), "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", logger.Op("SHUTDOWN"), logger.Err(err))
		}
	}

	heartbeat.Stop()
	client.Stop()
	admin.Stop()
	return nil
}
