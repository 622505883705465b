package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/opencatalog/restrictedd/pkg/access"
	"github.com/opencatalog/restrictedd/pkg/catalog"
	"github.com/opencatalog/restrictedd/pkg/gateway"
	"github.com/opencatalog/restrictedd/pkg/logging"
	"github.com/opencatalog/restrictedd/pkg/notification"
	"github.com/opencatalog/restrictedd/pkg/redaction"
	"github.com/opencatalog/restrictedd/pkg/status"
)

var (
	version     = "dev" // Will be set during build
	cfgFile     string
	showVersion bool
)

func main() {
	cobra.CheckErr(rootCmd.Execute())
}

var rootCmd = &cobra.Command{
	Use:           "restrictedd",
	Short:         "Restricted-resource gateway for open-data catalogs",
	SilenceUsage:  false,
	SilenceErrors: true,
	Long: `Restricted-resource gateway (restrictedd)

This daemon fronts an open-data catalog and enforces per-resource access
restrictions: it decides who may see a restricted resource, redacts package
and search results for everyone else, and notifies users newly added to a
resource's allow-list.

Configuration file must be in JSON format with the following structure:
{
    "listen_addr": "0.0.0.0",
    "port": 8080,
    "catalog_url": "https://catalog.example.org",
    "catalog_token": "secret-service-token",
    "site_title": "Open Data Portal",
    "site_url": "https://data.example.org",
    "admin_email": "admin@example.org",
    "smtp_addr": "mail.example.org:587",
    "smtp_username": "notifier",
    "smtp_password": "secret",
    "mail_from": "noreply@example.org",
    "template_dir": "/etc/restrictedd/templates",
    "status_dir": "/var/run/restrictedd",
    "app_log_path": "/var/log/restrictedd/app.log",
    "audit_log_path": "/var/log/restrictedd/audit.log",
    "log_level": "info"
}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("restrictedd %s\n", version)
			return nil
		}

		if cfgFile == "" {
			return fmt.Errorf("config file is required (use --config)")
		}

		// Convert to absolute path if needed
		if !filepath.IsAbs(cfgFile) {
			var err error
			cfgFile, err = filepath.Abs(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to get absolute path: %v", err)
			}
		}

		// Load configuration
		var config Config
		if err := LoadConfig(cfgFile, &config); err != nil {
			return fmt.Errorf("failed to load config: %v", err)
		}

		// Initialize logging
		if err := logging.Initialize(config.AuditLogPath, config.AppLogPath, logging.LogLevel(config.LogLevel)); err != nil {
			return fmt.Errorf("failed to initialize logging: %v", err)
		}

		// Upstream catalog client
		source, err := catalog.NewHTTPSource(config.CatalogURL, config.CatalogToken)
		if err != nil {
			return fmt.Errorf("failed to create catalog client: %v", err)
		}

		// Decision engine and result-set walker
		engine := access.NewEngine(source)
		walker := redaction.NewWalker(source, engine)

		// Notification dispatcher
		var mailer notification.Mailer = notification.NopMailer{}
		if config.SMTPAddr != "" {
			mailer, err = notification.NewSMTPMailer(config.SMTPAddr, config.SMTPUsername, config.SMTPPassword, config.MailFrom)
			if err != nil {
				return fmt.Errorf("failed to create mailer: %v", err)
			}
		} else {
			logging.App.Warn("No smtp_addr configured, allow-list notifications are disabled")
		}

		templates := notification.NewTemplateSource(afero.NewOsFs(), config.TemplateDir)
		dispatcher := notification.NewDispatcher(source, templates, mailer, notification.Config{
			SiteTitle:  config.SiteTitle,
			SiteURL:    config.SiteURL,
			AdminEmail: config.AdminEmail,
		}, logging.App)

		// Gateway server
		server := gateway.New(&gateway.Config{
			ListenAddr: config.ListenAddr,
			Port:       config.Port,
		}, walker, dispatcher)

		// Status files for health monitoring
		var statusWriter *status.Writer
		if config.StatusDir != "" {
			statusWriter, err = status.New(config.StatusDir, 10*time.Second, version)
			if err != nil {
				return fmt.Errorf("failed to create status writer: %v", err)
			}
			statusWriter.SetMetricsProvider(server)
			if err := statusWriter.WriteStartFile(); err != nil {
				logging.App.Error("Failed to write start file", "error", err)
			}
			statusWriter.StartHeartbeat()
		}

		fmt.Printf("Starting restrictedd %s on %s:%d (catalog: %s)\n",
			version, config.ListenAddr, config.Port, source.Address())

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if statusWriter != nil {
				_ = statusWriter.Shutdown("server_error")
			}
			return err
		case sig := <-sigCh:
			logging.App.Info("Shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logging.App.Error("Graceful shutdown failed", "error", err)
			}
			if statusWriter != nil {
				_ = statusWriter.Shutdown("signal_" + sig.String())
			}
			return nil
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "path to config file (required)")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version information")
}
