package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kukawski/le-cpanel-updater/internal/config"
	"github.com/kukawski/le-cpanel-updater/internal/core"
	"github.com/kukawski/le-cpanel-updater/internal/lifecycle"
	"github.com/kukawski/le-cpanel-updater/internal/logging"
)

type app struct {
	configPath string
	envFile    string
	force      bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "le-cpanel-updater",
		Short: "Renew a Let's Encrypt certificate over HTTP-01 and install it through cPanel",
		Long: `le-cpanel-updater checks the certificate stored in cert_dir, renews it from an
ACME CA when it is close to expiry, and uploads certificate, key and CA bundle to
the cPanel SSL/install_ssl endpoint.

It performs one run and exits; schedule it with cron or a systemd timer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config.yaml", "configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment overrides")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Renew the certificate when due and install it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *core.Manager) error {
				return m.Run(ctx, a.force)
			})
		},
	}
	runCmd.Flags().BoolVarP(&a.force, "force", "f", false, "renew even if the certificate is still valid")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether renewal is due (exit status 2 when it is)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			status := core.NewManager(cfg, logger).Check()
			printStatus(cmd.OutOrStdout(), cfg, status)
			if status.Due {
				return errRenewalDue
			}
			return nil
		},
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Obtain a new certificate without installing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *core.Manager) error {
				return m.Issue(ctx)
			})
		},
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Upload the stored certificate to cPanel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *core.Manager) error {
				return m.Install(ctx)
			})
		},
	}

	root.AddCommand(runCmd, checkCmd, issueCmd, installCmd)
	return root
}

// setup 加载 env 文件和配置，创建日志
func (a *app) setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	// 显式指定的 env 文件必须存在
	if err := config.LoadEnvFile(a.envFile, cmd.Flags().Changed("env-file")); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", a.configPath, err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// withManager 持有运行锁和可被信号取消的上下文执行 fn
func (a *app) withManager(cmd *cobra.Command, fn func(context.Context, *core.Manager) error) error {
	cfg, logger, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	lock := lifecycle.NewLock(cfg.CertDir)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	sig := lifecycle.NewSignalHandler(cmd.Context(), logger)
	sig.Start()
	defer sig.Stop()

	m := core.NewManager(cfg, logger)
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("failed to close acme state", zap.Error(err))
		}
	}()

	start := time.Now()
	err = fn(sig.Context(), m)
	if err != nil {
		logger.Error("run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return err
	}
	logger.Info("run finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func printStatus(w io.Writer, cfg *config.Config, s core.Status) {
	fmt.Fprintf(w, "domain:      %s\n", cfg.PrimaryDomain())
	fmt.Fprintf(w, "cert dir:    %s\n", cfg.CertDir)
	if s.Info != nil {
		fmt.Fprintf(w, "issuer:      %s\n", s.Info.Issuer)
		fmt.Fprintf(w, "names:       %v\n", s.Info.Names())
		fmt.Fprintf(w, "valid until: %s (%s left)\n",
			s.Info.NotAfter.Format(time.RFC3339), time.Until(s.Info.NotAfter).Round(time.Hour))
	} else {
		fmt.Fprintln(w, "certificate: none")
	}
	if len(s.Missing) > 0 {
		fmt.Fprintf(w, "missing:     %v\n", s.Missing)
	}
	if s.Due {
		fmt.Fprintf(w, "renewal:     due (%s)\n", s.Reason)
	} else {
		fmt.Fprintln(w, "renewal:     not due")
	}
}
