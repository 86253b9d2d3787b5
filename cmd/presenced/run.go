package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vergepresence/internal/config"
	"vergepresence/internal/metrics"
	"vergepresence/internal/server"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the presence daemon until SIGINT/SIGTERM (SIGHUP reloads)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(configPath, metricsAddr)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "配置文件路径")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "指标监听地址，覆盖配置中的 metrics_listen")
	return cmd
}

func runDaemon(configPath, metricsAddr string) error {
	// 1. 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	// 2. 初始化日志
	logger, err := config.SetupLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	logger.WithField("version", version).Info("presenced 启动中")

	// 3. 指标服务（可选）
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsListen
	}
	if metricsAddr != "" {
		ms := metrics.NewServer(metricsAddr, logger)
		if err := ms.Start(); err != nil {
			logger.WithError(err).Warn("启动指标服务失败")
		} else {
			defer ms.Stop()
		}
	}

	// 4. 组装并按配置启动
	provider := config.NewFileProvider(configPath, cfg)
	srv := server.NewServer(cfg, provider, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.InitializeOnStartup(ctx); err != nil {
		logger.WithError(err).Warn("启动时初始化失败")
	}

	// 5. 处理信号：SIGHUP 重新加载，SIGTERM/SIGINT 退出
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			logger.Info("收到 SIGHUP，重新加载")
			if err := srv.Reload(ctx); err != nil {
				logger.WithError(err).Error("重新加载失败")
			}
			continue
		}
		logger.WithField("signal", sig.String()).Info("收到关闭信号")
		break
	}

	// 6. 优雅关闭
	cancel()
	srv.ShutdownOnExit()
	logger.Info("presenced 已安全退出")
	return nil
}
