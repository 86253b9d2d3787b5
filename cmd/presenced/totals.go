package main

import (
	"encoding/json"
	"fmt"

	"vergepresence/internal/config"
	"vergepresence/internal/status"
	"vergepresence/internal/traffic"

	"github.com/spf13/cobra"
)

func newTotalsCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Print persisted lifetime traffic counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}

			totals, err := traffic.NewStore(cfg.TrafficFile).Load()
			if err != nil {
				return fmt.Errorf("读取累计流量失败: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(totals)
			}
			_, err = fmt.Fprintf(out, "up:   %s (%d bytes)\ndown: %s (%d bytes)\n",
				status.FormatBytes(totals.Up), totals.Up,
				status.FormatBytes(totals.Down), totals.Down)
			return err
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "配置文件路径")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}
