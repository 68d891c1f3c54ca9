package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"perfreview/internal/config"
	"perfreview/internal/logger"
	"perfreview/internal/store"
)

type rootOptions struct {
	configPath string
	logLevel   string
	dataDir    string
	driver     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "perfimport",
		Short:         "绩效考评表离线解析与导入工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "配置文件路径 (默认为可执行文件同目录下的 config.toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "日志级别: debug | info | warn | error (覆盖配置文件)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "数据目录 (覆盖配置文件)")
	cmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "存储方式: json | sqlite (覆盖配置文件)")

	cmd.AddCommand(
		newParseCmd(opts),
		newImportCmd(opts),
		newHistoryCmd(opts),
		newExportCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// loadConfig 配置文件 <- 环境变量 <- 命令行参数
func (o *rootOptions) loadConfig() (*config.AppConfig, error) {
	cfg, _, err := config.LoadConfigWithInfo(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.dataDir != "" {
		cfg.Data.DataDir = o.dataDir
	}
	if o.driver != "" {
		cfg.Storage.Driver = o.driver
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger 命令行下使用 console 格式
func (o *rootOptions) newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	return logger.New(cfg.Log.Level, "console", "perfimport")
}

// openStore 打开配置的存储，调用方负责关闭
func (o *rootOptions) openStore(cfg *config.AppConfig) (store.Store, string, error) {
	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, "", fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.New(store.Options{
		Driver:       cfg.Storage.Driver,
		DataDir:      dataDir,
		HistoryLimit: cfg.Storage.HistoryLimit,
	})
	if err != nil {
		return nil, "", fmt.Errorf("open store: %w", err)
	}
	return st, dataDir, nil
}
