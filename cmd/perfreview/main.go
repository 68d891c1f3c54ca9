package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"perfreview/internal/config"
	"perfreview/internal/logger"
	"perfreview/internal/server"
	"perfreview/internal/store"
)

const serviceName = "perfreview"

var (
	configPath = flag.String("config", "", "配置文件路径 (默认为可执行文件同目录下的 config.toml)")
	port       = flag.Int("port", 0, "服务端口 (覆盖配置文件与环境变量)")
	devMode    = flag.Bool("dev", false, "开发模式")
	dataDir    = flag.String("dataDir", "", "数据目录 (覆盖配置文件)")
	driver     = flag.String("driver", "", "存储方式: json | sqlite (覆盖配置文件)")
)

func main() {
	flag.Parse()

	fmt.Println("==========================================")
	fmt.Println("  PerfReview - 绩效考评表导入服务")
	fmt.Println("==========================================")

	// 加载配置
	cfg, info, err := config.LoadConfigWithInfo(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 命令行参数覆盖配置
	if *port > 0 {
		cfg.Server.Port = *port
		info.PortSpecified = true
	}
	if *devMode {
		cfg.Server.DevMode = true
	}
	if *dataDir != "" {
		cfg.Data.DataDir = *dataDir
	}
	if *driver != "" {
		cfg.Storage.Driver = *driver
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "配置无效: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, info, log); err != nil {
		log.Error("service stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, info config.LoadConfigInfo, log *zap.Logger) error {
	// 确保数据目录存在
	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.New(store.Options{
		Driver:       cfg.Storage.Driver,
		DataDir:      dataDir,
		HistoryLimit: cfg.Storage.HistoryLimit,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("close store failed", zap.Error(err))
		}
	}()

	log.Info("configuration loaded",
		zap.String("config_file", info.Path),
		zap.String("env_file", info.EnvFile),
		zap.Bool("port_specified", info.PortSpecified),
		zap.Int("port", cfg.Server.Port),
		zap.String("data_dir", dataDir),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("dev_mode", cfg.Server.DevMode),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(cfg, st, log)
	fmt.Printf("服务已启动: http://localhost:%d/api/status\n", cfg.Server.Port)
	fmt.Println("\n按 Ctrl+C 停止服务...")

	return srv.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
}
