package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fansqz/debug-engine/config"
	"github.com/fansqz/debug-engine/dapserver"
	"github.com/fansqz/debug-engine/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the DAP server",
	Long: `启动DAP服务，每个客户端连接对应一个调试会话。

传输方式:
  --port N     在TCP端口N上监听DAP客户端（默认4711）
  --stdio      使用标准输入输出通信，编辑器以子进程方式启动适配器时使用

launch请求的参数:
  program      脚本运行时的可执行文件
  args         运行时参数，需要包含开启调试服务的参数
  url          运行时中调试服务的websocket地址
attach请求只需要url。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		closeLogger, err := setupLogger(cfg.Logging)
		if err != nil {
			return err
		}
		defer closeLogger()
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "TCP port to listen on (default 4711)")
	serveCmd.Flags().Bool("stdio", false, "Use stdin/stdout for DAP communication")
	serveCmd.Flags().String("metrics-listen", "", "Serve prometheus metrics on this address")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.stdio", serveCmd.Flags().Lookup("stdio"))
	_ = viper.BindPFlag("metrics.listen", serveCmd.Flags().Lookup("metrics-listen"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []dapserver.Option
	if cfg.Metrics.Enabled {
		m := metrics.NewMetrics(cfg.Metrics.Namespace, nil)
		opts = append(opts, dapserver.WithMetrics(m))
		metricsServer := startMetricsServer(cfg.Metrics.Listen)
		defer metricsServer.Close()
	}

	srv := dapserver.New(cfg, opts...)
	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	if cfg.Server.Stdio {
		logrus.Infof("DAP server: using stdio transport")
		return srv.ServeStdio(os.Stdin, os.Stdout)
	}
	return srv.ServeTCP(fmt.Sprintf(":%d", cfg.Server.Port))
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logrus.Infof("metrics listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server fail, err = %v", err)
		}
	}()
	return server
}
