// Package cmd 调试引擎的命令行入口
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fansqz/debug-engine/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "debug-engine",
	Short: "Debug engine for script runtimes",
	Long: `debug-engine 通过调试适配协议（DAP）为编辑器提供脚本运行时（QML/JavaScript）的调试能力。

使用示例:
  # 在4711端口监听DAP客户端
  debug-engine serve --port 4711

  # 由编辑器以子进程方式启动
  debug-engine serve --stdio`,
	SilenceUsage: true,
}

// Execute 执行根命令，由main调用
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（YAML）")
	rootCmd.PersistentFlags().String("log-level", "", "日志级别：debug, info, warn, error")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig 环境变量使用 DEBUG_ENGINE_ 前缀，例如 DEBUG_ENGINE_SERVER_PORT
func initConfig() {
	viper.SetEnvPrefix("DEBUG_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig 读取配置文件，然后用命令行参数和环境变量覆盖
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", cfgFile, err)
		}
		cfg = loaded
	}
	if v := viper.GetString("logging.level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("logging.file"); v != "" {
		cfg.Logging.File = v
	}
	if v := viper.GetInt("server.port"); v != 0 {
		cfg.Server.Port = v
	}
	if viper.GetBool("server.stdio") {
		cfg.Server.Stdio = true
	}
	if viper.GetBool("metrics.enabled") {
		cfg.Metrics.Enabled = true
	}
	if v := viper.GetString("metrics.listen"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = v
	}
	return cfg, nil
}
