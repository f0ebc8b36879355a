package cmd

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/fansqz/debug-engine/config"
)

// setupLogger 按配置设置日志，返回关闭日志文件的函数
func setupLogger(cfg config.LoggingConfig) (func(), error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(level)

	var output io.Writer = os.Stderr
	closer := func() {}
	if cfg.File != "" {
		logFile, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		output = logFile
		closer = func() {
			_ = logFile.Close()
		}
	}
	logrus.SetOutput(output)

	switch cfg.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   cfg.File == "" && term.IsTerminal(int(os.Stderr.Fd())),
		})
	}
	return closer, nil
}
