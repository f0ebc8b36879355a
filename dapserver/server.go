// Package dapserver 调试适配协议（DAP）服务。
// 每个客户端连接对应一个调试会话和一个脚本运行时调试引擎，
// 请求在读协程中处理，对引擎的调用通过控制协程同步执行。
package dapserver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fansqz/debug-engine/config"
	"github.com/fansqz/debug-engine/debugger"
	"github.com/fansqz/debug-engine/debugger/qml_debugger"
	"github.com/fansqz/debug-engine/metrics"
	"github.com/fansqz/debug-engine/utils/gosync"
)

// Server DAP服务
type Server struct {
	config   *config.Config
	registry *debugger.Registry
	metrics  *metrics.Metrics
	dialer   qml_debugger.Dialer
	launcher qml_debugger.Launcher
	logger   *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(s *Server)

func WithRegistry(registry *debugger.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithDialer 替换连接调试服务的方式，默认使用websocket
func WithDialer(dialer qml_debugger.Dialer) Option {
	return func(s *Server) {
		s.dialer = dialer
	}
}

// WithLauncher 替换启动脚本运行时的方式，默认在虚拟终端中启动
func WithLauncher(launcher qml_debugger.Launcher) Option {
	return func(s *Server) {
		s.launcher = launcher
	}
}

func New(cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		config: cfg,
		logger: logrus.WithField("component", "dapserver"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = debugger.NewRegistry(s.metrics)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Registry 当前服务创建的引擎
func (s *Server) Registry() *debugger.Registry {
	return s.registry
}

// ServeConn 在一个连接上处理DAP消息，连接关闭或者客户端断开调试之后返回
func (s *Server) ServeConn(conn io.ReadWriteCloser) error {
	session := newDebugSession(s, conn)
	return session.serve()
}

// ServeTCP 监听addr，每个连接一个调试会话
func (s *Server) ServeTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	s.logger.Infof("started listening at: %s", ln.Addr().String())
	return s.ServeListener(ln)
}

// ServeListener 接收连接直到ln被关闭
func (s *Server) ServeListener(ln net.Listener) error {
	go func() {
		<-s.ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.logger.Errorf("accept fail, err = %v", err)
			return err
		}
		s.logger.Infof("accept connection from %s", conn.RemoteAddr())
		s.wg.Add(1)
		gosync.Go(s.ctx, func(ctx context.Context) {
			defer s.wg.Done()
			if err := s.ServeConn(conn); err != nil {
				s.logger.Warnf("serve connection %s fail, err = %v", conn.RemoteAddr(), err)
			}
		})
	}
}

// ServeStdio 使用标准输入输出作为连接，编辑器以子进程方式启动适配器时使用
func (s *Server) ServeStdio(r io.Reader, w io.Writer) error {
	return s.ServeConn(&stdioConn{Reader: r, Writer: w})
}

// Shutdown 停止接收新连接并结束所有会话
func (s *Server) Shutdown() {
	s.cancel()
}

type stdioConn struct {
	io.Reader
	io.Writer
}

func (c *stdioConn) Close() error {
	if closer, ok := c.Reader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
