package qml_debugger

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/fansqz/debug-engine/debugger"
	"github.com/fansqz/debug-engine/utils/gosync"
)

// Process 被调试的脚本运行时进程
type Process interface {
	// Exited 进程退出时完成，结果为退出码
	Exited() *debugger.Task[int]
	Write(input string) error
	Stop() error
}

// Launcher 启动脚本运行时
type Launcher interface {
	Launch(ctx context.Context, params *debugger.RunParameters, output func(string)) (Process, error)
}

// PtyLauncher 在虚拟终端中启动进程，用户程序的输出通过虚拟终端读取
type PtyLauncher struct{}

func (l *PtyLauncher) Launch(ctx context.Context, params *debugger.RunParameters, output func(string)) (Process, error) {
	ptm, pts, err := pty.Open()
	if err != nil {
		logrus.Errorf("[PtyLauncher] pty open fail, err = %v", err)
		return nil, err
	}
	if _, err = term.MakeRaw(int(ptm.Fd())); err != nil {
		logrus.Errorf("[PtyLauncher] make raw fail, err = %v", err)
		ptm.Close()
		pts.Close()
		return nil, err
	}

	cmd := exec.Command(params.Executable, params.Arguments...)
	cmd.Dir = params.WorkingDir
	cmd.Env = append(os.Environ(), params.Environment...)
	cmd.Stdin = pts
	cmd.Stdout = pts
	cmd.Stderr = pts
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err = cmd.Start(); err != nil {
		ptm.Close()
		pts.Close()
		return nil, err
	}

	p := &ptyProcess{
		cmd:    cmd,
		ptm:    ptm,
		pts:    pts,
		exited: debugger.NewTask[int](),
	}
	gosync.Go(ctx, func(ctx context.Context) {
		p.processUserOutput(output)
	})
	gosync.Go(ctx, p.wait)
	return p, nil
}

type ptyProcess struct {
	cmd       *exec.Cmd
	ptm       *os.File
	pts       *os.File
	exited    *debugger.Task[int]
	closeOnce sync.Once
}

func (p *ptyProcess) Exited() *debugger.Task[int] {
	return p.exited
}

// processUserOutput 循环读取用户输出
func (p *ptyProcess) processUserOutput(output func(string)) {
	b := make([]byte, 1024)
	for {
		n, err := p.ptm.Read(b)
		if n > 0 && output != nil {
			output(string(b[0:n]))
		}
		if err != nil {
			return
		}
	}
}

func (p *ptyProcess) wait(ctx context.Context) {
	err := p.cmd.Wait()
	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
		err = nil
	}
	p.close()
	p.exited.Complete(code, err)
}

func (p *ptyProcess) Write(input string) error {
	_, err := p.ptm.Write([]byte(input))
	return err
}

// Stop 结束进程，进程已经退出时什么也不做
func (p *ptyProcess) Stop() error {
	select {
	case <-p.exited.Done():
		return nil
	default:
	}
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *ptyProcess) close() {
	p.closeOnce.Do(func() {
		p.pts.Close()
		p.ptm.Close()
	})
}
