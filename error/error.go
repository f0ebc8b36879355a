package error

import "errors"

var (
	ErrEngineKindNotSupported     = errors.New("this engine kind is not supported")
	ErrDebuggerIsClosed           = errors.New("debug is closed")
	ErrProgramIsRunningOptionFail = errors.New("the program is running")
	ErrActionNotAllowed           = errors.New("action is not allowed in current state")
	ErrCapabilityNotSupported     = errors.New("capability is not supported by the engine")
	ErrTransportNotReady          = errors.New("transport is not ready")
	ErrConnectionFailed           = errors.New("could not connect to the debug service")
	ErrTaskCanceled               = errors.New("task canceled")
	ErrEngineNotFound             = errors.New("engine not found")
	ErrInvalidFrameIndex          = errors.New("invalid frame index")
	ErrBreakpointNotFound         = errors.New("breakpoint not found")
	ErrProcessNotRunning          = errors.New("process is not running")
	ErrEvaluateFailed             = errors.New("evaluate fail")
)
