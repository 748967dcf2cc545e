package log

import (
	"runtime"

	"github.com/rs/zerolog"
)

// stackHook attaches the call stack to every error-or-worse event.
type stackHook struct{}

func (h *stackHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	if level < zerolog.ErrorLevel {
		return
	}

	arr := zerolog.Arr()
	for _, f := range callerFrames(5) {
		arr.Dict(zerolog.Dict().
			Int("line", f.Line).
			Str("file", f.File).
			Str("function", f.Function),
		)
	}
	e.Array("stack", arr)
}

// frame locates one call site on the event's path. Fields may be zero when
// the runtime cannot resolve them.
type frame struct {
	Line     int
	File     string
	Function string
}

func callerFrames(skip int) []frame {
	const depth = 64
	var pcs [depth]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]frame, 0, n)
	for {
		fr, more := frames.Next()
		out = append(out, frame{Line: fr.Line, File: fr.File, Function: fr.Function})
		if !more {
			break
		}
	}

	return out
}
