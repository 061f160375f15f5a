// Package monitoring forwards unexpected errors and panics to an error
// tracker. The process-wide monitor defaults to a no-op until the
// service wires a real backend in.
package monitoring

import "time"

type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// Recover reports an in-flight panic. It calls recover itself, so it
	// must be deferred directly: defer monitor.Recover().
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var active Monitor = NopMonitor{}

// Init installs the process-wide monitor. A nil monitor is ignored.
func Init(m Monitor) {
	if m != nil {
		active = m
	}
}

func CaptureException(err error, tags map[string]string) {
	active.CaptureException(err, tags)
}

// CaptureError reports err tagged with the component it came from.
func CaptureError(err error, component string) {
	active.CaptureException(err, map[string]string{"component": component})
}

func Flush(d time.Duration) {
	active.Flush(d)
}
