package obs

import (
	pyroscope "github.com/grafana/pyroscope-go"
)

type emptyLogger struct{}

func (emptyLogger) Infof(string, ...any)  {}
func (emptyLogger) Debugf(string, ...any) {}
func (emptyLogger) Errorf(string, ...any) {}

// StartProfiler ships continuous profiles to a pyroscope server. The
// returned stop function flushes and detaches; it is safe to call once.
func StartProfiler(application, server, env string) (func() error, error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: application,
		ServerAddress:   server,
		Tags: map[string]string{
			"env": env,
		},
		Logger: emptyLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, err
	}
	return profiler.Stop, nil
}
