package shared

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_logger.go -package mocks social_distance/shared ILogger

// ILogger is the logging surface services depend on. It is satisfied by
// *github.com/charmbracelet/log.Logger, which main constructs and provides.
type ILogger interface {
	Error(msg interface{}, keyvals ...interface{})
	Errorf(format string, args ...interface{})
	Warn(msg interface{}, keyvals ...interface{})
	Warnf(format string, args ...interface{})
	Info(msg interface{}, keyvals ...interface{})
	Infof(format string, args ...interface{})
	Debug(msg interface{}, keyvals ...interface{})
	Debugf(format string, args ...interface{})
	Printf(format string, args ...interface{})
}
