// Package logger provides a convenience function to constructing a logger
// for use in the EZchain services.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a Sugared Logger that writes to stdout and provides human
// readable timestamps in a machine-parseable json format, tagged with the
// given service name.
func New(service string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := config.Build(zap.Fields(zap.String("service", service)))
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}
