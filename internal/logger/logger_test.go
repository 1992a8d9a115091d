package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)
	suite.NotNil(logger.Logger)
}

func (suite *LoggerTestSuite) TestNewLoggerWithLevel() {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		logger, err := NewLoggerWithLevel(level)
		suite.NoError(err, level)
		suite.NotNil(logger)
	}

	_, err := NewLoggerWithLevel("verbose")
	suite.Error(err)
	suite.Contains(err.Error(), "unsupported log level")
}

func (suite *LoggerTestSuite) TestDebugLevelEnabled() {
	logger, err := NewLoggerWithLevel("debug")
	suite.Require().NoError(err)
	suite.True(logger.Core().Enabled(zap.DebugLevel))

	logger, err = NewLoggerWithLevel("warn")
	suite.Require().NoError(err)
	suite.False(logger.Core().Enabled(zap.InfoLevel))
}

func (suite *LoggerTestSuite) TestNopLogger() {
	logger := NewNopLogger()
	suite.NotNil(logger.Logger)

	// These should not panic
	logger.Info("discarded", zap.String("node", "param:system/close"))
	logger.Named("cache").Debug("discarded")
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	logger := &Logger{Logger: nil}

	// Sync should not panic and should return nil for a nil inner logger
	err := logger.Sync()
	suite.NoError(err)
}
