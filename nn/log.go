package nn

import (
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the package logger used for warnings outside of a
// network, such as unrecognized function names. A nil logger restores the
// logrus standard logger.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	logger = l
}

// Logger returns the package logger.
func Logger() logrus.FieldLogger {
	return logger
}
