package logger

import (
	"io"
	"os"
	"time"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	logrus "github.com/sirupsen/logrus"
)

var output io.Writer = os.Stdout

// Setup initializes Logrus to write to stdout and a rotating file.
func Setup(file, level string) {
	// 1) Lumberjack for file rotation
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // megabytes
		MaxBackups: 7,  // keep up to 7 old files
		MaxAge:     7,  // days
		Compress:   true,
	}
	output = io.MultiWriter(os.Stdout, rotator)

	// 2) Configure Logrus to write to both
	logrus.SetOutput(output)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		logrus.WithField("level", level).Warn("unknown log level, using info")
	}
	logrus.SetLevel(lvl)
}

// RequestLogger logs every HTTP request to the same destination as the application log.
func RequestLogger() gin.HandlerFunc {
	return ginlog.SetLogger(
		ginlog.WithWriter(output),
		ginlog.WithUTC(true),
		ginlog.WithSkipPath([]string{"/api/health"}),
	)
}
