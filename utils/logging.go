package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogWriter owns the outputs attached by InitLogger.
type LogWriter struct {
	fileWriter *lumberjack.Logger
}

// Dispose flushes and closes the log file, if any.
func (lw *LogWriter) Dispose() {
	if lw == nil || lw.fileWriter == nil {
		return
	}
	lw.fileWriter.Close()
	lw.fileWriter = nil
}

// levelHook writes entries up to a separate level into an output.
type levelHook struct {
	writer    io.Writer
	formatter logger.Formatter
	levels    []logger.Level
}

func (h *levelHook) Levels() []logger.Level {
	return h.levels
}

func (h *levelHook) Fire(entry *logger.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(line)
	return err
}

// InitLogger configures the standard logrus logger from Config.Logging.
func InitLogger() (*LogWriter, *logger.Logger) {
	logWriter := &LogWriter{}
	log := logger.StandardLogger()

	outputLevel := logger.InfoLevel
	if Config != nil && Config.Logging.OutputLevel != "" {
		lvl, err := logger.ParseLevel(Config.Logging.OutputLevel)
		if err != nil {
			log.Warnf("invalid log output level %v, using info", Config.Logging.OutputLevel)
		} else {
			outputLevel = lvl
		}
	}

	if Config != nil && Config.Logging.OutputStderr {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(os.Stdout)
	}
	log.SetFormatter(&logger.TextFormatter{FullTimestamp: true})

	if Config != nil && Config.Logging.FilePath != "" {
		fileLevel := outputLevel
		if Config.Logging.FileLevel != "" {
			lvl, err := logger.ParseLevel(Config.Logging.FileLevel)
			if err != nil {
				log.Warnf("invalid log file level %v, using %v", Config.Logging.FileLevel, outputLevel)
			} else {
				fileLevel = lvl
			}
		}

		maxSize := Config.Logging.FileMaxSize
		if maxSize == 0 {
			maxSize = 100
		}

		logWriter.fileWriter = &lumberjack.Logger{
			Filename:   Config.Logging.FilePath,
			MaxSize:    maxSize,
			MaxBackups: Config.Logging.FileMaxBackups,
		}

		// both outputs are driven by hooks so each one can keep its own level
		stdOutput := log.Out
		log.SetOutput(io.Discard)
		log.AddHook(&levelHook{
			writer:    stdOutput,
			formatter: &logger.TextFormatter{FullTimestamp: true},
			levels:    logger.AllLevels[:outputLevel+1],
		})
		log.AddHook(&levelHook{
			writer:    logWriter.fileWriter,
			formatter: &logger.JSONFormatter{},
			levels:    logger.AllLevels[:fileLevel+1],
		})

		if fileLevel > outputLevel {
			log.SetLevel(fileLevel)
		} else {
			log.SetLevel(outputLevel)
		}
	} else {
		log.SetLevel(outputLevel)
	}

	return logWriter, log
}

// LogFatal logs a fatal error with callstack info that skips callerSkip many levels with arbitrarily many additional infos.
// callerSkip equal to 0 gives you info directly where LogFatal is called.
func LogFatal(err error, errorMsg interface{}, callerSkip int, additionalInfos ...map[string]interface{}) {
	logErrorInfo(err, callerSkip, additionalInfos...).Fatal(errorMsg)
}

// LogError logs an error with callstack info that skips callerSkip many levels with arbitrarily many additional infos.
// callerSkip equal to 0 gives you info directly where LogError is called.
func LogError(err error, errorMsg interface{}, callerSkip int, additionalInfos ...map[string]interface{}) {
	logErrorInfo(err, callerSkip, additionalInfos...).Error(errorMsg)
}

func logErrorInfo(err error, callerSkip int, additionalInfos ...map[string]interface{}) *logger.Entry {
	logFields := logger.NewEntry(logger.StandardLogger())

	pc, fullFilePath, line, ok := runtime.Caller(callerSkip + 2)
	if ok {
		logFields = logFields.WithFields(logger.Fields{
			"_file":     filepath.Base(fullFilePath),
			"_function": runtime.FuncForPC(pc).Name(),
			"_line":     line,
		})
	} else {
		logFields = logFields.WithField("runtime", "Callstack cannot be read")
	}

	errColl := []string{}
	for {
		errColl = append(errColl, fmt.Sprint(err))
		nextErr := errors.Unwrap(err)
		if nextErr != nil {
			err = nextErr
		} else {
			break
		}
	}

	errMarkSign := "~"
	for idx := 0; idx < (len(errColl) - 1); idx++ {
		errInfoText := fmt.Sprintf("%serrInfo_%v%s", errMarkSign, idx, errMarkSign)
		nextErrInfoText := fmt.Sprintf("%serrInfo_%v%s", errMarkSign, idx+1, errMarkSign)
		if idx == (len(errColl) - 2) {
			nextErrInfoText = fmt.Sprintf("%serror%s", errMarkSign, errMarkSign)
		}

		// Replace the last occurrence of the next error in the current error
		lastIdx := strings.LastIndex(errColl[idx], errColl[idx+1])
		if lastIdx != -1 {
			errColl[idx] = errColl[idx][:lastIdx] + nextErrInfoText + errColl[idx][lastIdx+len(errColl[idx+1]):]
		}

		errInfoText = strings.ReplaceAll(errInfoText, errMarkSign, "")
		logFields = logFields.WithField(errInfoText, errColl[idx])
	}

	if err != nil {
		logFields = logFields.WithField("errType", fmt.Sprintf("%T", err)).WithError(err)
	}

	for _, infoMap := range additionalInfos {
		for name, info := range infoMap {
			logFields = logFields.WithField(name, info)
		}
	}

	return logFields
}
