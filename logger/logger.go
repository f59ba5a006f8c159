// Package logger provides adapters for popular logger libraries to work with pagekv's Logger interface.
//
// The adapters allow you to use your existing logger with pagekv without writing boilerplate.
// Note that the standard library's slog.Logger already implements pagekv.Logger directly.
//
// Example with zap:
//
//	import (
//	    "pagekv"
//	    "logger"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//
//	    bp := pagekv.NewBufferPool(disk, pagekv.WithLogger(logger.NewZap(zapLogger)))
//	}
//
package logger
