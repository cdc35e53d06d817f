// Package utils holds the configuration loader and logger factory shared by
// the repogov CLI. Configuration comes from viper with embedded defaults, a
// config file and REPOGOV_ environment variables; loggers are zap.
package utils
