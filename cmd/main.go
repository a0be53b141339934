package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"schema-sync/internal/config"
	"schema-sync/internal/database"
	"schema-sync/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit codes shared by every command.
const (
	exitOK         = 0
	exitFailure    = 1 // drift detected or a table failed
	exitConnection = 2 // a connection could not be established or was lost
)

var (
	configPath string
	projectDir string // Set at build time with -ldflags

	cfg *types.Config
	v   = config.NewViper()
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func fail(code int, err error) error { return &exitError{code: code, err: err} }

// failFor picks the exit code from the kind of err.
func failFor(err error) error {
	if database.IsConnectionError(err) {
		return fail(exitConnection, err)
	}
	return fail(exitFailure, err)
}

var rootCmd = &cobra.Command{
	Use:           "schema-sync",
	Short:         "Detect schema drift and replicate databases between instances",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations["config"] == "none" {
			return nil
		}

		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return fail(exitFailure, fmt.Errorf("failed to load configuration: %w", err))
		}
		if err := config.ApplyOverrides(loaded, v); err != nil {
			return fail(exitFailure, fmt.Errorf("invalid overrides: %w", err))
		}
		cfg = loaded

		setupLogging(cfg)
		logrus.Infof("Starting schema-sync %s", cmd.Name())
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:         "info",
	Short:       "Show working directory and project directory information",
	Annotations: map[string]string{"config": "none"},
	Run: func(cmd *cobra.Command, args []string) {
		displayInfo()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (default: config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	_ = v.BindPFlag("processing.log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(infoCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	os.Exit(exitStatus(err))
}

// exitStatus reports err and maps it to a process exit code. Connection
// failures are fatal and come with the recent log tail.
func exitStatus(err error) int {
	if err == nil {
		return exitOK
	}

	code := exitFailure
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}

	if code == exitConnection {
		logrus.Errorf("Fatal error: %v", err)
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		database.PrintRecentLogTail(200)
		return code
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return code
}

func displayInfo() {
	workingDir, err := os.Getwd()
	if err != nil {
		fmt.Printf("Error getting working directory: %v\n", err)
		return
	}

	fmt.Printf("working_dir: %s\n", workingDir)
	fmt.Printf("project_dir: %s\n", projectDir)
}

func setupLogging(config *types.Config) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Set log level from env or config, default to Info
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = config.Processing.LogLevel
		if level == "" {
			level = "info"
		}
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Invalid log level '%s', defaulting to 'info'", level)
		logLevel = logrus.InfoLevel
	}

	logrus.SetLevel(logLevel)

	logPath := config.Processing.LogPath
	if logPath == "" {
		logPath = database.DefaultLogPath
		logrus.Infof("Using default log path: %s", logPath)
	}

	// Resolve relative paths to working directory
	if !filepath.IsAbs(logPath) {
		wd, err := os.Getwd()
		if err != nil {
			logrus.Warnf("Failed to get working directory: %v, logging to stderr", err)
			return
		}
		logPath = filepath.Join(wd, logPath)
	}

	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		logrus.Warnf("Failed to create log directory %s: %v, logging to stderr", logDir, err)
		return
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logrus.Warnf("Failed to open log file %s: %v, logging to stderr", logPath, err)
		return
	}

	// Structured logs go to the file; stdout keeps reports and PROGRESS lines,
	// stderr keeps the spinner and bar.
	logrus.SetOutput(logFile)
	log.SetOutput(logFile)

	// The log tail printed on fatal errors reads the same file.
	if os.Getenv("LOG_PATH") == "" {
		os.Setenv("LOG_PATH", logPath)
	}
	logrus.Infof("Logging to file: %s", logPath)
}
