// Package flags declares the global flags of the CLI, with environment fallbacks.
package flags

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const (
	// Env vars
	EnvVarContextFile = "CICD_CONTEXT_FILE"
	EnvVarLogPath     = "CICD_LOG_PATH"
	EnvVarLogLevel    = "CICD_LOG_LEVEL"
	EnvVarRegion      = "CDK_DEFAULT_REGION"
	EnvVarAccount     = "CDK_DEFAULT_ACCOUNT"

	// Defaults
	DefaultContextFile = "cicd.toml"
	DefaultLogPath     = ""
	DefaultLogLevel    = "info"

	// Flag names
	FlagNameContextFile = "context-file"
	FlagNameLogPath     = "log-path"
	FlagNameLogLevel    = "log-level"
	FlagNameRegion      = "region"
	FlagNameAccount     = "account"
	FlagNameContext     = "context"
)

var (
	ContextFile string
	LogPath     string
	LogLevel    string
	Region      string
	Account     string

	// ContextOverrides are key=value pairs applied over the context file, keys are dotted paths.
	ContextOverrides []string
)

func InitFlags(fs *pflag.FlagSet) {
	initContextFile(fs)
	initLogger(fs)
	initEnvironment(fs)
	fs.StringArrayVarP(&ContextOverrides, FlagNameContext, "c", nil, "context override as key=value, repeatable (e.g. SitePipeline.enableTest=true). Values are read as JSON except for string keys; quote other strings, e.g. custom='\"123\"'")
}

// fromEnv returns the trimmed value of the env var, or def when it is blank.
func fromEnv(envVar string, def string) string {
	if env := strings.TrimSpace(os.Getenv(envVar)); env != "" {
		return env
	}
	return def
}

func initContextFile(fs *pflag.FlagSet) {
	if ContextFile == "" {
		ContextFile = fromEnv(EnvVarContextFile, DefaultContextFile)
	}
	fs.StringVar(&ContextFile, FlagNameContextFile, ContextFile, "path to the context file (.toml, .json, .yaml)")
}

func initLogger(fs *pflag.FlagSet) {
	if LogPath == "" {
		LogPath = fromEnv(EnvVarLogPath, DefaultLogPath)
	}
	fs.StringVar(&LogPath, FlagNameLogPath, LogPath, "path to generated log file")

	if LogLevel == "" {
		LogLevel = strings.ToLower(fromEnv(EnvVarLogLevel, DefaultLogLevel))
	}
	fs.StringVar(&LogLevel, FlagNameLogLevel, LogLevel, "log level (trace, debug, info, warn, error, off)")
}

func initEnvironment(fs *pflag.FlagSet) {
	if Region == "" {
		Region = fromEnv(EnvVarRegion, "")
	}
	fs.StringVar(&Region, FlagNameRegion, Region, "region of the pipeline stack")

	if Account == "" {
		Account = fromEnv(EnvVarAccount, "")
	}
	fs.StringVar(&Account, FlagNameAccount, Account, "account of the pipeline stack")
}
