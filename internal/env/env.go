// Package env holds named constants for environment variables the core
// reads (spec §6 "Environment variables"). Not every reader uses them:
// internal/state.DefaultRoot reads XDG_DATA_HOME and APPDATA by literal
// name.
package env

import "os"

const (
	// Token supplies the download-server bearer token when set; otherwise
	// the stored credential is used (spec §6).
	Token = "CRITICALUP_TOKEN"

	// DataHome influences state location on Linux-like hosts (spec §6,
	// internal/state.DefaultRoot).
	DataHome = "XDG_DATA_HOME"

	// AppData is the Windows roaming application-data root.
	AppData = "APPDATA"

	// LogFormat mirrors the --log-format flag as an environment override,
	// the way the teacher's ZERB_DEBUG toggles debug logging without a flag.
	LogFormat = "CRITICALUP_LOG_FORMAT"

	// LogVerbose mirrors -v/--verbose.
	LogVerbose = "CRITICALUP_VERBOSE"
)

// LookupToken returns the bearer token from the environment, if set.
func LookupToken() (string, bool) {
	return os.LookupEnv(Token)
}
