package model

import (
	"fmt"
	"strings"
)

// Browser identifies a local browser whose saved logins can be imported.
type Browser string

const (
	BrowserNone   Browser = "none"
	BrowserChrome Browser = "chrome"
	BrowserEdge   Browser = "edge"
	BrowserBrave  Browser = "brave"
	// BrowserAll imports from every supported browser in turn.
	BrowserAll Browser = "all"
)

// BrowserEnv names the environment variables holding a browser's store locations.
type BrowserEnv struct {
	LoginData  string // SQLite "Login Data" file.
	LocalState string // JSON "Local State" file carrying the wrapped key.
}

// BrowserPaths holds the resolved store locations for one browser.
// Empty fields mean the location is not configured.
type BrowserPaths struct {
	LoginData  string
	LocalState string
}

// browserEnv maps each importable browser to its location variables.
var browserEnv = map[Browser]BrowserEnv{
	BrowserChrome: {LoginData: "CREDVAULT_CHROME_LOGIN_DATA", LocalState: "CREDVAULT_CHROME_LOCAL_STATE"},
	BrowserEdge:   {LoginData: "CREDVAULT_EDGE_LOGIN_DATA", LocalState: "CREDVAULT_EDGE_LOCAL_STATE"},
	BrowserBrave:  {LoginData: "CREDVAULT_BRAVE_LOGIN_DATA", LocalState: "CREDVAULT_BRAVE_LOCAL_STATE"},
}

// ImportableBrowsers lists the concrete browsers in the order BrowserAll visits them.
var ImportableBrowsers = []Browser{BrowserChrome, BrowserEdge, BrowserBrave}

// Env returns the location variables for b. ok is false for BrowserNone,
// BrowserAll, and anything unknown.
func (b Browser) Env() (BrowserEnv, bool) {
	env, ok := browserEnv[b]
	return env, ok
}

// DisplayName returns the human-readable browser name.
func (b Browser) DisplayName() string {
	switch b {
	case BrowserChrome:
		return "Chrome"
	case BrowserEdge:
		return "Microsoft Edge"
	case BrowserBrave:
		return "Brave"
	case BrowserAll:
		return "All Browsers"
	default:
		return "None"
	}
}

// ParseBrowser converts user input into a Browser. Matching is case-insensitive
// and accepts display names ("Microsoft Edge", "All Browsers").
func ParseBrowser(s string) (Browser, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return BrowserNone, nil
	case "chrome", "google chrome":
		return BrowserChrome, nil
	case "edge", "microsoft edge":
		return BrowserEdge, nil
	case "brave":
		return BrowserBrave, nil
	case "all", "all browsers":
		return BrowserAll, nil
	default:
		return "", fmt.Errorf("unsupported browser %q", s)
	}
}
