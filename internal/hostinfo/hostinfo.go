// Package hostinfo detects the running host's platform and renders it as the
// target triple used to expand ${host-triple} placeholders in project
// manifests and release manifests. It is adapted from the teacher's
// internal/platform package: the same runtime.GOOS/GOARCH plus
// gopsutil-backed Linux distribution detection, but the end product is a
// single compiler-ecosystem triple string rather than a Lua-facing table.
package hostinfo

import (
	"context"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/criticalup/criticalup/internal/errs"
)

// Info describes the detected host.
type Info struct {
	OS      string // "linux", "darwin", "windows"
	Arch    string // "amd64", "arm64"
	Libc    string // "gnu" or "musl" on Linux; "" elsewhere
	Triple  string // rendered target triple, e.g. "x86_64-unknown-linux-gnu"
	Distro  string // Linux distro id, best-effort, "" if undetected
	Version string // Linux distro version, best-effort
}

// Detector detects the running host's platform. Production code uses
// NewDetector; tests can substitute a fixed Info.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

type realDetector struct{}

// NewDetector returns the production Detector.
func NewDetector() Detector { return realDetector{} }

func (realDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{OS: runtime.GOOS}

	arch, err := normalizeArch(runtime.GOARCH)
	if err != nil {
		return nil, errs.Wrap(errs.Configuration, "unknown-host-triple", "detect host architecture", err)
	}
	info.Arch = arch

	if runtime.GOOS == "linux" {
		info.Libc = detectLibc()

		platform, family, version, perr := host.PlatformInformationWithContext(ctx)
		if perr != nil {
			if ctx.Err() != nil {
				return nil, errs.Wrap(errs.Configuration, "unknown-host-triple", "detect host platform", ctx.Err())
			}
			// Distro detection is best-effort; the triple only needs OS/arch/libc.
		} else {
			info.Distro = platform
			info.Version = version
			_ = family
		}
	}

	triple, err := renderTriple(info)
	if err != nil {
		return nil, err
	}
	info.Triple = triple
	return info, nil
}

func normalizeArch(goarch string) (string, error) {
	switch goarch {
	case "amd64":
		return "amd64", nil
	case "arm64":
		return "arm64", nil
	default:
		return "", errs.Newf(errs.Configuration, "unknown-host-triple", "unsupported architecture %q", goarch)
	}
}

// renderTriple produces the compiler-ecosystem target triple for the given
// OS/arch/libc combination. Only the triples a criticalup release manifest
// could plausibly list are covered; anything else fails fast per spec §4.6
// ("unknown host triple").
func renderTriple(info *Info) (string, error) {
	var archPart string
	switch info.Arch {
	case "amd64":
		archPart = "x86_64"
	case "arm64":
		archPart = "aarch64"
	default:
		return "", errs.Newf(errs.Configuration, "unknown-host-triple", "unsupported architecture %q", info.Arch)
	}

	switch info.OS {
	case "linux":
		libc := info.Libc
		if libc == "" {
			libc = "gnu"
		}
		return archPart + "-unknown-linux-" + libc, nil
	case "darwin":
		return archPart + "-apple-darwin", nil
	case "windows":
		return archPart + "-pc-windows-msvc", nil
	default:
		return "", errs.Newf(errs.Configuration, "unknown-host-triple", "unsupported operating system %q", info.OS)
	}
}

// placeholder is the token substituted in package names and URLs, per
// spec §4.2/§4.6.
const placeholder = "${host-triple}"

// Substitute replaces every occurrence of the ${host-triple} placeholder in s
// with the detected triple.
func (i *Info) Substitute(s string) string {
	return strings.ReplaceAll(s, placeholder, i.Triple)
}
