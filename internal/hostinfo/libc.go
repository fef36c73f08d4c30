package hostinfo

import "os"

// detectLibc makes a best-effort guess at the Linux libc flavor by checking
// for the musl dynamic loader, which Alpine and other musl-based distros
// ship under /lib. Anything else is assumed glibc, the common case.
func detectLibc() string {
	candidates := []string{
		"/lib/ld-musl-x86_64.so.1",
		"/lib/ld-musl-aarch64.so.1",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return "musl"
		}
	}
	return "gnu"
}
