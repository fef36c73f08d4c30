package hostinfo

import "testing"

func TestRenderTriple(t *testing.T) {
	cases := []struct {
		name string
		info *Info
		want string
	}{
		{"linux-amd64-gnu", &Info{OS: "linux", Arch: "amd64", Libc: "gnu"}, "x86_64-unknown-linux-gnu"},
		{"linux-arm64-musl", &Info{OS: "linux", Arch: "arm64", Libc: "musl"}, "aarch64-unknown-linux-musl"},
		{"linux-default-libc", &Info{OS: "linux", Arch: "amd64"}, "x86_64-unknown-linux-gnu"},
		{"darwin-arm64", &Info{OS: "darwin", Arch: "arm64"}, "aarch64-apple-darwin"},
		{"windows-amd64", &Info{OS: "windows", Arch: "amd64"}, "x86_64-pc-windows-msvc"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := renderTriple(tc.info)
			if err != nil {
				t.Fatalf("renderTriple() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("renderTriple() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRenderTripleUnsupportedOS(t *testing.T) {
	_, err := renderTriple(&Info{OS: "plan9", Arch: "amd64"})
	if err == nil {
		t.Fatal("expected error for unsupported OS")
	}
}

func TestSubstitute(t *testing.T) {
	info := &Info{Triple: "x86_64-unknown-linux-gnu"}
	got := info.Substitute("c-${host-triple}")
	want := "c-x86_64-unknown-linux-gnu"
	if got != want {
		t.Errorf("Substitute() = %q, want %q", got, want)
	}
}

func TestSubstituteNoPlaceholder(t *testing.T) {
	info := &Info{Triple: "x86_64-unknown-linux-gnu"}
	if got := info.Substitute("cargo"); got != "cargo" {
		t.Errorf("Substitute() = %q, want unchanged", got)
	}
}
