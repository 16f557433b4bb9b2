package version

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// TestGitStub stands in for git when execCommand re-runs the test binary.
// It prints STUB_GIT_<subcommand flag> or exits non-zero when that is "fail".
func TestGitStub(t *testing.T) {
	if os.Getenv("STUB_GIT") != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	// args: git describe --always|--tags ...
	if len(args) < 3 {
		os.Exit(2)
	}
	out := os.Getenv("STUB_GIT_" + strings.TrimPrefix(args[2], "--"))
	if out == "fail" {
		os.Exit(1)
	}
	fmt.Fprint(os.Stdout, out)
	os.Exit(0)
}

// stubGit routes git invocations to TestGitStub with the given outputs.
func stubGit(t *testing.T, commit, tag string) {
	t.Helper()

	orig := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestGitStub", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(),
			"STUB_GIT=1",
			"STUB_GIT_always="+commit,
			"STUB_GIT_tags="+tag,
		)
		return cmd
	}
	Reset()
	t.Cleanup(func() {
		execCommand = orig
		Reset()
	})
}

func TestGetVersion(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		want string
	}{
		{"tagged", "v1.4.2", "1.4.2"},
		{"untagged prefix", "2.0.0-rc1", "2.0.0-rc1"},
		{"no tags", "fail", "dev"},
		{"empty output", "", "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubGit(t, "abc1234", tt.tag)
			if got := GetVersion(); got != tt.want {
				t.Errorf("GetVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetCommit(t *testing.T) {
	stubGit(t, "abc1234-dirty", "v1.0.0")
	if got := GetCommit(); got != "abc1234-dirty" {
		t.Errorf("GetCommit() = %q", got)
	}

	stubGit(t, "fail", "v1.0.0")
	if got := GetCommit(); got != "unknown" {
		t.Errorf("GetCommit() without git = %q, want unknown", got)
	}
}

func TestLdflagsWin(t *testing.T) {
	stubGit(t, "fail", "fail")
	Version, Commit, Date = "3.1.0", "deadbeef", "2026-01-02"

	if GetVersion() != "3.1.0" || GetCommit() != "deadbeef" || GetDate() != "2026-01-02" {
		t.Errorf("build-time values should not be replaced: %s %s %s", Version, Commit, Date)
	}
}

func TestGetDate_DefaultsToToday(t *testing.T) {
	stubGit(t, "abc", "v1.0.0")
	if d := GetDate(); len(d) != len("2006-01-02") {
		t.Errorf("GetDate() = %q", d)
	}
}

func TestInfo(t *testing.T) {
	stubGit(t, "abc1234", "v0.9.0")

	info := Info()
	if !strings.HasPrefix(info, "cud 0.9.0 (commit: abc1234, built: ") {
		t.Errorf("Info() = %q", info)
	}
}
