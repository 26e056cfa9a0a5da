package driver_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Rax-x/ScriptLang/internal/driver"
)

func runDriver(t *testing.T, args []string, stdin string) (stdout, stderr string, code int) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out, errBuf bytes.Buffer
	code = driver.Run(driver.Options{
		Args:   args,
		Stdin:  strings.NewReader(stdin),
		Stdout: &out,
		Stderr: &errBuf,
	})
	return out.String(), errBuf.String(), code
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func TestRunFileExecutesAndPrints(t *testing.T) {
	path := writeScript(t, `print 1 + 2;`)
	stdout, _, code := runDriver(t, []string{path}, "")
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(stdout, "3") {
		t.Fatalf("expected output to contain 3, got %q", stdout)
	}
}

func TestRunFileMissingReturnsError(t *testing.T) {
	_, stderr, code := runDriver(t, []string{filepath.Join(t.TempDir(), "missing.sl")}, "")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if stderr == "" {
		t.Fatalf("expected an error message on stderr")
	}
}

func TestRunFileCompileErrorReturnsDiagnostic(t *testing.T) {
	path := writeScript(t, `let x = ;`)
	_, stderr, code := runDriver(t, []string{path}, "")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "Error") {
		t.Fatalf("expected a diagnostic on stderr, got %q", stderr)
	}
}

func TestRunFileRuntimeErrorReturnsTrace(t *testing.T) {
	path := writeScript(t, `print 1 + "a";`)
	_, stderr, code := runDriver(t, []string{path}, "")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "Runtime error") {
		t.Fatalf("expected a runtime error trace, got %q", stderr)
	}
}

func TestRunFileDumpPrintsASTAndBytecodeWithoutExecuting(t *testing.T) {
	path := writeScript(t, `print 1 + 2;`)
	stdout, _, code := runDriver(t, []string{"--dump", path}, "")
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(stdout, "Print") {
		t.Fatalf("expected AST dump to contain a Print node, got %q", stdout)
	}
	if !strings.Contains(stdout, "PushConstant") {
		t.Fatalf("expected bytecode dump to contain PushConstant, got %q", stdout)
	}
	if strings.Contains(stdout, "\n3\n") {
		t.Fatalf("expected --dump not to execute the script, got %q", stdout)
	}
}

func TestReplHandlesDotCommandsAndEvaluatesLines(t *testing.T) {
	stdout, _, code := runDriver(t, nil, "print 2 + 2;\n.help\n.exit\n")
	if code != 1 {
		t.Fatalf("expected exit code 1 (REPL normal exit), got %d", code)
	}
	if !strings.Contains(stdout, "4") {
		t.Fatalf("expected evaluated line output, got %q", stdout)
	}
	if !strings.Contains(stdout, ".exit") {
		t.Fatalf("expected .help output listing .exit, got %q", stdout)
	}
}

func TestReplStopsOnEOFWithoutExit(t *testing.T) {
	stdout, _, code := runDriver(t, nil, "print 1;\n")
	if code != 1 {
		t.Fatalf("expected exit code 1 (REPL normal exit), got %d", code)
	}
	if !strings.Contains(stdout, "1") {
		t.Fatalf("expected evaluated line output, got %q", stdout)
	}
}

func TestReplUnknownCommandReportsError(t *testing.T) {
	stdout, _, code := runDriver(t, nil, ".bogus\n.exit\n")
	if code != 1 {
		t.Fatalf("expected exit code 1 (REPL normal exit), got %d", code)
	}
	if !strings.Contains(stdout, "unknown command") {
		t.Fatalf("expected an unknown command message, got %q", stdout)
	}
}

func TestNoCacheFlagStillExecutesCorrectly(t *testing.T) {
	path := writeScript(t, `print 10 * 4;`)
	stdout, _, code := runDriver(t, []string{"--no-cache", path}, "")
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(stdout, "40") {
		t.Fatalf("expected output to contain 40, got %q", stdout)
	}
}

func TestCacheDirFromConfigWritesEntry(t *testing.T) {
	projectDir := t.TempDir()
	cacheDir := filepath.Join(projectDir, ".slcache")
	rc := "cache_dir = \"" + filepath.ToSlash(cacheDir) + "\"\n"
	if err := os.WriteFile(filepath.Join(projectDir, ".scriptlangrc.toml"), []byte(rc), 0o644); err != nil {
		t.Fatalf("failed to write rc file: %v", err)
	}

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(projectDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(oldWD) })

	path := writeScript(t, `print 5;`)
	stdout, _, code := runDriver(t, []string{path}, "")
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(stdout, "5") {
		t.Fatalf("expected output to contain 5, got %q", stdout)
	}

	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		t.Fatalf("expected the cache directory to be created: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one cache entry, got %d", len(entries))
	}
}
