package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	libraryDir string
	destDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		libraryDir: filepath.Join(base, "library"),
		destDir:    filepath.Join(base, "organized"),
	}
	if err := os.MkdirAll(env.libraryDir, 0o755); err != nil {
		t.Fatalf("create library dir: %v", err)
	}

	content := fmt.Sprintf(`[paths]
database_dir = %q
log_dir = %q
temp_dir = %q
quarantine_dir = %q

[library]
roots = [%q]
destination_dir = %q
`,
		filepath.Join(base, "db"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "tmp"),
		filepath.Join(base, "quarantine"),
		env.libraryDir,
		env.destDir,
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeDAT(t *testing.T, env *cliTestEnv) string {
	t.Helper()
	dat := `<?xml version="1.0"?>
<datafile>
  <header>
    <name>NES</name>
    <description>NES</description>
    <version>1</version>
    <homepage>No-Intro</homepage>
  </header>
  <game name="Super Mario Bros. (USA)">
    <description>Super Mario Bros. (USA)</description>
    <rom name="Super Mario Bros. (USA).nes" size="40976" crc="3337EC46" md5="811B027EAF99C2DEF7B933C5208636DE" sha1="EA343F4E445A9050D4B4FBAC2C77D0693B1D0922"/>
  </game>
</datafile>`
	path := filepath.Join(env.baseDir, "nes.dat")
	if err := os.WriteFile(path, []byte(dat), 0o644); err != nil {
		t.Fatalf("write dat: %v", err)
	}
	return path
}

func TestCLIConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
}

func TestCLIImportShowsSourceTable(t *testing.T) {
	env := setupCLITestEnv(t)
	datPath := writeDAT(t, env)

	out, err := runCLI(t, env.configPath, "import", datPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "NES") {
		t.Fatalf("import output missing source: %q", out)
	}
}

func TestCLIScanSelectOrganizeUndo(t *testing.T) {
	env := setupCLITestEnv(t)
	datPath := writeDAT(t, env)

	nesDir := filepath.Join(env.libraryDir, "NES")
	if err := os.MkdirAll(nesDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	romPath := filepath.Join(nesDir, "Super Mario Bros. (USA).nes")
	if err := os.WriteFile(romPath, []byte("rom-bytes"), 0o644); err != nil {
		t.Fatalf("write rom: %v", err)
	}

	if _, err := runCLI(t, env.configPath, "import", datPath); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := runCLI(t, env.configPath, "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "Hashed 1 files") {
		t.Fatalf("scan output missing hash summary: %q", out)
	}

	out, err = runCLI(t, env.configPath, "select")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !strings.Contains(out, "Selection set ") || !strings.Contains(out, "Super Mario Bros.") {
		t.Fatalf("unexpected select output: %q", out)
	}

	out, err = runCLI(t, env.configPath, "organize")
	if err != nil {
		t.Fatalf("organize plan: %v", err)
	}
	if !strings.Contains(out, "Dry run") || !strings.Contains(out, "Super Mario Bros. (USA).nes") {
		t.Fatalf("unexpected plan output: %q", out)
	}
	if _, err := os.Stat(romPath); err != nil {
		t.Fatalf("dry run must not move files: %v", err)
	}

	out, err = runCLI(t, env.configPath, "organize", "--apply")
	if err != nil {
		t.Fatalf("organize apply: %v", err)
	}
	if !strings.Contains(out, "Moved 1 of 1 planned") {
		t.Fatalf("unexpected apply output: %q", out)
	}
	organized := filepath.Join(env.destDir, "NES", "Super Mario Bros (USA).nes")
	if _, err := os.Stat(organized); err != nil {
		t.Fatalf("organized file missing: %v", err)
	}

	out, err = runCLI(t, env.configPath, "undo")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !strings.Contains(out, "Reversed 1 operations") {
		t.Fatalf("unexpected undo output: %q", out)
	}
	if _, err := os.Stat(romPath); err != nil {
		t.Fatalf("undo must restore the source file: %v", err)
	}
}

func TestCLISelectDryRunPersistsNothing(t *testing.T) {
	env := setupCLITestEnv(t)
	datPath := writeDAT(t, env)

	nesDir := filepath.Join(env.libraryDir, "NES")
	if err := os.MkdirAll(nesDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	romPath := filepath.Join(nesDir, "Super Mario Bros. (USA).nes")
	if err := os.WriteFile(romPath, []byte("rom-bytes"), 0o644); err != nil {
		t.Fatalf("write rom: %v", err)
	}
	if _, err := runCLI(t, env.configPath, "import", datPath); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := runCLI(t, env.configPath, "scan"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	out, err := runCLI(t, env.configPath, "select", "--dry-run")
	if err != nil {
		t.Fatalf("select dry run: %v", err)
	}
	if !strings.Contains(out, "nothing persisted") || !strings.Contains(out, "Super Mario Bros.") {
		t.Fatalf("unexpected dry-run output: %q", out)
	}

	// No set was written, so organize has nothing to work from.
	if _, err := runCLI(t, env.configPath, "organize"); err == nil {
		t.Fatal("organize must fail when dry run was the only selection")
	}
}

func TestCLIQueueRetryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env.configPath, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	if !strings.Contains(out, "Requeued 0 failed candidates") {
		t.Fatalf("unexpected retry output: %q", out)
	}
}

func TestCLIQueueListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, "Curation queue is empty") {
		t.Fatalf("unexpected queue output: %q", out)
	}
}

func TestCLIStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env.configPath, "--json", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var snapshot statusSnapshot
	if err := json.Unmarshal([]byte(out), &snapshot); err != nil {
		t.Fatalf("status --json is not valid JSON: %v\n%s", err, out)
	}
	if snapshot.OpenItems != 0 || len(snapshot.Runs) != 0 {
		t.Fatalf("fresh catalog must be empty: %+v", snapshot)
	}
}
