package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/folio/internal/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	t.Setenv(config.EnvDBPath, "")
	t.Setenv(config.EnvLogLevel, "")

	path := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf("db_path: %s\nbackup:\n  dir: %s\n",
		filepath.Join(dir, "folio.db"), filepath.Join(dir, "backups"))
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	exports := filepath.Join(dir, "exports")
	if err := os.MkdirAll(exports, 0o755); err != nil {
		t.Fatal(err)
	}
	csv := "TxnDate,Action,Amount,$,Price,Units,Ticker\n" +
		"2024-01-02,Buy,-1500,USD,150,10,AAPL\n" +
		"2024-01-03,Sell,900,USD,90,10,MSFT\n"
	if err := os.WriteFile(filepath.Join(exports, "trades.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	reports := filepath.Join(dir, "reports")

	out, err := run(t, "import", exports, "--config", cfg, "--report", reports)
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Rows imported: 2") {
		t.Errorf("first import output:\n%s", out)
	}
	matches, _ := filepath.Glob(filepath.Join(reports, "trades_*.xlsx"))
	if len(matches) != 1 {
		t.Errorf("reports = %v", matches)
	}

	out, err = run(t, "import", exports, "--config", cfg, "--report", "")
	if err != nil {
		t.Fatalf("re-import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Rows imported: 0") {
		t.Errorf("second import output:\n%s", out)
	}
}

func TestImportCommandMissingInput(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	if _, err := run(t, "import", filepath.Join(dir, "nope.csv"), "--config", cfg); err == nil {
		t.Error("expected an error for a missing input")
	}
}

func TestValidateAndVersion(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	out, err := run(t, "validate", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"(valid)", "Settlement USD: NYSE calendar, T+1 from 2024-05-28"} {
		if !strings.Contains(out, want) {
			t.Errorf("validate output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "folio\n") {
		t.Errorf("version output:\n%s", out)
	}
}
