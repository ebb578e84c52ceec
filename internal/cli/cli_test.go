// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credstore.
//
// go-credstore is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig writes a config using a file backend under a temp dir so
// state persists across command invocations.
func writeTestConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
server:
  host: "127.0.0.1"
  port: 8443

storage:
  backend: "file"
  path: %q

kdf:
  algorithm: "PBKDF2"
  iterations: 100000

logging:
  level: "error"
  format: "text"
`, filepath.Join(dir, "data"))

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "credstore version") {
		t.Errorf("Unexpected version output: %s", out)
	}
}

func TestUserLifecycle(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := runCLI(t, "--config", cfg, "state", "10")
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if !strings.Contains(out, "uninitialized") {
		t.Errorf("Expected uninitialized user, got: %s", out)
	}

	if _, err := runCLI(t, "--config", cfg, "init", "10", "--password", "correct-horse"); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	// A fresh invocation has no cached keys, so the user reports locked.
	out, err = runCLI(t, "--config", cfg, "state", "10")
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if !strings.Contains(out, "locked") {
		t.Errorf("Expected locked user after init, got: %s", out)
	}

	if _, err := runCLI(t, "--config", cfg, "unlock", "10", "--password", "wrong-secret"); err == nil {
		t.Error("unlock with wrong password should fail")
	}

	out, err = runCLI(t, "--config", cfg, "unlock", "10", "--password", "correct-horse")
	if err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if !strings.Contains(out, "unlocked") {
		t.Errorf("Unexpected unlock output: %s", out)
	}

	if _, err := runCLI(t, "--config", cfg, "reset", "10"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	out, err = runCLI(t, "--config", cfg, "state", "10")
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if !strings.Contains(out, "uninitialized") {
		t.Errorf("Expected uninitialized user after reset, got: %s", out)
	}
}

func TestInvalidUserID(t *testing.T) {
	cfg := writeTestConfig(t)

	if _, err := runCLI(t, "--config", cfg, "state", "bogus"); err == nil {
		t.Error("state with invalid user id should fail")
	}
}

func TestUnlockUninitializedUser(t *testing.T) {
	cfg := writeTestConfig(t)

	if _, err := runCLI(t, "--config", cfg, "unlock", "99", "--password", "anything"); err == nil {
		t.Error("unlock of uninitialized user should fail")
	}
}
