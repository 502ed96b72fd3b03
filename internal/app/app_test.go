package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// 必須環境変数が欠けている場合にInitが失敗すること
func TestInit_MissingRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	var buf bytes.Buffer
	_, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing required env vars")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error should name the missing variable: %v", err)
	}
}

// InitがJSONログをセットアップし設定を返すこと
func TestInit_Success(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/tunetalk_test")
	t.Setenv("JWT_SECRET", "test-secret")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if cfg.JWTSecret != "test-secret" {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
}

// Runが初期化失敗をエラーとして返すこと
func TestRun_InitFailure(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"serve"}); err == nil {
		t.Fatal("expected error when required env vars are missing")
	}
}

// 起動ログがJSON形式で出力されること
func TestRun_LogsAreJSON(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	var buf bytes.Buffer
	_ = Run(&buf, nil)

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("log line is not JSON: %q", line)
		}
	}
}
