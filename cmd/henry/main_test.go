package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"henry/internal/snapshot"
	"henry/internal/testutil"
)

// runCLI runs henry with args and returns stdout, stderr and the exit code.
func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func marketingArgs(t *testing.T, args ...string) []string {
	t.Helper()
	return append([]string{"--snapshot", testutil.FixturePath(t, "marketing.yaml"), "--quiet"}, args...)
}

func TestReportsFromSnapshot(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "analyze projects",
			args: []string{"analyze", "projects", "--format", "plain"},
			want: "marketing\t1\t2\tOK\trequired\ttrue\n",
		},
		{
			name: "analyze models",
			args: []string{"analyze", "models", "--format", "plain"},
			want: "marketing\tcampaigns\t2\t1\t10\n",
		},
		{
			name: "vacuum models",
			args: []string{"vacuum", "models", "--format", "plain"},
			want: "campaigns\tclicks\t10\n",
		},
		{
			name: "vacuum explores",
			args: []string{"vacuum", "explores", "--model", "campaigns", "--format", "plain"},
			want: "campaigns\tcampaigns\tN/A\tcampaigns.launch_week,clicks.url\tfalse\n" +
				"campaigns\tclicks\tN/A\tALL\ttrue\n",
		},
		{
			name: "min queries drops light rows",
			args: []string{"analyze", "models", "--min-queries", "5", "--format", "plain"},
			want: "marketing\tcampaigns\t2\t1\t7\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := runCLI(t, marketingArgs(t, tt.args...)...)
			if code != exitOK {
				t.Fatalf("exit code = %d, stderr: %s", code, stderr)
			}
			if stdout != tt.want {
				t.Errorf("stdout = %q, want %q", stdout, tt.want)
			}
		})
	}
}

func TestJSONReport(t *testing.T) {
	stdout, stderr, code := runCLI(t, marketingArgs(t, "analyze", "explores", "--format", "json")...)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}

	var got struct {
		Kind   string `json:"kind"`
		Source struct {
			Kind string `json:"kind"`
			ID   string `json:"id"`
		} `json:"source"`
		Records []map[string]interface{} `json:"records"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if got.Kind != "analyze-explores" {
		t.Errorf("kind = %q", got.Kind)
	}
	if got.Source.Kind != "snapshot" || got.Source.ID != "7d1f0c2e-5b6a-4e0b-9a61-3c1f9b2d4e55" {
		t.Errorf("source = %+v", got.Source)
	}
	if len(got.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(got.Records))
	}
	if got.Records[0]["explore"] != "campaigns" || got.Records[0]["query_count"] != float64(10) {
		t.Errorf("first record = %v", got.Records[0])
	}
}

func TestTableReport(t *testing.T) {
	stdout, _, code := runCLI(t, marketingArgs(t, "vacuum", "fields")...)
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{"view", "unused_fields", "campaigns", "clicks"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("table output missing %q:\n%s", want, stdout)
		}
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStderr string
	}{
		{
			name:       "unknown model",
			args:       []string{"vacuum", "models", "--model", "nonexistent"},
			wantCode:   exitNoResult,
			wantStderr: "No matching models found",
		},
		{
			name:       "unknown project",
			args:       []string{"analyze", "projects", "--project", "nope"},
			wantCode:   exitNoResult,
			wantStderr: `project "nope" not found`,
		},
		{
			name:       "explore without model",
			args:       []string{"vacuum", "explores", "--explore", "campaigns"},
			wantCode:   exitUsage,
			wantStderr: "--explore requires --model",
		},
		{
			name:       "bad format",
			args:       []string{"analyze", "models", "--format", "xml"},
			wantCode:   exitUsage,
			wantStderr: "unsupported format",
		},
		{
			name:       "bad sort key",
			args:       []string{"analyze", "models", "--sortkey", "nope"},
			wantCode:   exitUsage,
			wantStderr: "invalid sort key",
		},
		{
			name:       "unknown flag",
			args:       []string{"analyze", "models", "--bogus"},
			wantCode:   exitUsage,
			wantStderr: "unknown flag",
		},
		{
			name:       "non-positive timeframe",
			args:       []string{"analyze", "models", "--timeframe", "0"},
			wantCode:   exitUsage,
			wantStderr: "timeframe must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := runCLI(t, marketingArgs(t, tt.args...)...)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, stderr)
			}
			if !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.wantStderr)
			}
			if stdout != "" {
				t.Errorf("stdout = %q, want nothing", stdout)
			}
		})
	}
}

func TestMissingSnapshot(t *testing.T) {
	_, stderr, code := runCLI(t, "--snapshot", filepath.Join(t.TempDir(), "missing.yaml"), "analyze", "models")
	if code != exitNoResult {
		t.Errorf("exit code = %d, want %d (stderr: %s)", code, exitNoResult, stderr)
	}
}

func TestSnapshotExportRoundTrip(t *testing.T) {
	out := filepath.Join(t.TempDir(), "copy.toml.zst")

	stdout, stderr, code := runCLI(t, marketingArgs(t, "snapshot", "export", "--out", out, "--git-tests")...)
	if code != exitOK {
		t.Fatalf("export exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Wrote snapshot") {
		t.Errorf("stdout = %q", stdout)
	}

	snap, err := snapshot.Load(out)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Explores) != 2 || len(snap.History) != 2 || len(snap.GitTests) != 1 {
		t.Errorf("snapshot = %d explores, %d history rows, %d git runs",
			len(snap.Explores), len(snap.History), len(snap.GitTests))
	}

	original, _, _ := runCLI(t, marketingArgs(t, "vacuum", "explores", "--format", "plain")...)
	replayed, stderr, code := runCLI(t, "--snapshot", out, "--quiet", "vacuum", "explores", "--format", "plain")
	if code != exitOK {
		t.Fatalf("replay exit code = %d, stderr: %s", code, stderr)
	}
	if replayed != original {
		t.Errorf("replayed report differs:\n%s\nwant:\n%s", replayed, original)
	}
}

func TestSnapshotExportRejectsUnknownExtension(t *testing.T) {
	_, stderr, code := runCLI(t, marketingArgs(t, "snapshot", "export", "--out", "snap.xml")...)
	if code != exitUsage {
		t.Errorf("exit code = %d, want %d (stderr: %s)", code, exitUsage, stderr)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	stdout, stderr, code := runCLI(t, "config", "init", "--path", path)
	if code != exitOK {
		t.Fatalf("init exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, path) {
		t.Errorf("stdout = %q", stdout)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}

	_, _, code = runCLI(t, "config", "init", "--path", path)
	if code != exitUsage {
		t.Errorf("second init exit code = %d, want %d", code, exitUsage)
	}

	t.Setenv("HENRY_LOOKER_CLIENT_SECRET", "s3cret")
	stdout, stderr, code = runCLI(t, "--config", path, "config", "show", "--json")
	if code != exitOK {
		t.Fatalf("show exit code = %d, stderr: %s", code, stderr)
	}
	if strings.Contains(stdout, "s3cret") {
		t.Error("config show leaked the client secret")
	}
	var shown struct {
		Looker struct {
			BaseURL      string `json:"baseUrl"`
			ClientSecret string `json:"clientSecret"`
		} `json:"looker"`
	}
	if err := json.Unmarshal([]byte(stdout), &shown); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if shown.Looker.BaseURL != "https://your-instance.example.com:19999" {
		t.Errorf("baseUrl = %q", shown.Looker.BaseURL)
	}
	if shown.Looker.ClientSecret != "********" {
		t.Errorf("clientSecret = %q", shown.Looker.ClientSecret)
	}
}

func TestLiveSourceNeedsCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, _, code := runCLI(t, "config", "init", "--path", path); code != exitOK {
		t.Fatalf("init exit code = %d", code)
	}
	t.Setenv("HENRY_LOOKER_CLIENT_ID", "")
	t.Setenv("LOOKERSDK_CLIENT_ID", "")

	_, stderr, code := runCLI(t, "--config", path, "--quiet", "analyze", "models")
	if code != exitUsage {
		t.Errorf("exit code = %d, want %d (stderr: %s)", code, exitUsage, stderr)
	}
	if !strings.Contains(stderr, "client id and secret are required") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestVersion(t *testing.T) {
	stdout, _, code := runCLI(t, "version")
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.HasPrefix(stdout, "henry version ") {
		t.Errorf("stdout = %q", stdout)
	}
}
