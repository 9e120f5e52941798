package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

func executeCommand(args ...string) (string, error) {
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeAvatar(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCLIHelp(t *testing.T) {
	output, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, phrase := range []string{"avatarscript", "run", "check", "types", "--config", "--log-level"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("help output should contain %q", phrase)
		}
	}
}

func TestCLIRunHelp(t *testing.T) {
	output, err := executeCommand("run", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, phrase := range []string{"--ticks", "--frames", "--name", "--owner", "--watch", "--overlay"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("run help should contain %q", phrase)
		}
	}
}

func TestCLIVersion(t *testing.T) {
	output, err := executeCommand("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "avatarscript dev") {
		t.Errorf("version output = %q", output)
	}
}

func TestCLIRun(t *testing.T) {
	dir := writeAvatar(t, map[string]string{
		"avatar.toml": `name = "Bunny"`,
		"main.lua": `
			local ticks = 0
			events.TICK:register(function() ticks = ticks + 1 end)
			events.ENTITY_INIT:register(function() print("hello " .. user:getName()) end)
			events.POST_RENDER:register(function()
				if ticks == 3 then print("ticked " .. ticks) end
			end)
		`,
	})

	output, err := executeCommand("run", dir, "--ticks", "3", "--name", "Steve", "--log-level", "error")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, output)
	}

	for _, phrase := range []string{
		"[lua] Steve : hello Steve",
		"[lua] Steve : ticked 3",
		"Init instructions:",
		"Tick instructions:",
		"Render instructions:",
	} {
		if !strings.Contains(output, phrase) {
			t.Errorf("run output should contain %q, got:\n%s", phrase, output)
		}
	}
}

func TestCLIRunReportsFault(t *testing.T) {
	dir := writeAvatar(t, map[string]string{
		"main.lua": `events.TICK:register(function() while true do end end)`,
	})

	output, err := executeCommand("run", dir, "--ticks", "2", "--log-level", "error")
	if err == nil {
		t.Fatal("run should fail when a script faults")
	}
	if !strings.Contains(err.Error(), "1 script fault") {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(output, "Script error") {
		t.Errorf("output should mention the script error, got:\n%s", output)
	}
}

func TestCLIRunInvalidOwner(t *testing.T) {
	dir := writeAvatar(t, map[string]string{"main.lua": `x = 1`})

	_, err := executeCommand("run", dir, "--owner", "not-a-uuid")
	if err == nil || !strings.Contains(err.Error(), "invalid owner") {
		t.Errorf("error = %v, want invalid owner", err)
	}

	_, err = executeCommand("run", dir, "--owner", uuid.NewString(), "--ticks", "1", "--overlay=false")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCLIInvalidLogLevel(t *testing.T) {
	_, err := executeCommand("types", "--log-level", "loud")
	if err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("error = %v, want invalid log level", err)
	}
}

func TestCLIConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(cfg, []byte("[limits]\ntick = 100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	dir := writeAvatar(t, map[string]string{
		"main.lua": `events.TICK:register(function() for i = 1, 1000 do end end)`,
	})

	_, err := executeCommand("--config", cfg, "run", dir, "--ticks", "1", "--log-level", "error")
	if err == nil {
		t.Fatal("a tick limit of 100 should stop a 1000 iteration loop")
	}

	_, err = executeCommand("--config", filepath.Join(t.TempDir(), "missing.toml"), "types")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("error = %v, want missing config", err)
	}
}

func TestCLICheck(t *testing.T) {
	good := writeAvatar(t, map[string]string{
		"main.lua":     `x = 1`,
		"lib/util.lua": `return {}`,
	})
	output, err := executeCommand("check", good)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, output)
	}
	if !strings.Contains(output, "ok   lib/util") || !strings.Contains(output, "ok   main") {
		t.Errorf("check output = %q", output)
	}

	bad := writeAvatar(t, map[string]string{
		"avatar.toml": `autoScripts = ["missing"]`,
		"main.lua":    `local = 1`,
	})
	output, err = executeCommand("check", bad)
	if err == nil {
		t.Fatal("check should fail")
	}
	if !strings.Contains(output, "FAIL main") {
		t.Errorf("check output should flag main, got %q", output)
	}
	if !strings.Contains(output, `autoScripts entry "missing"`) {
		t.Errorf("check output should flag the autoScripts entry, got %q", output)
	}
}

func TestCLITypes(t *testing.T) {
	output, err := executeCommand("types")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"Vector3", "Matrix4", "EntityAPI", "LuaEvent"} {
		if !strings.Contains(output, name) {
			t.Errorf("types output should contain %q", name)
		}
	}
}

func TestCLITypesJSON(t *testing.T) {
	output, err := executeCommand("types", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gjson.Valid(output) {
		t.Fatalf("types --json is not valid JSON:\n%s", output)
	}

	vec := gjson.Get(output, `#(name=="Vector2")`)
	if !vec.Exists() {
		t.Fatalf("Vector2 missing from %s", output)
	}
	if got := vec.Get("id").String(); got != "api.Vec2" {
		t.Errorf("Vector2 id = %q, want api.Vec2", got)
	}
	if !strings.Contains(vec.Get("methods").Raw, `"copy"`) {
		t.Errorf("Vector2 methods = %s, want copy", vec.Get("methods").Raw)
	}
}
