package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gpsmon/internal/gpsmon"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func noDotEnv(t *testing.T) {
	t.Helper()
	old := DotEnvPath
	DotEnvPath = filepath.Join(t.TempDir(), "missing.env")
	t.Cleanup(func() { DotEnvPath = old })
}

func TestLoad_DefaultsApplied(t *testing.T) {
	noDotEnv(t)
	cfg, err := Load(writeTempConfig(t, "monitor: {}\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if *cfg.Monitor.RetryBudget != gpsmon.DefaultRetryBudget {
		t.Fatalf("retry_budget=%d", *cfg.Monitor.RetryBudget)
	}
	if cfg.Monitor.AwakePoll != 100*time.Millisecond {
		t.Fatalf("awake_poll=%s", cfg.Monitor.AwakePoll)
	}
	if cfg.Hardware.Board != "dev6a" || cfg.Hardware.Backend != "none" || cfg.Transport.Backend != "none" {
		t.Fatalf("hardware=%+v transport=%+v", cfg.Hardware, cfg.Transport)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" || cfg.Web.LogLines != 2000 {
		t.Fatalf("log=%+v web=%+v", cfg.Log, cfg.Web)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	noDotEnv(t)
	if _, err := Load(writeTempConfig(t, "")); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
}

func TestLoad_ZeroRetryBudgetKept(t *testing.T) {
	noDotEnv(t)
	cfg, err := Load(writeTempConfig(t, "monitor:\n  retry_budget: 0\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := cfg.MachineConfig().RetryBudget; got != 0 {
		t.Fatalf("retry budget=%d want 0", got)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"negative budget", "monitor:\n  retry_budget: -1\n", "monitor.retry_budget must be >= 0"},
		{"collect", "monitor:\n  collect: maybe\n", "monitor.collect must be auto, sats or time"},
		{"timing", "monitor:\n  timing:\n    boot: -1s\n", "monitor.timing.boot must be >= 0"},
		{"hw backend", "hardware:\n  backend: spi\n", "hardware.backend must be none, gpiocdev or periph"},
		{"serial device", "transport:\n  backend: serial\n", "transport.device is required when transport.backend is serial"},
		{"transport backend", "transport:\n  backend: usb\n", "transport.backend must be none, serial, termios or replay"},
		{"replay device", "transport:\n  backend: replay\n", "transport.device is required when transport.backend is replay"},
		{"replay speed", "transport:\n  replay_speed: -1\n", "transport.replay_speed must be >= 0"},
		{"mqtt broker", "notify:\n  mqtt_topic: gpsmon/events\n", "mqtt.broker is required when an mqtt topic is set"},
		{"log format", "log:\n  format: xml\n", "log.format must be text or json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			noDotEnv(t)
			_, err := Load(writeTempConfig(t, tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	noDotEnv(t)
	if _, err := Load(writeTempConfig(t, "radio:\n  band: 915\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	noDotEnv(t)
	t.Setenv("GPSMON_TRANSPORT_BACKEND", "serial")
	t.Setenv("GPSMON_TRANSPORT_DEVICE", "/dev/ttyUSB0")
	t.Setenv("GPSMON_TRANSPORT_BAUD", "4800")
	t.Setenv("GPSMON_LOG_LEVEL", "debug")

	cfg, err := Load(writeTempConfig(t, "transport:\n  backend: none\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Transport.Backend != "serial" || cfg.Transport.Device != "/dev/ttyUSB0" || cfg.Transport.Baud != 4800 {
		t.Fatalf("transport=%+v", cfg.Transport)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level=%q", cfg.Log.Level)
	}

	t.Setenv("GPSMON_TRANSPORT_BAUD", "fast")
	if _, err := Load(writeTempConfig(t, "")); err == nil {
		t.Fatalf("expected bad baud error")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	if err := os.WriteFile(env, []byte("GPSMON_WEB_LISTEN=127.0.0.1:9090\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	old := DotEnvPath
	DotEnvPath = env
	t.Cleanup(func() {
		DotEnvPath = old
		os.Unsetenv("GPSMON_WEB_LISTEN")
	})

	cfg, err := Load(writeTempConfig(t, "web:\n  listen: ':8080'\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Web.Listen != "127.0.0.1:9090" {
		t.Fatalf("web.listen=%q", cfg.Web.Listen)
	}
}

func TestMachineConfig(t *testing.T) {
	noDotEnv(t)
	cfg, err := Load(writeTempConfig(t, "monitor:\n  collect: time\n  tell_transitions: true\n  timing:\n    lock_search: 90s\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	mc := cfg.MachineConfig()
	if mc.Collect != gpsmon.MajorTimeCollect || !mc.TellTransitions || mc.Timing.LockSearch != 90*time.Second {
		t.Fatalf("machine config=%+v", mc)
	}
}

func TestLineNames_ConfigOverridesBoard(t *testing.T) {
	cfg := Config{Hardware: HardwareConfig{
		Board: "dev6a",
		Lines: map[string]string{"awake": "GPIO17", "tell_exc": ""},
	}}
	got := cfg.LineNames()
	if got["awake"] != "GPIO17" || got["reset_n"] != "P6.0" || got["tell_exc"] != "" {
		t.Fatalf("lines=%v", got)
	}
}

func TestLoad_SampleConfig(t *testing.T) {
	noDotEnv(t)
	cfg, err := Load(filepath.Join("..", "..", "configs", "gpsmon.yaml"))
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if cfg.Hardware.Board != "dev6a" || cfg.Command.UDPListen != "127.0.0.1:4010" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if got := cfg.MachineConfig().Timing; got != gpsmon.DefaultTiming {
		t.Fatalf("timing=%+v want %+v", got, gpsmon.DefaultTiming)
	}
}
