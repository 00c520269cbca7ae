package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/config"
)

func TestBuild_Defaults(t *testing.T) {
	logger, _ := testLogger()
	mode, err := Build(config.Default(), logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	srv, ok := mode.(*Server)
	if !ok {
		t.Fatalf("expected *Server, got %T", mode)
	}
	if srv.Address != config.DefaultListenAddr {
		t.Errorf("address = %q", srv.Address)
	}
	e := srv.Engine
	if e.SSH.HostKey == nil {
		t.Error("no host key")
	}
	if e.SSH.ServerVersion != config.DefaultServerVersion {
		t.Errorf("server version = %q", e.SSH.ServerVersion)
	}
	if got := e.Identity.Prompt(); got != "root@debian:~# " {
		t.Errorf("prompt = %q", got)
	}
	if e.Metrics != srv.Metrics || e.Metrics == nil {
		t.Error("engine and server should share one collector")
	}
	if srv.Housekeeping == nil {
		t.Error("housekeeping not built")
	}
}

func TestBuild_PersistentHostKey(t *testing.T) {
	cfg := config.Default()
	cfg.HostKeyPath = filepath.Join(t.TempDir(), "host_rsa")
	logger, logs := testLogger()

	first, err := Build(cfg, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.HostKeyPath); err != nil {
		t.Fatalf("host key not written: %v", err)
	}
	if logs.Count("Generated host key") != 1 {
		t.Error("generation not logged")
	}

	second, err := Build(cfg, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	a := first.(*Server).Engine.SSH.HostKey.PublicKey().Marshal()
	b := second.(*Server).Engine.SSH.HostKey.PublicKey().Marshal()
	if string(a) != string(b) {
		t.Error("host key changed between runs")
	}
	if logs.Count("Generated host key") != 1 {
		t.Error("existing key should be reused")
	}
}

func TestBuild_CorruptHostKey(t *testing.T) {
	cfg := config.Default()
	cfg.HostKeyPath = filepath.Join(t.TempDir(), "host_rsa")
	if err := os.WriteFile(cfg.HostKeyPath, []byte("not a key"), 0o600); err != nil {
		t.Fatal(err)
	}
	logger, _ := testLogger()
	if _, err := Build(cfg, logger, nil); err == nil {
		t.Fatal("expected error for unreadable host key")
	}
}
