package presets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/cloudmux/internal/pty"
)

func TestNewRegistryCreatesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "presets")
	r, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	for _, id := range []string{"local-shell", "ecs-exec", "ssm-session", "postgres-tunnel"} {
		if r.Get(id) == nil {
			t.Fatalf("expected default preset %q", id)
		}
		if _, err := os.Stat(filepath.Join(dir, id+".yaml")); err != nil {
			t.Fatalf("default file missing for %q: %v", id, err)
		}
	}

	tunnel := r.Get("postgres-tunnel")
	if tunnel.Kind.Type != pty.TypePortForward || tunnel.Kind.LocalPort != 15432 || tunnel.Kind.RemoteHost != "db.internal" {
		t.Fatalf("postgres-tunnel = %+v", tunnel)
	}
}

func TestNewRegistryKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	content := "id: mine\nname: Mine\nkind:\n  type: local\n"
	if err := os.WriteFile(filepath.Join(dir, "mine.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if got := r.List(); len(got) != 1 || got[0].ID != "mine" {
		t.Fatalf("List() = %+v, want only mine", got)
	}
}

func TestNewRegistryValidationFailure(t *testing.T) {
	tests := map[string]string{
		"missing name":  "id: bad\nname: \"\"\nkind:\n  type: local\n",
		"bad id":        "id: Bad_ID\nname: x\nkind:\n  type: local\n",
		"unknown type":  "id: bad\nname: x\nkind:\n  type: telnet\n",
		"missing field": "id: bad\nname: x\nkind:\n  type: ssm_session\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewRegistry(dir); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRegistrySaveDeleteReload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "presets")
	r, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	custom := &Preset{
		ID:   "prod-bastion",
		Name: "Prod bastion",
		Kind: pty.KindSpec{Type: pty.TypeRemoteShell, InstanceID: "i-0abc", Region: "eu-west-1"},
	}
	if err := r.Save(custom); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	custom.Name = "mutated"
	if got := r.Get("prod-bastion"); got == nil || got.Name != "Prod bastion" {
		t.Fatalf("Get() after save = %+v", got)
	}

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	got := r.Get("prod-bastion")
	if got == nil || got.Kind.InstanceID != "i-0abc" || got.Kind.Region != "eu-west-1" {
		t.Fatalf("Get() after reload = %+v", got)
	}

	if err := r.Delete("prod-bastion"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if r.Get("prod-bastion") != nil {
		t.Fatal("preset still present after delete")
	}
	if err := r.Delete("prod-bastion"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete() error = %v", err)
	}
}

func TestSaveRejectsInvalidPreset(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Save(&Preset{ID: "x", Name: "x", Kind: pty.KindSpec{Type: pty.TypePortForward, InstanceID: "i-1"}}); err == nil {
		t.Fatal("expected error for port forward without ports")
	}
	if err := r.Save(nil); err == nil {
		t.Fatal("expected error for nil preset")
	}
}

func TestPresetRequest(t *testing.T) {
	p := &Preset{ID: "a", Name: "A", Title: "Box", Shell: "/bin/zsh", Kind: pty.KindSpec{Type: pty.TypeLocalShell}}
	req := p.Request()
	if req.Title != "Box" || req.Shell != "/bin/zsh" || req.SessionType.Type != pty.TypeLocalShell {
		t.Fatalf("Request() = %+v", req)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan error, 8)
	if err := r.Watch(ctx, func(err error) { reloaded <- err }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	content := "id: from-disk\nname: From disk\nkind:\n  type: local\n"
	if err := os.WriteFile(filepath.Join(dir, "from-disk.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for r.Get("from-disk") == nil {
		select {
		case err := <-reloaded:
			if err != nil {
				t.Fatalf("reload error = %v", err)
			}
		case <-deadline:
			t.Fatal("registry did not pick up new preset")
		}
	}
}
