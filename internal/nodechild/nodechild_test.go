package nodechild

import (
	"os"
	"testing"
)

func TestNewSpawnFuncWritesBootstrapAndCleansUp(t *testing.T) {
	spawn, cleanup, err := NewSpawnFunc("node")
	if err != nil {
		t.Fatal(err)
	}

	cmd, err := spawn(12345)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmd.Args) < 4 {
		t.Fatalf("args = %v, want at least [node, flag, script, port]", cmd.Args)
	}
	scriptPath := cmd.Args[len(cmd.Args)-2]
	if _, err := os.Stat(scriptPath); err != nil {
		t.Fatalf("bootstrap script not written: %v", err)
	}
	b, err := os.ReadFile(scriptPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) == 0 {
		t.Fatal("bootstrap script is empty")
	}

	if err := cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(scriptPath); !os.IsNotExist(err) {
		t.Errorf("bootstrap script still exists after cleanup")
	}
}
