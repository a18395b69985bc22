package padawan

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"
)

// TestMain re-execs this test binary as the "child process" a real CMDL
// would spawn, the standard library's own pattern for exercising
// exec.Cmd without shipping a second binary (see os/exec's own tests).
func TestMain(m *testing.M) {
	if os.Getenv("REPLETE_HELPER_PROCESS") == "1" {
		runHelperProcess()
		return
	}
	os.Exit(m.Run())
}

func runHelperProcess() {
	port, _ := strconv.Atoi(os.Getenv("REPLETE_HELPER_PORT"))
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		os.Exit(1)
	}
	defer conn.Close()

	if counterFile := os.Getenv("REPLETE_HELPER_CRASH_ONCE"); counterFile != "" {
		b, _ := os.ReadFile(counterFile)
		if len(b) == 0 {
			os.WriteFile(counterFile, []byte("1"), 0o644)
			time.Sleep(150 * time.Millisecond) // let the in-flight command actually arrive
			os.Exit(1)                         // then die without answering, simulating a crash mid-eval
		}
	}

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var cmd Command
		if err := dec.Decode(&cmd); err != nil {
			return
		}
		if cmd.Script == "boom" {
			enc.Encode(Report{ID: cmd.ID, Exception: "boom!"})
			continue
		}
		enc.Encode(Report{ID: cmd.ID, Evaluation: cmd.Script})
	}
}

func helperSpawn(t *testing.T, extraEnv ...string) SpawnFunc {
	t.Helper()
	return func(port int) (*exec.Cmd, error) {
		cmd := exec.Command(os.Args[0])
		cmd.Env = append(os.Environ(),
			"REPLETE_HELPER_PROCESS=1",
			fmt.Sprintf("REPLETE_HELPER_PORT=%d", port),
		)
		cmd.Env = append(cmd.Env, extraEnv...)
		cmd.Stderr = os.Stderr
		return cmd, nil
	}
}

func waitConnected(t *testing.T, c *CMDL, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		connected := c.conn != nil
		c.mu.Unlock()
		if connected {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("padawan never connected")
}

func TestCMDLEvalRoundTrip(t *testing.T) {
	c, err := NewCMDL(helperSpawn(t))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()
	waitConnected(t, c, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rep, err := c.Eval(ctx, "1 + 1", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Evaluation != "1 + 1" || rep.Exception != "" {
		t.Errorf("report = %+v", rep)
	}
}

func TestCMDLEvalException(t *testing.T) {
	c, err := NewCMDL(helperSpawn(t))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()
	waitConnected(t, c, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rep, err := c.Eval(ctx, "boom", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Exception != "boom!" {
		t.Errorf("report = %+v, want exception \"boom!\"", rep)
	}
}

func TestCMDLRestartsAfterCrash(t *testing.T) {
	counterFile := t.TempDir() + "/crashed"
	c, err := NewCMDL(helperSpawn(t, "REPLETE_HELPER_CRASH_ONCE="+counterFile))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()
	waitConnected(t, c, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rep, err := c.Eval(ctx, "never answered", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Exception != "CMDL died." {
		t.Fatalf("report = %+v, want synthetic crash exception", rep)
	}

	waitConnected(t, c, 2*time.Second)
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	rep2, err := c.Eval(ctx2, "back up", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if rep2.Evaluation != "back up" {
		t.Errorf("report after restart = %+v", rep2)
	}
}

func TestCMDLDestroyIsIdempotent(t *testing.T) {
	c, err := NewCMDL(helperSpawn(t))
	if err != nil {
		t.Fatal(err)
	}
	waitConnected(t, c, 2*time.Second)
	if err := c.Destroy(); err != nil {
		t.Fatal(err)
	}
	if err := c.Destroy(); err != nil {
		t.Errorf("second Destroy returned %v, want nil", err)
	}
}
