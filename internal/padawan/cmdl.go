package padawan

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SpawnFunc starts a child process configured to dial back to the given
// loopback port, the way the coordinator's "spawn initial padawan" step
// (spec §4.7) is parameterized by platform.
type SpawnFunc func(port int) (*exec.Cmd, error)

// CMDL is the command-line padawan transport (spec §4.6): one TCP server,
// reused across restarts, with the first-accepted connection per child
// treated as the channel and one JSON object per line in both directions.
type CMDL struct {
	listener net.Listener
	spawn    SpawnFunc

	mu       sync.Mutex
	conn     net.Conn
	enc      *json.Encoder
	pending  map[string]chan Report
	shutdown bool

	done chan struct{}
}

// NewCMDL opens an ephemeral loopback TCP listener and starts the
// supervision loop: spawn a child, accept its connection, serve it until
// it dies, and (unless Destroy was called) spawn a replacement — the
// same listener the whole time (spec §4.6 "Supervision").
func NewCMDL(spawn SpawnFunc) (*CMDL, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("cmdl: listen: %w", err)
	}
	c := &CMDL{
		listener: ln,
		spawn:    spawn,
		pending:  map[string]chan Report{},
		done:     make(chan struct{}),
	}
	go c.supervise()
	return c, nil
}

// Port is the loopback port a spawned child should dial.
func (c *CMDL) Port() int {
	return c.listener.Addr().(*net.TCPAddr).Port
}

func (c *CMDL) supervise() {
	for {
		cmd, err := c.spawn(c.Port())
		if err != nil {
			fmt.Printf("  \033[2m[cmdl] spawn failed: %v\033[0m\n", err)
			return
		}
		if err := cmd.Start(); err != nil {
			fmt.Printf("  \033[2m[cmdl] start failed: %v\033[0m\n", err)
			return
		}

		conn, err := c.listener.Accept()
		if err != nil {
			// Listener closed — only happens on Destroy.
			return
		}

		c.mu.Lock()
		c.conn = conn
		c.enc = json.NewEncoder(conn)
		c.mu.Unlock()
		fmt.Printf("  \033[2m[cmdl] padawan connected\033[0m\n")

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.enc = nil
		died := c.pending
		c.pending = map[string]chan Report{}
		shuttingDown := c.shutdown
		c.mu.Unlock()

		for _, ch := range died {
			ch <- Report{Exception: "CMDL died."}
		}
		fmt.Printf("  \033[2m[cmdl] padawan died, %d pending settled\033[0m\n", len(died))

		if shuttingDown {
			return
		}
	}
}

func (c *CMDL) readLoop(conn net.Conn) {
	dec := json.NewDecoder(conn)
	for {
		var r Report
		if err := dec.Decode(&r); err != nil {
			return
		}
		c.mu.Lock()
		ch := c.pending[r.ID]
		delete(c.pending, r.ID)
		c.mu.Unlock()
		if ch != nil {
			ch <- r
		}
	}
}

// WaitConnected blocks until a child has connected, or ctx is done — for
// callers (cmd/replete) that need the initial padawan up before sending
// its first command.
func (c *CMDL) WaitConnected(ctx context.Context) error {
	for {
		c.mu.Lock()
		connected := c.conn != nil
		c.mu.Unlock()
		if connected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Eval sends {script, imports, wait, id} and blocks for the matching
// report, or until ctx is done.
func (c *CMDL) Eval(ctx context.Context, script string, imports []string, wait bool) (Report, error) {
	id := uuid.NewString()
	ch := make(chan Report, 1)

	c.mu.Lock()
	if c.enc == nil {
		c.mu.Unlock()
		return Report{}, fmt.Errorf("cmdl: no connected padawan")
	}
	c.pending[id] = ch
	err := c.enc.Encode(Command{Script: script, Imports: imports, Wait: wait, ID: id})
	c.mu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return Report{}, fmt.Errorf("cmdl: send: %w", err)
	}

	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// Destroy marks the transport as shutting down and closes the current
// connection and listener. Idempotent (spec §5, "Shutdown ... is
// idempotent").
func (c *CMDL) Destroy() error {
	c.mu.Lock()
	already := c.shutdown
	c.shutdown = true
	conn := c.conn
	c.mu.Unlock()
	if already {
		return nil
	}
	if conn != nil {
		conn.Close()
	}
	return c.listener.Close()
}
