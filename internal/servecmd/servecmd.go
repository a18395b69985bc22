// Package servecmd implements the `replete serve` CLI verb: wire one
// host, registry, source server, padawan transport, and coordinator
// together, then drive the coordinator from line-delimited JSON commands
// on stdin (spec §6's host↔core protocol).
package servecmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/asaddevil123/Replete/internal/coordinator"
	"github.com/asaddevil123/Replete/internal/hostdefault"
	"github.com/asaddevil123/Replete/internal/nodechild"
	"github.com/asaddevil123/Replete/internal/padawan"
	"github.com/asaddevil123/Replete/internal/registry"
	"github.com/asaddevil123/Replete/internal/sourceserver"
)

// Args configures one `serve` invocation.
type Args struct {
	Root       string
	SourceAddr string
	Transport  string // "cmdl" or "webl"
	NodeBin    string
	WEBLAddr   string
}

// command is one line of stdin, spec §6's Command shape.
type command struct {
	Source   string      `json:"source"`
	Locator  string      `json:"locator"`
	Platform string      `json:"platform"`
	Scope    string      `json:"scope"`
	ID       interface{} `json:"id"`
}

// result is one line of stdout, spec §6's Result shape.
type result struct {
	ID         interface{} `json:"id,omitempty"`
	Evaluation string      `json:"evaluation,omitempty"`
	Exception  string      `json:"exception,omitempty"`
	Err        string      `json:"err,omitempty"`
}

// Run starts the coordinator and blocks, serving commands from stdin
// until it hits EOF.
func Run(args Args) error {
	host, err := hostdefault.New(args.Root)
	if err != nil {
		return err
	}
	defer host.Close()

	reg := registry.New(host)
	srv := &sourceserver.Server{Registry: reg, Host: host}

	mux := http.NewServeMux()
	mux.Handle("/", srv)
	go func() {
		fmt.Printf("  \033[2m[serve] source server on http://%s\033[0m\n", args.SourceAddr)
		if err := http.ListenAndServe(args.SourceAddr, mux); err != nil {
			fmt.Fprintf(os.Stderr, "  \033[31m[serve] source server: %v\033[0m\n", err)
		}
	}()

	pad, destroy, err := buildPadawan(args)
	if err != nil {
		return err
	}
	defer destroy()

	co := &coordinator.Coordinator{
		Registry: reg,
		Padawan:  pad,
		Specify:  httpSpecify(args.SourceAddr),
	}

	return serveStdin(co)
}

// buildPadawan constructs the padawan transport named by args.Transport,
// returning it alongside a cleanup function.
func buildPadawan(args Args) (padawan.Padawan, func(), error) {
	if args.Transport == "webl" {
		w, err := padawan.NewWEBL(padawan.KindWorker)
		if err != nil {
			return nil, nil, err
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/webl", w.ServeWS)
		mux.HandleFunc("/bootstrap", func(rw http.ResponseWriter, r *http.Request) {
			html := "<!doctype html><html><head><title>replete</title></head><body></body></html>"
			wsURL := "ws://" + args.WEBLAddr + "/webl?secret=" + w.Secret
			rw.Header().Set("Content-Type", "text/html")
			fmt.Fprint(rw, w.Bootstrap(html, "{}", wsURL))
		})
		go func() {
			fmt.Printf("  \033[2m[serve] webl padawan on http://%s\033[0m\n", args.WEBLAddr)
			if err := http.ListenAndServe(args.WEBLAddr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "  \033[31m[serve] webl: %v\033[0m\n", err)
			}
		}()
		return w, func() { w.Destroy() }, nil
	}

	spawn, cleanupBootstrap, err := nodechild.NewSpawnFunc(args.NodeBin)
	if err != nil {
		return nil, nil, err
	}
	c, err := padawan.NewCMDL(spawn)
	if err != nil {
		cleanupBootstrap()
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.WaitConnected(ctx); err != nil {
		c.Destroy()
		cleanupBootstrap()
		return nil, nil, fmt.Errorf("serve: initial padawan never connected: %w", err)
	}
	return c, func() {
		c.Destroy()
		cleanupBootstrap()
	}, nil
}

// httpSpecify converts a resolved+versionized file:// locator into the
// HTTP URL the source server running at sourceAddr will serve it at
// (spec §4.7 step 3's "specify hook").
func httpSpecify(sourceAddr string) coordinator.SpecifyHook {
	return func(locator string) string {
		if !strings.HasPrefix(locator, "file://") {
			return locator
		}
		return "http://" + sourceAddr + strings.TrimPrefix(locator, "file://")
	}
}

func serveStdin(co *coordinator.Coordinator) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var outMu sync.Mutex
	enc := json.NewEncoder(os.Stdout)
	write := func(r result) {
		outMu.Lock()
		defer outMu.Unlock()
		enc.Encode(r)
	}

	var wg sync.WaitGroup
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var cmd command
		if err := json.Unmarshal(line, &cmd); err != nil {
			write(result{Err: fmt.Sprintf("malformed command: %v", err)})
			continue
		}
		cmd := cmd
		wg.Add(1)
		go func() {
			defer wg.Done()
			evaluation, exception, err := co.Eval(context.Background(), cmd.Source, cmd.Locator, cmd.Scope)
			if err != nil {
				write(result{ID: cmd.ID, Err: err.Error()})
				return
			}
			write(result{ID: cmd.ID, Evaluation: evaluation, Exception: exception})
		}()
	}
	wg.Wait()
	return scanner.Err()
}
