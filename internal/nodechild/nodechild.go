// Package nodechild supplies the CMDL padawan's "spawn a child configured
// to dial back" half of spec §4.6: a small JS bootstrap, written to a
// temp file once per process and handed to node (or any runtime whose
// module loader can dynamic-import() an http(s):// specifier — Deno and
// Bun both qualify; stock Node needs --experimental-network-imports) as
// its entry script, plus the port it should connect to.
package nodechild

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/asaddevil123/Replete/internal/padawan"
)

// bootstrap speaks the CMDL wire protocol directly: dial back, read one
// JSON Command per line, resolve its imports, indirect-eval its script,
// write one JSON Report per line. Grounded on spec §4.6's own description
// of what a padawan does with a received Command.
const bootstrap = `
const net = require("net");
const readline = require("readline");
const { inspect } = require("util");

const port = parseInt(process.argv[2], 10);
const socket = net.connect(port, "127.0.0.1");
const rl = readline.createInterface({ input: socket });

rl.on("line", async (line) => {
  let cmd;
  try {
    cmd = JSON.parse(line);
  } catch {
    return;
  }
  let report;
  try {
    const imports = await Promise.all((cmd.imports || []).map((u) => import(u)));
    globalThis.$imports = imports;
    const indirectEval = eval;
    const evaluation = cmd.wait ? await indirectEval(cmd.script) : indirectEval(cmd.script);
    report = { id: cmd.id, evaluation: inspect(evaluation) };
  } catch (err) {
    report = { id: cmd.id, exception: inspect(err) };
  }
  socket.write(JSON.stringify(report) + "\n");
});

socket.on("close", () => process.exit(0));
`

// NewSpawnFunc writes the bootstrap to a temp file and returns a
// padawan.SpawnFunc that launches nodeBin against it, plus a cleanup
// function the caller should run once the CMDL padawan is destroyed.
func NewSpawnFunc(nodeBin string) (padawan.SpawnFunc, func() error, error) {
	f, err := os.CreateTemp("", "replete-padawan-*.cjs")
	if err != nil {
		return nil, nil, fmt.Errorf("nodechild: %w", err)
	}
	if _, err := f.WriteString(bootstrap); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, nil, fmt.Errorf("nodechild: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, nil, fmt.Errorf("nodechild: %w", err)
	}
	path := f.Name()

	spawn := func(port int) (*exec.Cmd, error) {
		cmd := exec.Command(nodeBin, "--experimental-network-imports", path, strconv.Itoa(port))
		cmd.Stderr = os.Stderr
		return cmd, nil
	}
	cleanup := func() error { return os.Remove(path) }
	return spawn, cleanup, nil
}
