package padawan

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Kind distinguishes the ways a WEBL padawan can be embedded in a host
// page. All four carry the identical wire protocol — they differ only in
// how the host page embeds the execution context, not in what's sent
// over the WebSocket (spec §9 "Padawan polymorphism").
type Kind string

const (
	KindWorker    Kind = "worker"
	KindIframe    Kind = "iframe"
	KindPopup     Kind = "popup"
	KindTopWindow Kind = "top-window"
)

// WEBL is the browser padawan transport (spec §4.6): an HTTP+WebSocket
// server standing in for postMessage, framed identically to CMDL
// (one JSON object per logical message, each direction).
type WEBL struct {
	Kind   Kind
	Secret string

	upgrader websocket.Upgrader

	mu       sync.Mutex
	conn     *websocket.Conn
	pending  map[string]chan Report
	shutdown bool
}

// NewWEBL mints a fresh shared secret and returns a WEBL ready to accept
// one connection at a time via ServeWS.
func NewWEBL(kind Kind) (*WEBL, error) {
	secret, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("webl: %w", err)
	}
	return &WEBL{
		Kind:    kind,
		Secret:  secret,
		pending: map[string]chan Report{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // padawans commonly have the null origin
		},
	}, nil
}

// ServeWS upgrades the request to a WebSocket, authenticating it against
// the shared secret query parameter, and serves it as this padawan's
// channel until it disconnects, settling any pending evaluations and
// clearing the pending table — the WEBL analogue of CMDL's "child exits"
// supervision step.
func (w *WEBL) ServeWS(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("secret") != w.Secret {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}

	w.mu.Lock()
	if w.conn != nil {
		w.conn.Close()
	}
	w.conn = conn
	w.mu.Unlock()
	fmt.Printf("  \033[2m[webl] %s padawan connected\033[0m\n", w.Kind)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var rep Report
		if err := json.Unmarshal(data, &rep); err != nil {
			continue
		}
		w.mu.Lock()
		ch := w.pending[rep.ID]
		delete(w.pending, rep.ID)
		w.mu.Unlock()
		if ch != nil {
			ch <- rep
		}
	}

	w.mu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	died := w.pending
	w.pending = map[string]chan Report{}
	w.mu.Unlock()
	for _, ch := range died {
		ch <- Report{Exception: "WEBL died."}
	}
	fmt.Printf("  \033[2m[webl] %s padawan disconnected, %d pending settled\033[0m\n", w.Kind, len(died))
}

// Eval sends {script, imports, wait, id} over the current WebSocket
// connection and blocks for the matching report, or until ctx is done.
func (w *WEBL) Eval(ctx context.Context, script string, imports []string, wait bool) (Report, error) {
	id := randomTokenMust()
	ch := make(chan Report, 1)

	w.mu.Lock()
	conn := w.conn
	if conn == nil {
		w.mu.Unlock()
		return Report{}, fmt.Errorf("webl: no connected padawan")
	}
	w.pending[id] = ch
	payload, err := json.Marshal(Command{Script: script, Imports: imports, Wait: wait, ID: id})
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, payload)
	}
	w.mu.Unlock()
	if err != nil {
		w.mu.Lock()
		delete(w.pending, id)
		w.mu.Unlock()
		return Report{}, fmt.Errorf("webl: send: %w", err)
	}

	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// Destroy closes the current connection, if any. Idempotent.
func (w *WEBL) Destroy() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutdown {
		return nil
	}
	w.shutdown = true
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// Bootstrap renders the HTML page spawning this padawan's execution
// context (spec §4.6's "generated creation script", left unspecified in
// shape — this follows the teacher's handleHTML convention of an
// importmap script plus a module bootstrap script injected before
// </head>). wsURL is this WEBL's WebSocket endpoint, including the
// shared-secret query parameter.
func (w *WEBL) Bootstrap(html, importMapJSON, wsURL string) string {
	inject := fmt.Sprintf(`<script type="importmap">%s</script>
<script type="module">
  // Browsers don't expose Node's util.inspect, so this is a small
  // platform-appropriate stand-in: quote strings, tag functions, print
  // Errors as their stack, recurse into arrays and objects, and fall back
  // to String() for the remaining primitives.
  function inspect(value, seen) {
    seen = seen || new Set();
    if (typeof value === "string") return JSON.stringify(value);
    if (typeof value === "function") return "[Function: " + (value.name || "anonymous") + "]";
    if (value === null || typeof value !== "object") return String(value);
    if (value instanceof Error) return value.stack || (value.name + ": " + value.message);
    if (seen.has(value)) return "[Circular]";
    seen.add(value);
    if (Array.isArray(value)) {
      return "[ " + value.map((v) => inspect(v, seen)).join(", ") + " ]";
    }
    const entries = Object.entries(value).map(([k, v]) => k + ": " + inspect(v, seen));
    const tag = value.constructor && value.constructor.name !== "Object" ? value.constructor.name + " " : "";
    return tag + "{ " + entries.join(", ") + " }";
  }

  const socket = new WebSocket(%q);
  socket.addEventListener("message", async (event) => {
    const cmd = JSON.parse(event.data);
    let report;
    try {
      const imports = await Promise.all(cmd.imports.map((u) => import(u)));
      globalThis.$imports = imports;
      const evaluation = cmd.wait ? await eval(cmd.script) : eval(cmd.script);
      report = { id: cmd.id, evaluation: inspect(evaluation) };
    } catch (err) {
      report = { id: cmd.id, exception: inspect(err) };
    }
    socket.send(JSON.stringify(report));
  });
</script>
`, importMapJSON, wsURL)

	if idx := strings.Index(html, "</head>"); idx >= 0 {
		return html[:idx] + inject + html[idx:]
	}
	return inject + html
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func randomTokenMust() string {
	s, err := randomToken()
	if err != nil {
		panic(err)
	}
	return s
}
