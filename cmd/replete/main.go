package main

import (
	"log"
	"os"

	"github.com/thought-machine/go-flags"

	"github.com/asaddevil123/Replete/internal/evalcmd"
	"github.com/asaddevil123/Replete/internal/servecmd"
)

var opts = struct {
	Usage string

	Serve struct {
		Root         string `short:"r" long:"root" required:"true" description:"Directory every locator is rooted at"`
		SourceAddr   string `long:"source-addr" default:"127.0.0.1:8081" description:"HTTP address for the source server (C5)"`
		Transport    string `long:"transport" default:"cmdl" description:"Padawan transport: cmdl or webl"`
		NodeBin      string `long:"node-bin" default:"node" description:"Node.js binary used to spawn the CMDL padawan"`
		WEBLAddr     string `long:"webl-addr" default:"127.0.0.1:8082" description:"HTTP address for the WEBL bootstrap page and WebSocket, when --transport=webl"`
	} `command:"serve" description:"Start a coordinator, reading host commands as line-delimited JSON from stdin"`

	Eval struct {
		Root     string `short:"r" long:"root" required:"true" description:"Directory the locator is rooted at"`
		Locator  string `short:"l" long:"locator" required:"true" description:"Parent module URL for relative imports"`
		Source   string `short:"s" long:"source" description:"Source fragment to evaluate"`
		File     string `short:"f" long:"file" description:"Read the source fragment from this file instead of --source"`
		NodeBin  string `long:"node-bin" default:"node" description:"Node.js binary used to spawn the CMDL padawan"`
	} `command:"eval" description:"Evaluate one fragment against a fresh padawan and print the result"`
}{
	Usage: `
replete is an interactive JavaScript module REPL evaluator.

It provides these operations:
  - serve: run a coordinator, reading host commands as line-delimited JSON
    from stdin and writing results to stdout
  - eval:  evaluate a single fragment against a one-shot padawan, for
    smoke-testing without a full host
`,
}

var subCommands = map[string]func() int{
	"serve": func() int {
		if err := servecmd.Run(servecmd.Args{
			Root:       opts.Serve.Root,
			SourceAddr: opts.Serve.SourceAddr,
			Transport:  opts.Serve.Transport,
			NodeBin:    opts.Serve.NodeBin,
			WEBLAddr:   opts.Serve.WEBLAddr,
		}); err != nil {
			log.Fatal(err)
		}
		return 0
	},
	"eval": func() int {
		result, err := evalcmd.Run(evalcmd.Args{
			Root:    opts.Eval.Root,
			Locator: opts.Eval.Locator,
			Source:  opts.Eval.Source,
			File:    opts.Eval.File,
			NodeBin: opts.Eval.NodeBin,
		})
		if err != nil {
			log.Fatal(err)
		}
		if result.Exception != "" {
			log.Printf("exception: %s", result.Exception)
			return 1
		}
		log.Printf("evaluation: %s", result.Evaluation)
		return 0
	},
}

func main() {
	p := flags.NewParser(&opts, flags.Default)
	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}
	if p.Active == nil {
		p.WriteHelp(os.Stderr)
		os.Exit(1)
	}
	os.Exit(subCommands[p.Active.Name]())
}
