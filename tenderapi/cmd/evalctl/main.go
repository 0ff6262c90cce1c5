package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cloudx-io/opentender/tenderapi"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitInput   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type connOptions struct {
	network string
	address string
	cid     uint
	port    uint
	timeout time.Duration
}

func (o connOptions) client() (*tenderapi.Client, error) {
	switch o.network {
	case "tcp":
		return tenderapi.NewTCPClient(o.address, o.timeout), nil
	case "vsock":
		return tenderapi.NewVsockClient(uint32(o.cid), uint32(o.port), o.timeout), nil
	default:
		return nil, fmt.Errorf("--network must be tcp or vsock, got %q", o.network)
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		showUsage(stderr)
		return exitInput
	}
	command, args := args[0], args[1:]
	if command == "help" || command == "--help" || command == "-h" {
		showUsage(stdout)
		return exitOK
	}

	fs := flag.NewFlagSet("evalctl "+command, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts connOptions
	fs.StringVar(&opts.network, "network", "tcp", "Transport: tcp or vsock")
	fs.StringVar(&opts.address, "address", "127.0.0.1:5000", "Service address (tcp)")
	fs.UintVar(&opts.cid, "cid", 16, "VM context id (vsock)")
	fs.UintVar(&opts.port, "port", 5000, "Service port (vsock)")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")

	var (
		outPath     string
		requestPath string
		sealRecord  bool
	)
	switch command {
	case "ping":
	case "key":
		fs.StringVar(&outPath, "out", "", "Write the public key PEM to this path (default: stdout)")
	case "evaluate":
		fs.StringVar(&requestPath, "request", "", "Evaluation request JSON (file path or inline, required)")
		fs.BoolVar(&sealRecord, "seal", false, "Ask the service to seal the evaluation record")
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", command)
		showUsage(stderr)
		return exitInput
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitInput
	}

	client, err := opts.client()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInput
	}
	ctx := context.Background()

	switch command {
	case "ping":
		start := time.Now()
		if err := client.Ping(ctx); err != nil {
			fmt.Fprintf(stderr, "Ping failed: %v\n", err)
			return exitFailure
		}
		fmt.Fprintf(stdout, "pong (%s)\n", time.Since(start).Round(time.Millisecond))
		return exitOK

	case "key":
		resp, err := client.PublicKey(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Key request failed: %v\n", err)
			return exitFailure
		}
		if outPath == "" {
			fmt.Fprint(stdout, resp.PublicKey)
			return exitOK
		}
		if err := os.WriteFile(outPath, []byte(resp.PublicKey), 0o644); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		fmt.Fprintf(stdout, "%s public key written to %s\n", resp.KeyAlgorithm, outPath)
		return exitOK

	default: // evaluate
		if requestPath == "" {
			fmt.Fprintln(stderr, "Error: --request is required")
			return exitInput
		}
		data := readInput(requestPath)
		if err := tenderapi.ValidateEvaluationRequest(data); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitInput
		}
		var req tenderapi.EvaluationRequest
		if err := json.Unmarshal(data, &req); err != nil {
			fmt.Fprintf(stderr, "Error parsing request: %v\n", err)
			return exitInput
		}
		if sealRecord {
			req.Seal = true
		}

		resp, err := client.Evaluate(ctx, req)
		if err != nil {
			fmt.Fprintf(stderr, "Evaluation failed: %v\n", err)
			return exitFailure
		}
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "Error marshaling JSON: %v\n", err)
			return exitFailure
		}
		fmt.Fprintln(stdout, string(out))
		if !resp.Success {
			return exitFailure
		}
		return exitOK
	}
}

func showUsage(w io.Writer) {
	fmt.Fprintln(w, "Evaluation Service Client")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  evalctl ping     [connection flags]")
	fmt.Fprintln(w, "  evalctl key      [connection flags] [--out <path>]")
	fmt.Fprintln(w, "  evalctl evaluate [connection flags] --request <json> [--seal]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Connection Flags:")
	fmt.Fprintln(w, "  --network <tcp|vsock>    Transport (default: tcp)")
	fmt.Fprintln(w, "  --address <host:port>    Service address for tcp (default: 127.0.0.1:5000)")
	fmt.Fprintln(w, "  --cid <id>               VM context id for vsock (default: 16)")
	fmt.Fprintln(w, "  --port <port>            Service port for vsock (default: 5000)")
	fmt.Fprintln(w, "  --timeout <duration>     Request timeout (default: 30s)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit Codes:")
	fmt.Fprintln(w, "  0 - Success")
	fmt.Fprintln(w, "  1 - Request failed or evaluation unsuccessful")
	fmt.Fprintln(w, "  2 - Invalid input")
}

func readInput(input string) []byte {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data
	}
	return []byte(input)
}
