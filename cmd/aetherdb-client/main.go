// Package main provides the aetherdb client binary with get, set, and rm
// subcommands speaking the wire protocol to a running server.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/jassi-singh/aetherdb/internal/client"
	"github.com/jassi-singh/aetherdb/internal/engine"
)

const defaultAddr = "127.0.0.1:4000"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	slogHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})
	slog.SetDefault(slog.New(slogHandler))

	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "get":
		return runGet(args[1:])
	case "set":
		return runSet(args[1:])
	case "rm":
		return runRm(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  aetherdb-client get KEY [--addr IP:PORT]")
	fmt.Fprintln(os.Stderr, "  aetherdb-client set KEY VALUE [--addr IP:PORT]")
	fmt.Fprintln(os.Stderr, "  aetherdb-client rm KEY [--addr IP:PORT]")
}

// parseArgs parses a subcommand's flags and returns its positional
// arguments plus the server address.
func parseArgs(name string, args []string, positional int) ([]string, string, error) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	addr := flags.String("addr", defaultAddr, "Server address, IP:PORT")
	if err := flags.Parse(args); err != nil {
		return nil, "", err
	}
	if flags.NArg() != positional {
		return nil, "", fmt.Errorf("%s expects %d argument(s), got %d", name, positional, flags.NArg())
	}
	return flags.Args(), *addr, nil
}

func dial(addr string) (*client.Client, error) {
	c, err := client.Connect(addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return nil, err
	}
	return c, nil
}

func runGet(args []string) int {
	pos, addr, err := parseArgs("get", args, 1)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	c, err := dial(addr)
	if err != nil {
		return 1
	}
	defer c.Close()

	value, err := c.Get(pos[0])
	if errors.Is(err, engine.ErrKeyNotFound) {
		fmt.Println("Key not found")
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	fmt.Println(value)
	return 0
}

func runSet(args []string) int {
	pos, addr, err := parseArgs("set", args, 2)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	c, err := dial(addr)
	if err != nil {
		return 1
	}
	defer c.Close()

	if err := c.Set(pos[0], pos[1]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func runRm(args []string) int {
	pos, addr, err := parseArgs("rm", args, 1)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	c, err := dial(addr)
	if err != nil {
		return 1
	}
	defer c.Close()

	err = c.Remove(pos[0])
	if errors.Is(err, engine.ErrKeyNotFound) {
		fmt.Println("Key not found")
		return 1
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
