package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	driveragent "pickup-market/cmd/driver_agent"
	selleragent "pickup-market/cmd/seller_agent"
	"pickup-market/internal/cli"
)

const defaultConfigPath = "config/agent.yaml"

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, agentArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// run the agent specified by the mode flag
	switch mode {

	case cli.ModeDriverAgent:
		fs := flag.NewFlagSet(cli.ModeDriverAgent, flag.ContinueOnError)
		configPath := fs.String("config", defaultConfigPath, "Path to the agent YAML config")
		port := fs.Int("port", 0, "Local API port (overrides agent.driver_port)")
		cli.AttachUsage(fs, cli.ModeDriverAgent)

		if err := fs.Parse(agentArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *port < 0 || *port > 65535 {
			fmt.Fprintln(os.Stderr, "Error: --port must be within 0..65535")
			fs.Usage()
			os.Exit(2)
		}
		if err := driveragent.Run(ctx, *configPath, *port); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeSellerAgent:
		fs := flag.NewFlagSet(cli.ModeSellerAgent, flag.ContinueOnError)
		configPath := fs.String("config", defaultConfigPath, "Path to the agent YAML config")
		port := fs.Int("port", 0, "Local API port (overrides agent.seller_port)")
		prefetch := fs.Int("prefetch", 8, "RabbitMQ prefetch count for the location fanout consumer")
		cli.AttachUsage(fs, cli.ModeSellerAgent)

		if err := fs.Parse(agentArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *port < 0 || *port > 65535 {
			fmt.Fprintln(os.Stderr, "Error: --port must be within 0..65535")
			fs.Usage()
			os.Exit(2)
		}
		if *prefetch <= 0 {
			fmt.Fprintln(os.Stderr, "Error: --prefetch must be > 0")
			fs.Usage()
			os.Exit(2)
		}
		if err := selleragent.Run(ctx, *configPath, *port, *prefetch); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}
