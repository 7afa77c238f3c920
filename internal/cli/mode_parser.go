package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeDriverAgent = "driver-agent"
	ModeSellerAgent = "seller-agent"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeDriverAgent, "driver", "d":
		return ModeDriverAgent, true
	case ModeSellerAgent, "seller", "s":
		return ModeSellerAgent, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `driver-agent --config=agent.yaml`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<agent>")
	}

	if m, ok := isKnownMode(mode); ok {
		mode = m
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./pickup-agent --mode=<agent> [flags]

Agents (modes):
  driver-agent     Location tracking, nearby postings, cart and driver contact actions
  seller-agent     Seller contact actions and live driver location

Examples:
  ./pickup-agent --mode=driver-agent --config=./config/agent.yaml
  ./pickup-agent seller-agent --config=./config/agent.yaml --port=3201`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./pickup-agent --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
