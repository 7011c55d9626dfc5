package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pederhe/rockets/config"
	"github.com/pederhe/rockets/pkg/log"
	"github.com/pederhe/rockets/pkg/rockets/client"
	"github.com/pederhe/rockets/pkg/utils"
	"go.uber.org/zap"
)

// Version information, injected by compiler
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, utils.ColoredText("Error: "+err.Error(), utils.ColorRed))
		return 1
	}

	fs := flag.NewFlagSet("rockets", flag.ContinueOnError)
	fs.Usage = displayHelp
	urlFlag := fs.String("url", settings.URL, "Address of the Rockets server")
	timeoutFlag := fs.Duration("timeout", settings.ResponseTimeout, "How long to wait for a response, 0 waits forever")
	debugFlag := fs.Bool("debug", settings.Debug, "Enable debug mode to log client traffic")
	versionFlag := fs.Bool("v", false, "Show version information")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *versionFlag {
		fmt.Printf("Rockets version: %s\n", Version)
		fmt.Printf("Build time: %s\n", BuildTime)
		fmt.Printf("Commit hash: %s\n", CommitHash)
		return 0
	}

	if *debugFlag {
		if err := log.InitDebugMode(""); err != nil {
			fmt.Fprintln(os.Stderr, utils.ColoredText("Warning: "+err.Error(), utils.ColorYellow))
		} else {
			defer log.CloseDebugLog()
		}
	}

	rest := fs.Args()
	if len(rest) > 0 {
		switch rest[0] {
		case "config":
			log.LogDebug("config command", zap.Strings("args", rest[1:]))
			return handleConfigCommand(rest[1:])
		case "help":
			displayHelp()
			return 0
		}
	}

	c := client.NewClient(*urlFlag, &client.Options{
		Subprotocols: settings.Subprotocols,
		Logger:       log.L(),
	})
	defer c.Close()

	r := &runner{client: c, timeout: *timeoutFlag, out: os.Stdout}
	if len(rest) == 0 {
		log.LogDebug("starting REPL", zap.String("url", c.URL()))
		runREPL(r)
		return 0
	}

	if err := r.execute(rest[0], rest[1:]); err != nil {
		fmt.Fprintln(os.Stderr, utils.ColoredText("Error: "+err.Error(), utils.ColorRed))
		log.LogDebug("command failed", zap.String("command", rest[0]), zap.Error(err))
		return 1
	}
	return 0
}

func handleConfigCommand(args []string) int {
	const usage = "Usage: rockets config [set|unset|list] [--global] [key] [value]"

	isGlobal := false
	var cmdArgs []string
	for _, arg := range args {
		if arg == "--global" {
			isGlobal = true
			continue
		}
		cmdArgs = append(cmdArgs, arg)
	}
	if len(cmdArgs) == 0 {
		fmt.Println(usage)
		return 2
	}

	switch cmdArgs[0] {
	case "set":
		if len(cmdArgs) < 3 {
			fmt.Println("Usage: rockets config set [--global] [key] [value]")
			return 2
		}
		value := strings.Join(cmdArgs[2:], " ")
		if err := config.Set(cmdArgs[1], value, isGlobal); err != nil {
			fmt.Println(utils.ColoredText("Error: "+err.Error(), utils.ColorRed))
			return 1
		}
		fmt.Printf("Set %s = %s\n", cmdArgs[1], value)
	case "unset":
		if len(cmdArgs) < 2 {
			fmt.Println("Usage: rockets config unset [--global] [key]")
			return 2
		}
		if err := config.Unset(cmdArgs[1], isGlobal); err != nil {
			fmt.Println(utils.ColoredText("Error: "+err.Error(), utils.ColorRed))
			return 1
		}
		fmt.Printf("Removed setting %s\n", cmdArgs[1])
	case "list":
		lines := config.List()
		if len(lines) == 0 {
			fmt.Println("No configuration settings found.")
			return 0
		}
		fmt.Println("Current configuration settings:")
		fmt.Println("------------------------------")
		for _, line := range lines {
			fmt.Println(line)
		}
		fmt.Println("------------------------------")
	default:
		fmt.Println("Unknown config command. Available commands: set, unset, list")
		return 2
	}
	return 0
}

func displayHelp() {
	fmt.Println("Rockets - JSON-RPC client over WebSocket")
	fmt.Printf("Version: %s, Build time: %s, Commit hash: %s\n\n", Version, BuildTime, CommitHash)

	fmt.Println("USAGE:")
	fmt.Println("  rockets [options]                       Start the interactive shell")
	fmt.Println("  rockets [options] [command] [args]")

	fmt.Println("\nCOMMANDS:")
	fmt.Println("  notify <method> [params]   - Send a notification")
	fmt.Println("  request <method> [params]  - Send a request and print the result")
	fmt.Println("  batch <json-array>         - Send a batch, each entry {\"method\", \"params\", \"notify\"}")
	fmt.Println("  config                     - Manage configuration settings")
	fmt.Println("             Usage: rockets config [set|unset|list] [--global] [key] [value]")
	fmt.Println("  help                       - Display this help information")
	fmt.Println("\n  Params are parsed as JSON. Anything else is sent as a single string.")

	fmt.Println("\nOPTIONS:")
	fmt.Println("  -url      - Address of the Rockets server (config key: url)")
	fmt.Println("  -timeout  - Response timeout, e.g. 10s (config key: response_timeout)")
	fmt.Println("  -debug    - Enable debug mode to log client traffic (config key: debug)")
	fmt.Println("  -v        - Show version information")

	fmt.Println("\nENVIRONMENT:")
	fmt.Println("  ROCKETS_URL, ROCKETS_SUBPROTOCOLS, ROCKETS_RESPONSE_TIMEOUT, ROCKETS_DEBUG")
	fmt.Println("  A .env file in the working directory is loaded as well.")

	fmt.Println("\nINTERACTIVE COMMANDS:")
	fmt.Println("  /notify <method> [params]  - Send a notification")
	fmt.Println("  /request <method> [params] - Send a request")
	fmt.Println("  /batch <json-array>        - Send a batch")
	fmt.Println("  /listen [duration]         - Print server notifications, until Ctrl+C by default")
	fmt.Println("  /status                    - Show the connection state")
	fmt.Println("  /exit                      - Exit the program")
	fmt.Println("  /help                      - Show help information")
}
