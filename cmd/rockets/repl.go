package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/pederhe/rockets/pkg/log"
	"github.com/pederhe/rockets/pkg/rockets/client"
	"github.com/pederhe/rockets/pkg/rockets/common"
	"github.com/pederhe/rockets/pkg/utils"
	"go.uber.org/zap"
)

func runREPL(r *runner) {
	fmt.Printf("Rockets %s (%s,%s)\n", Version, BuildTime, CommitHash)
	fmt.Printf("Server: %s\n", r.client.URL())
	fmt.Println("Type /help for the list of commands")
	if log.IsDebugMode() {
		fmt.Print(utils.ColoredText("Debug mode enabled. Logs saved to: "+log.GetDebugLogPath()+"\n", utils.ColorYellow))
	}

	completer := readline.NewPrefixCompleter(
		readline.PcItem("/notify"),
		readline.PcItem("/request"),
		readline.PcItem("/batch"),
		readline.PcItem("/listen"),
		readline.PcItem("/status"),
		readline.PcItem("/help"),
		readline.PcItem("/exit"),
	)

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".rockets_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            utils.ColoredText("rockets> ", utils.ColorPurple),
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		AutoComplete:      completer,
	})
	if err != nil {
		fmt.Println("Error initializing readline:", err)
		log.LogDebug("failed to initialize readline", zap.Error(err))
		return
	}
	defer rl.Close()

	l := &listener{runner: r}
	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			} else if err == io.EOF {
				fmt.Println("Exiting")
				return
			}
			fmt.Println("Error reading input:", err)
			log.LogDebug("failed to read input", zap.Error(err))
			continue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "/exit" {
			fmt.Println("Exiting")
			return
		}

		l.ensure()
		handleSlashCommand(r, input)
	}
}

// listener keeps a notification subscription alive across reconnects
type listener struct {
	runner *runner
	sub    *client.Subscription
}

func (l *listener) ensure() {
	if l.sub != nil {
		select {
		case <-l.sub.Done():
		default:
			return
		}
	}
	out := l.runner.out
	l.sub = l.runner.client.SubscribeNotifications(func(n common.Notification) {
		params, _ := json.Marshal(n.Params)
		fmt.Fprintf(out, "%s %s\n", utils.ColoredText("<- "+n.Method, utils.ColorBlue), params)
	})
}

func handleSlashCommand(r *runner, input string) {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]
	log.LogDebug("slash command", zap.String("command", cmd))

	var err error
	switch cmd {
	case "/notify", "/request", "/batch":
		err = r.execute(strings.TrimPrefix(cmd, "/"), args)
	case "/listen":
		var d time.Duration
		if len(args) > 0 {
			if d, err = time.ParseDuration(args[0]); err != nil {
				break
			}
		}
		fmt.Println(utils.ColoredText("Listening for notifications, Ctrl+C to stop", utils.ColorCyan))
		r.listen(d)
	case "/status":
		state := r.client.Async().State()
		color := utils.ColorYellow
		if state == client.Connected {
			color = utils.ColorGreen
		}
		fmt.Printf("%s %s\n", r.client.URL(), utils.ColoredText(state.String(), color))
	case "/help":
		displayHelp()
	default:
		err = fmt.Errorf("unknown command %s, type /help for the list of commands", cmd)
	}

	if err != nil {
		fmt.Println(utils.ColoredText("Error: "+err.Error(), utils.ColorRed))
	}
}
