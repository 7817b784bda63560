// Command kashk-cli is an interactive REPL over one engine instance:
// set/get/del/compact commands typed at a prompt, with line editing and
// history via peterh/liner.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/rezkam/kashk"
	"github.com/rezkam/kashk/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("kashk-cli: fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "kashk.yml", "path to the YAML config file")
	dataPath := flag.String("data", "", "override the data file path from config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("kashk-cli: %w", err)
	}
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}

	e, err := kashk.LoadWithThreshold(cfg.DataPath, cfg.Threshold)
	if err != nil {
		return fmt.Errorf("kashk-cli: open engine at %s: %w", cfg.DataPath, err)
	}
	defer e.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := cfg.DataPath + ".history"
	if f, err := os.Open(historyPath); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Printf("kashk-cli: data file %s, threshold %d bytes. Commands: set/get/del/compact/exit\n", cfg.DataPath, cfg.Threshold)

	for {
		input, err := line.Prompt("kashk> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("kashk-cli: read prompt: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if err := dispatch(e, input); err != nil {
			if err == errExit {
				return nil
			}
			fmt.Println("error:", err)
		}
	}
}

// errExit is returned by dispatch for exit/quit so run returns normally and
// its deferred history write and engine Close still happen.
var errExit = errors.New("exit")

func dispatch(e *kashk.Engine, input string) error {
	fields := strings.SplitN(input, " ", 3)
	switch fields[0] {
	case "exit", "quit":
		return errExit
	case "set":
		if len(fields) != 3 {
			return fmt.Errorf("usage: set <key> <value>")
		}
		return e.Set([]byte(fields[1]), []byte(fields[2]))
	case "get":
		if len(fields) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		v, ok, err := e.Get([]byte(fields[1]))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(not found)")
			return nil
		}
		fmt.Println(string(v))
		return nil
	case "del":
		if len(fields) != 2 {
			return fmt.Errorf("usage: del <key>")
		}
		return e.Delete([]byte(fields[1]))
	case "compact":
		return e.Compact()
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}
