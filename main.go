package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danswartzendruber/liner"

	"github.com/antibyte/retrobasic/pkg/auth"
	"github.com/antibyte/retrobasic/pkg/basic"
	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/shared"
	"github.com/antibyte/retrobasic/pkg/terminal"
	"github.com/antibyte/retrobasic/pkg/virtualfs"
)

func main() {
	configPath := flag.String("config", "settings.cfg", "configuration file")
	runFile := flag.String("run", "", "run a BASIC program locally and exit")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash for an access password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	if err := configuration.Initialize(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "cannot initialize configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "cannot initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Shutdown()
	logger.Info(logger.AreaConfig, "started with configuration %s", *configPath)

	if *runFile != "" {
		os.Exit(runLocal(*runFile))
	}
	serve()
}

// serve starts the websocket terminal server.
func serve() {
	fs, err := virtualfs.Open("")
	if err != nil {
		logger.Fatal(logger.AreaFileSystem, "cannot open filesystem: %v", err)
	}
	defer fs.Close()

	manager := terminal.NewManager(fs)
	defer manager.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", auth.SessionHandler)
	mux.HandleFunc("/ws", terminal.Handler(manager))
	mux.Handle("/", http.FileServer(http.Dir("static")))

	bind := configuration.GetString("Server", "bind", "0.0.0.0")
	port := configuration.GetInt("Server", "port", 8080)
	addr := fmt.Sprintf("%s:%d", bind, port)

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info(logger.AreaGeneral, "shutting down")
		server.Close()
	}()

	logger.Info(logger.AreaGeneral, "listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal(logger.AreaGeneral, "server error: %v", err)
	}
}

// runLocal executes a program file on the console, with line editing for
// INPUT prompts.
func runLocal(path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", path, err)
		return 1
	}

	ip := basic.New(nil)
	if err := ip.LoadProgram(string(source)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := ip.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	prompt := "? "
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ip.GetOutputChannel() {
			switch msg.Type {
			case shared.MessageTypeText:
				if msg.NoNewline {
					fmt.Print(msg.Content)
				} else {
					fmt.Println(msg.Content)
				}
			case shared.MessageTypeError:
				fmt.Fprintln(os.Stderr, msg.Content)
			case shared.MessageTypePrompt:
				prompt = msg.Content
			case shared.MessageTypeClear:
				fmt.Print("\033[2J\033[H")
			case shared.MessageTypeBeep:
				fmt.Print("\a")
			}
		}
	}()

	exitCode := 0
loop:
	for {
		switch ip.RunBatch(0) {
		case basic.StateRunning:
		case basic.StateAwaitInput:
			text, err := line.Prompt(prompt)
			if err != nil {
				break loop
			}
			if !strings.HasSuffix(text, "\n") {
				line.AppendHistory(text)
			}
			if err := ip.ProvideInput(text); err != nil {
				fmt.Fprintln(os.Stderr, err)
				break loop
			}
		case basic.StateSleeping:
			time.Sleep(5 * time.Millisecond)
		case basic.StateFaulted:
			exitCode = 1
			break loop
		default:
			break loop
		}
	}

	close(ip.OutputChan)
	<-done
	return exitCode
}
