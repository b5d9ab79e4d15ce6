package terminal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/antibyte/retrobasic/pkg/basic"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/shared"
	"github.com/antibyte/retrobasic/pkg/virtualfs"
)

// Session is one connected terminal: a program buffer edited in direct mode
// and an interpreter driven cooperatively while a program runs.
type Session struct {
	ID string

	mu      sync.Mutex
	fs      *virtualfs.VFS
	ip      *basic.Interpreter
	lines   map[int]string // numbered program lines
	running bool
	input   chan string
	stop    chan struct{}
	out     chan shared.Message

	lastActive time.Time
}

// NewSession creates a session bound to a filesystem namespace.
func NewSession(id string, fs *virtualfs.VFS) *Session {
	ip := basic.New(fs)
	ip.SetSessionID(id)
	return &Session{
		ID:         id,
		fs:         fs,
		ip:         ip,
		lines:      make(map[int]string),
		input:      make(chan string, 8),
		stop:       make(chan struct{}, 1),
		out:        ip.GetOutputChannel(),
		lastActive: time.Now(),
	}
}

// Output is the message stream the websocket layer forwards to the client.
func (s *Session) Output() <-chan shared.Message {
	return s.out
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// IdleSince reports the last client activity.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) print(text string) {
	s.out <- shared.Message{Type: shared.MessageTypeText, Content: text, SessionID: s.ID}
}

// HandleLine processes one line typed by the client: input for a running
// program, a numbered program line, or a direct command.
func (s *Session) HandleLine(line string) {
	s.touch()
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		select {
		case s.input <- line:
		default:
		}
		return
	}
	s.handleDirect(strings.TrimSpace(line))
}

// HandleKey forwards key events to the interpreter for INKEY$.
func (s *Session) HandleKey(key string, down bool) {
	s.touch()
	if down {
		s.ip.PressKey(key)
	} else {
		s.ip.ReleaseKey(key)
	}
}

// Stop interrupts a running program.
func (s *Session) Stop() {
	select {
	case s.stop <- struct{}{}:
	default:
	}
	s.ip.Stop()
}

func (s *Session) handleDirect(line string) {
	if line == "" {
		return
	}

	// A leading line number edits the program buffer.
	if num, rest, ok := splitLineNumber(line); ok {
		s.mu.Lock()
		if rest == "" {
			delete(s.lines, num)
		} else {
			s.lines[num] = line
		}
		s.mu.Unlock()
		return
	}

	cmd, args := splitCommand(line)
	switch cmd {
	case "RUN":
		s.runProgram()
	case "LIST":
		s.listProgram()
	case "NEW":
		s.mu.Lock()
		s.lines = make(map[int]string)
		s.mu.Unlock()
		s.print("OK")
	case "LOAD":
		s.loadProgram(args)
	case "SAVE":
		s.saveProgram(args)
	case "FILES", "DIR":
		s.listFiles()
	case "KILL", "DELETE":
		s.deleteFile(args)
	case "CLS":
		s.out <- shared.Message{Type: shared.MessageTypeClear, SessionID: s.ID}
	case "HELP":
		s.print("commands: RUN LIST NEW LOAD SAVE FILES KILL CLS HELP")
	default:
		s.print(fmt.Sprintf("unknown command: %s", cmd))
	}
}

func splitLineNumber(line string) (int, string, bool) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, "", false
	}
	num, err := strconv.Atoi(line[:i])
	if err != nil {
		return 0, "", false
	}
	return num, strings.TrimSpace(line[i:]), true
}

func splitCommand(line string) (string, string) {
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return strings.ToUpper(line[:i]), strings.TrimSpace(line[i:])
	}
	return strings.ToUpper(line), ""
}

// renderProgram flattens the numbered buffer into source text.
func (s *Session) renderProgram() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	nums := make([]int, 0, len(s.lines))
	for n := range s.lines {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	var b strings.Builder
	for _, n := range nums {
		b.WriteString(s.lines[n])
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *Session) listProgram() {
	source := s.renderProgram()
	if source == "" {
		s.print("no program")
		return
	}
	for _, line := range strings.Split(strings.TrimRight(source, "\n"), "\n") {
		s.print(line)
	}
}

func (s *Session) loadProgram(args string) {
	name := strings.Trim(strings.TrimSpace(args), `"`)
	if name == "" {
		s.print("LOAD needs a filename")
		return
	}
	content, err := s.fs.ReadFile(name, s.ID)
	if err != nil {
		s.print(fmt.Sprintf("cannot load %s", name))
		return
	}
	s.mu.Lock()
	s.lines = make(map[int]string)
	lineNo := 10
	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if num, _, ok := splitLineNumber(strings.TrimSpace(line)); ok {
			s.lines[num] = strings.TrimSpace(line)
		} else {
			s.lines[lineNo] = strconv.Itoa(lineNo) + " " + line
		}
		lineNo += 10
	}
	s.mu.Unlock()
	s.print("OK")
}

func (s *Session) saveProgram(args string) {
	name := strings.Trim(strings.TrimSpace(args), `"`)
	if name == "" {
		s.print("SAVE needs a filename")
		return
	}
	if err := s.fs.WriteFile(name, s.renderProgram(), s.ID); err != nil {
		s.print(fmt.Sprintf("cannot save %s: %v", name, err))
		return
	}
	s.print("OK")
}

func (s *Session) listFiles() {
	infos, err := s.fs.List(s.ID)
	if err != nil {
		s.print("cannot list files")
		return
	}
	if len(infos) == 0 {
		s.print("no files")
		return
	}
	for _, info := range infos {
		s.print(fmt.Sprintf("%-16s %6d", info.Name, info.Size))
	}
}

func (s *Session) deleteFile(args string) {
	name := strings.Trim(strings.TrimSpace(args), `"`)
	if name == "" {
		s.print("KILL needs a filename")
		return
	}
	if err := s.fs.Delete(name, s.ID); err != nil {
		s.print(fmt.Sprintf("cannot delete %s", name))
		return
	}
	s.print("OK")
}

// runProgram loads the buffer and drives the interpreter until it finishes,
// faults or is stopped. Wait states map onto the session's input channel and
// short sleeps, so one goroutine serves the whole run.
func (s *Session) runProgram() {
	source := s.renderProgram()
	if source == "" {
		s.print("no program")
		return
	}
	if err := s.ip.LoadProgram(source); err != nil {
		s.print(err.Error())
		return
	}
	if err := s.ip.Start(); err != nil {
		s.print(err.Error())
		return
	}
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	s.out <- shared.Message{Type: shared.MessageTypeMode, Content: "run", SessionID: s.ID}

	go s.driveRun()
}

func (s *Session) driveRun() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.out <- shared.Message{Type: shared.MessageTypeMode, Content: "idle", SessionID: s.ID}
	}()

	for {
		select {
		case <-s.stop:
			s.ip.Stop()
			s.print("break")
			return
		default:
		}

		switch s.ip.RunBatch(0) {
		case basic.StateRunning:
			// Yield briefly so output drains and stop requests are seen.
			time.Sleep(time.Millisecond)
		case basic.StateAwaitInput:
			select {
			case line := <-s.input:
				if err := s.ip.ProvideInput(line); err != nil {
					logger.Warn(logger.AreaTerminal, "input rejected: %v", err)
				}
			case <-s.stop:
				s.ip.Stop()
				s.print("break")
				return
			}
		case basic.StateSleeping:
			time.Sleep(5 * time.Millisecond)
		case basic.StateFinished:
			return
		case basic.StateFaulted:
			return
		default:
			return
		}
	}
}
