package basic

import (
	"strings"

	"github.com/antibyte/retrobasic/pkg/shared"
)

// Screen, sound and graphics statements all translate to messages; the
// engine keeps no display state beyond the print cursor column.

func (ip *Interpreter) cmdCls(st *Statement) error {
	ip.printCol = 0
	ip.printPending = false
	ip.sendMessage(shared.Message{Type: shared.MessageTypeClear})
	return nil
}

func (ip *Interpreter) cmdLocate(st *Statement) error {
	parts := splitTopLevelCommas(st.Args)
	if len(parts) < 1 || len(parts) > 2 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "LOCATE row [, col]")
	}
	row, err := ip.evalNumber(parts[0])
	if err != nil {
		return err
	}
	col := 1.0
	if len(parts) == 2 && parts[1] != "" {
		col, err = ip.evalNumber(parts[1])
		if err != nil {
			return err
		}
	}
	ip.flushPrint()
	ip.printCol = int(roundHalfEven(col)) - 1
	ip.sendMessage(shared.Message{
		Type: shared.MessageTypeLocate,
		Row:  int(roundHalfEven(row)),
		Col:  int(roundHalfEven(col)),
	})
	return nil
}

func (ip *Interpreter) cmdColor(st *Statement) error {
	parts := splitTopLevelCommas(st.Args)
	if len(parts) < 1 || len(parts) > 2 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "COLOR fg [, bg]")
	}
	fg, err := ip.evalNumber(parts[0])
	if err != nil {
		return err
	}
	bg := 0.0
	if len(parts) == 2 && parts[1] != "" {
		bg, err = ip.evalNumber(parts[1])
		if err != nil {
			return err
		}
	}
	ip.sendMessage(shared.Message{
		Type: shared.MessageTypeColor,
		FG:   int(roundHalfEven(fg)),
		BG:   int(roundHalfEven(bg)),
	})
	return nil
}

func (ip *Interpreter) cmdBeep(st *Statement) error {
	ip.sendMessage(shared.Message{Type: shared.MessageTypeBeep})
	return nil
}

// cmdSound emits a tone: SOUND frequency, durationMs.
func (ip *Interpreter) cmdSound(st *Statement) error {
	parts := splitTopLevelCommas(st.Args)
	if len(parts) != 2 {
		return NewBasicErrorf(FaultStructural, ErrCodeSyntax, "SOUND frequency, duration")
	}
	freq, err := ip.evalNumber(parts[0])
	if err != nil {
		return err
	}
	dur, err := ip.evalNumber(parts[1])
	if err != nil {
		return err
	}
	if freq < 0 || dur < 0 {
		return NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
	}
	ip.sendMessage(shared.Message{Type: shared.MessageTypeSound, Frequency: freq, Duration: dur})
	return nil
}

// evalParams evaluates a comma list of numeric arguments for a graphics
// command, with missing optional tails allowed up to min.
func (ip *Interpreter) evalParams(args string, min, max int) ([]float64, error) {
	parts := splitTopLevelCommas(stripCoordSyntax(args))
	if len(parts) < min || len(parts) > max {
		return nil, NewBasicErrorf(FaultStructural, ErrCodeSyntax, "wrong argument count")
	}
	params := make([]float64, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			params = append(params, 0)
			continue
		}
		n, err := ip.evalNumber(p)
		if err != nil {
			return nil, err
		}
		params = append(params, n)
	}
	return params, nil
}

// stripCoordSyntax flattens the classic "(x1,y1)-(x2,y2)" coordinate spelling
// into a plain comma list so one parser serves both forms.
func stripCoordSyntax(s string) string {
	var out strings.Builder
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' {
			inString = !inString
		}
		if !inString {
			switch c {
			case '(', ')':
				continue
			case '-':
				// Only the pair separator, not a minus sign inside an
				// expression: it follows a closing paren.
				if i > 0 && s[i-1] == ')' {
					out.WriteByte(',')
					continue
				}
			}
		}
		out.WriteByte(c)
	}
	return out.String()
}

func (ip *Interpreter) graphicsCommand(name, args string, min, max int) error {
	params, err := ip.evalParams(args, min, max)
	if err != nil {
		return err
	}
	ip.sendMessage(shared.Message{Type: shared.MessageTypeGraphics, Command: name, Params: params})
	return nil
}

func (ip *Interpreter) cmdPset(st *Statement) error {
	return ip.graphicsCommand("PSET", st.Args, 2, 3)
}

func (ip *Interpreter) cmdLine(st *Statement) error {
	return ip.graphicsCommand("LINE", st.Args, 4, 5)
}

func (ip *Interpreter) cmdRect(st *Statement) error {
	return ip.graphicsCommand("RECT", st.Args, 4, 6)
}

func (ip *Interpreter) cmdCircle(st *Statement) error {
	return ip.graphicsCommand("CIRCLE", st.Args, 3, 4)
}

func (ip *Interpreter) cmdPaint(st *Statement) error {
	return ip.graphicsCommand("PAINT", st.Args, 2, 3)
}

// cmdRun restarts the loaded program from the top with a clean state.
func (ip *Interpreter) cmdRun(st *Statement) error {
	ip.flushPrint()
	prog := ip.prog
	ip.resetExecutionState(false)
	ip.prog = prog
	ip.buildDataPool()
	if err := ip.registerProcedures(); err != nil {
		return err
	}
	ip.pc = 0
	ip.running = true
	ip.state = StateRunning
	return nil
}

// cmdChain loads another program file and runs it from the top. Variables
// named in COMMON survive; everything else is reset.
func (ip *Interpreter) cmdChain(st *Statement) error {
	if ip.fs == nil {
		return NewBasicErrorf(FaultResource, ErrCodeDeviceIO, "no filesystem available")
	}
	path, err := ip.evalString(st.Args)
	if err != nil {
		return err
	}
	source, err := ip.fs.ReadFile(path, ip.sessionID)
	if err != nil {
		return NewBasicErrorf(FaultResource, ErrCodeFileNotFound, "cannot load %s", path)
	}
	ip.flushPrint()
	if err := ip.loadProgramLocked(source, true); err != nil {
		return err
	}
	if err := ip.registerProcedures(); err != nil {
		return err
	}
	ip.pc = 0
	ip.running = true
	ip.state = StateRunning
	basicDebugLog("chained to %s", path)
	return nil
}
