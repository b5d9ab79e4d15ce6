package basic

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// builtinFunctions is the fixed registry the expression evaluator and the
// call/array disambiguation consult. Keys are canonical names.
var builtinFunctions = map[string]builtinFunc{
	"ABS":     numFunc1(math.Abs),
	"INT":     numFunc1(math.Floor),
	"FIX":     numFunc1(math.Trunc),
	"SGN":     numFunc1(sign),
	"SQR":     fnSqr,
	"SIN":     numFunc1(math.Sin),
	"COS":     numFunc1(math.Cos),
	"TAN":     numFunc1(math.Tan),
	"ATN":     numFunc1(math.Atan),
	"EXP":     fnExp,
	"LOG":     fnLog,
	"RND":     fnRnd,
	"CINT":    fnCint,
	"CLNG":    fnClng,
	"CSNG":    fnCsng,
	"CDBL":    fnCdbl,
	"LEN":     fnLen,
	"VAL":     fnVal,
	"STR$":    fnStr,
	"CHR$":    fnChr,
	"ASC":     fnAsc,
	"LEFT$":   fnLeft,
	"RIGHT$":  fnRight,
	"MID$":    fnMid,
	"INSTR":   fnInstr,
	"STRING$": fnStringRepeat,
	"SPACE$":  fnSpace,
	"UCASE$":  strFunc1(strings.ToUpper),
	"LCASE$":  strFunc1(strings.ToLower),
	"LTRIM$":  strFunc1(func(s string) string { return strings.TrimLeft(s, " \t") }),
	"RTRIM$":  strFunc1(func(s string) string { return strings.TrimRight(s, " \t") }),
	"HEX$":    fnHex,
	"OCT$":    fnOct,
	"EOF":     fnEof,
	"INKEY$":  fnInkey,
	"TIMER":   fnTimer,
	"DATE$":   fnDate,
	"TIME$":   fnTime,
	"ERR":     fnErr,
	"ERL":     fnErl,
	// No joystick or light pen hardware behind this host: these read as
	// centered/released without faulting.
	"STICK": fnZero1,
	"STRIG": fnZero1,
	"PEN":   fnZero1,
}

type builtinFunc func(ip *Interpreter, args []Value) (Value, error)

func argCount(args []Value, min, max int) error {
	if len(args) < min || len(args) > max {
		return NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
	}
	return nil
}

func numArg(args []Value, i int) (float64, error) {
	if i >= len(args) {
		return 0, NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
	}
	return args[i].Number()
}

func strArg(args []Value, i int) (string, error) {
	if i >= len(args) {
		return "", NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
	}
	return args[i].Text()
}

func numFunc1(f func(float64) float64) builtinFunc {
	return func(ip *Interpreter, args []Value) (Value, error) {
		if err := argCount(args, 1, 1); err != nil {
			return Value{}, err
		}
		n, err := numArg(args, 0)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(f(n)), nil
	}
}

func strFunc1(f func(string) string) builtinFunc {
	return func(ip *Interpreter, args []Value) (Value, error) {
		if err := argCount(args, 1, 1); err != nil {
			return Value{}, err
		}
		s, err := strArg(args, 0)
		if err != nil {
			return Value{}, err
		}
		return StringValue(f(s)), nil
	}
}

func sign(n float64) float64 {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

func fnSqr(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	n, err := numArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	if n < 0 {
		return Value{}, NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
	}
	return NumberValue(math.Sqrt(n)), nil
}

func fnExp(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	n, err := numArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	result := math.Exp(n)
	if math.IsInf(result, 0) {
		return Value{}, NewBasicError(FaultRuntime, ErrCodeOverflow)
	}
	return NumberValue(result), nil
}

func fnLog(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	n, err := numArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	if n <= 0 {
		return Value{}, NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
	}
	return NumberValue(math.Log(n)), nil
}

// fnRnd: RND and RND(positive) draw the next number; a negative argument
// reseeds deterministically first.
func fnRnd(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 0, 1); err != nil {
		return Value{}, err
	}
	if len(args) == 1 {
		n, err := numArg(args, 0)
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			ip.reseed(int64(n))
		}
	}
	return NumberValue(ip.rng.Float64()), nil
}

func fnCint(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	return coerceKind(args[0], KindInteger)
}

func fnClng(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	return coerceKind(args[0], KindLong)
}

func fnCsng(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	return coerceKind(args[0], KindSingle)
}

func fnCdbl(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	return coerceKind(args[0], KindDouble)
}

func fnLen(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	s, err := strArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	return NumberValue(float64(len(s))), nil
}

// fnVal parses the leading numeric prefix of a string; no prefix reads as 0.
func fnVal(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	s, err := strArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	s = strings.TrimSpace(s)
	end := 0
	seenDigit := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			seenDigit = true
			end++
			continue
		}
		if (c == '+' || c == '-') && end == 0 {
			end++
			continue
		}
		if c == '.' || ((c == 'E' || c == 'e') && seenDigit) {
			end++
			continue
		}
		if (c == '+' || c == '-') && end > 0 && (s[end-1] == 'E' || s[end-1] == 'e') {
			end++
			continue
		}
		break
	}
	n, perr := strconv.ParseFloat(s[:end], 64)
	if perr != nil {
		return NumberValue(0), nil
	}
	return NumberValue(n), nil
}

func fnStr(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	if !args[0].IsNumeric() {
		return Value{}, NewBasicError(FaultType, ErrCodeTypeMismatch)
	}
	return StringValue(args[0].Format()), nil
}

func fnChr(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	n, err := numArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	code := int(roundHalfEven(n))
	if code < 0 || code > 255 {
		return Value{}, NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
	}
	return StringValue(string(rune(code))), nil
}

func fnAsc(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	s, err := strArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	if s == "" {
		return Value{}, NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
	}
	return NumberValue(float64(s[0])), nil
}

func fnLeft(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 2, 2); err != nil {
		return Value{}, err
	}
	s, err := strArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	n, err := numArg(args, 1)
	if err != nil {
		return Value{}, err
	}
	count := clampLen(int(roundHalfEven(n)), len(s))
	return StringValue(s[:count]), nil
}

func fnRight(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 2, 2); err != nil {
		return Value{}, err
	}
	s, err := strArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	n, err := numArg(args, 1)
	if err != nil {
		return Value{}, err
	}
	count := clampLen(int(roundHalfEven(n)), len(s))
	return StringValue(s[len(s)-count:]), nil
}

func clampLen(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

// fnMid: MID$(s, start [, length]), 1-based.
func fnMid(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 2, 3); err != nil {
		return Value{}, err
	}
	s, err := strArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	startF, err := numArg(args, 1)
	if err != nil {
		return Value{}, err
	}
	start := int(roundHalfEven(startF))
	if start < 1 {
		return Value{}, NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
	}
	if start > len(s) {
		return StringValue(""), nil
	}
	rest := s[start-1:]
	if len(args) == 3 {
		lenF, err := numArg(args, 2)
		if err != nil {
			return Value{}, err
		}
		rest = rest[:clampLen(int(roundHalfEven(lenF)), len(rest))]
	}
	return StringValue(rest), nil
}

// fnInstr: INSTR([start,] haystack$, needle$), 1-based, 0 when absent.
func fnInstr(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 2, 3); err != nil {
		return Value{}, err
	}
	start := 1
	base := 0
	if len(args) == 3 {
		n, err := numArg(args, 0)
		if err != nil {
			return Value{}, err
		}
		start = int(roundHalfEven(n))
		if start < 1 {
			return Value{}, NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
		}
		base = 1
	}
	haystack, err := strArg(args, base)
	if err != nil {
		return Value{}, err
	}
	needle, err := strArg(args, base+1)
	if err != nil {
		return Value{}, err
	}
	if start > len(haystack) {
		return NumberValue(0), nil
	}
	pos := strings.Index(haystack[start-1:], needle)
	if pos < 0 {
		return NumberValue(0), nil
	}
	return NumberValue(float64(start + pos)), nil
}

// fnStringRepeat: STRING$(n, code) or STRING$(n, s$) repeats a character.
func fnStringRepeat(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 2, 2); err != nil {
		return Value{}, err
	}
	n, err := numArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	count := int(roundHalfEven(n))
	if count < 0 {
		return Value{}, NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
	}
	var ch byte
	if args[1].Kind == KindString {
		if args[1].Str == "" {
			return Value{}, NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
		}
		ch = args[1].Str[0]
	} else {
		code := int(roundHalfEven(args[1].Num))
		if code < 0 || code > 255 {
			return Value{}, NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
		}
		ch = byte(code)
	}
	return StringValue(strings.Repeat(string(rune(ch)), count)), nil
}

func fnSpace(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	n, err := numArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	count := int(roundHalfEven(n))
	if count < 0 {
		return Value{}, NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
	}
	return StringValue(strings.Repeat(" ", count)), nil
}

func fnHex(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	n, err := numArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	return StringValue(strings.ToUpper(strconv.FormatInt(int64(roundHalfEven(n)), 16))), nil
}

func fnOct(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	n, err := numArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	return StringValue(strconv.FormatInt(int64(roundHalfEven(n)), 8)), nil
}

func fnEof(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 1, 1); err != nil {
		return Value{}, err
	}
	n, err := numArg(args, 0)
	if err != nil {
		return Value{}, err
	}
	atEOF, err := ip.fileAtEOF(int(roundHalfEven(n)))
	if err != nil {
		return Value{}, err
	}
	return BoolValue(atEOF), nil
}

// fnInkey consumes the most recent key event, or returns the empty string.
func fnInkey(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 0, 0); err != nil {
		return Value{}, err
	}
	key := ip.lastKey
	ip.lastKey = ""
	return StringValue(key), nil
}

// fnTimer returns seconds since midnight, matching the classic clock.
func fnTimer(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 0, 0); err != nil {
		return Value{}, err
	}
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return NumberValue(now.Sub(midnight).Seconds()), nil
}

func fnDate(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 0, 0); err != nil {
		return Value{}, err
	}
	return StringValue(time.Now().Format("01-02-2006")), nil
}

func fnTime(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 0, 0); err != nil {
		return Value{}, err
	}
	return StringValue(time.Now().Format("15:04:05")), nil
}

func fnErr(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 0, 0); err != nil {
		return Value{}, err
	}
	return NumberValue(float64(ip.errState.lastErrorCode)), nil
}

func fnErl(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 0, 0); err != nil {
		return Value{}, err
	}
	return NumberValue(float64(ip.errState.lastErrorLine)), nil
}

func fnZero1(ip *Interpreter, args []Value) (Value, error) {
	if err := argCount(args, 0, 1); err != nil {
		return Value{}, err
	}
	return NumberValue(0), nil
}
