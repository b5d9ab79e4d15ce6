package basic

import (
	"math"
	"strings"
)

// evalExpr compiles (through the caches) and evaluates raw expression text.
func (ip *Interpreter) evalExpr(raw string) (Value, error) {
	node, err := ip.comp.compile(raw)
	if err != nil {
		return Value{}, err
	}
	return ip.evalNode(node)
}

// evalNumber evaluates an expression that must produce a number.
func (ip *Interpreter) evalNumber(raw string) (float64, error) {
	v, err := ip.evalExpr(raw)
	if err != nil {
		return 0, err
	}
	return v.Number()
}

// evalString evaluates an expression that must produce a string.
func (ip *Interpreter) evalString(raw string) (string, error) {
	v, err := ip.evalExpr(raw)
	if err != nil {
		return "", err
	}
	return v.Text()
}

func (ip *Interpreter) evalNode(n *exprNode) (Value, error) {
	switch n.kind {
	case nodeNumber:
		return NumberValue(n.num), nil
	case nodeString:
		return StringValue(n.str), nil
	case nodeVar:
		return ip.env.lookup(n.name), nil
	case nodeIndex:
		indices, err := ip.evalIndices(n.args)
		if err != nil {
			return Value{}, err
		}
		arr, err := ip.arrayFor(n.name, len(indices))
		if err != nil {
			return Value{}, err
		}
		return arr.Get(indices)
	case nodeField:
		base, err := ip.evalNode(n.left)
		if err != nil {
			return Value{}, err
		}
		if base.Kind != KindRecord || base.Rec == nil {
			return Value{}, NewBasicError(FaultType, ErrCodeTypeMismatch)
		}
		return base.Rec.GetField(ip.recordTypes, n.name)
	case nodeCall:
		return ip.evalCall(n)
	case nodeUnary:
		operand, err := ip.evalNode(n.left)
		if err != nil {
			return Value{}, err
		}
		return evalUnary(n.op, operand)
	case nodeBinary:
		left, err := ip.evalNode(n.left)
		if err != nil {
			return Value{}, err
		}
		right, err := ip.evalNode(n.right)
		if err != nil {
			return Value{}, err
		}
		return evalBinary(n.op, left, right)
	}
	return Value{}, NewBasicError(FaultEvaluation, ErrCodeInternal)
}

func (ip *Interpreter) evalIndices(args []*exprNode) ([]int, error) {
	indices := make([]int, len(args))
	for i, arg := range args {
		v, err := ip.evalNode(arg)
		if err != nil {
			return nil, err
		}
		n, err := v.Number()
		if err != nil {
			return nil, NewBasicError(FaultType, ErrCodeTypeMismatch)
		}
		indices[i] = int(roundHalfEven(n))
	}
	return indices, nil
}

// evalCall routes NAME(args): DEF FN inline functions first, then FUNCTION
// procedures (which re-enter the stepper), then builtins.
func (ip *Interpreter) evalCall(n *exprNode) (Value, error) {
	if fn, ok := ip.inlineFuncs[n.name]; ok {
		return ip.callInlineFunction(fn, n.args)
	}
	if proc, ok := ip.procs[n.name]; ok && proc.Kind == ProcFunction {
		return ip.callFunctionProc(proc, n.args)
	}
	if builtin, ok := builtinFunctions[n.name]; ok {
		args := make([]Value, len(n.args))
		for i, argNode := range n.args {
			v, err := ip.evalNode(argNode)
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		return builtin(ip, args)
	}
	return Value{}, NewBasicErrorf(FaultEvaluation, ErrCodeIllegalCall, "unknown function %s", n.name)
}

// callInlineFunction evaluates a DEF FN body with parameters bound over the
// caller's variables, restoring any shadowed bindings afterwards.
func (ip *Interpreter) callInlineFunction(fn *inlineFunc, argNodes []*exprNode) (Value, error) {
	if len(argNodes) > len(fn.Params) {
		return Value{}, NewBasicError(FaultEvaluation, ErrCodeIllegalCall)
	}
	args := make([]Value, len(fn.Params))
	for i := range fn.Params {
		if i < len(argNodes) {
			v, err := ip.evalNode(argNodes[i])
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		} else {
			args[i] = zeroValueForName(fn.Params[i])
		}
	}

	type saved struct {
		value   Value
		existed bool
	}
	shadowed := make(map[string]saved, len(fn.Params))
	for i, param := range fn.Params {
		old, existed := ip.variables[param]
		shadowed[param] = saved{old, existed}
		if err := ip.setVariable(param, args[i]); err != nil {
			return Value{}, err
		}
	}
	result, err := ip.evalExpr(fn.Body)
	for param, s := range shadowed {
		if s.existed {
			ip.variables[param] = s.value
		} else {
			ip.unsetVariable(param)
		}
	}
	return result, err
}

func evalUnary(op tokenType, v Value) (Value, error) {
	switch op {
	case tokenMinus:
		n, err := v.Number()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(-n), nil
	case tokenNot:
		n, err := v.Number()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(float64(^int64(roundHalfEven(n)))), nil
	}
	return Value{}, NewBasicError(FaultEvaluation, ErrCodeInternal)
}

func evalBinary(op tokenType, a, b Value) (Value, error) {
	switch op {
	case tokenPlus:
		if a.Kind == KindString && b.Kind == KindString {
			return StringValue(a.Str + b.Str), nil
		}
		return numericOp(a, b, func(x, y float64) float64 { return x + y })
	case tokenMinus:
		return numericOp(a, b, func(x, y float64) float64 { return x - y })
	case tokenMultiply:
		return numericOp(a, b, func(x, y float64) float64 { return x * y })
	case tokenDivide:
		y, err := b.Number()
		if err != nil {
			return Value{}, err
		}
		if y == 0 {
			return Value{}, NewBasicError(FaultRuntime, ErrCodeDivisionByZero)
		}
		x, err := a.Number()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(x / y), nil
	case tokenIntDivide:
		// Operands round to integers first; division truncates toward zero,
		// so -7 \ 2 is -3.
		x, y, err := integerOperands(a, b)
		if err != nil {
			return Value{}, err
		}
		if y == 0 {
			return Value{}, NewBasicError(FaultRuntime, ErrCodeDivisionByZero)
		}
		return NumberValue(float64(x / y)), nil
	case tokenMod:
		x, y, err := integerOperands(a, b)
		if err != nil {
			return Value{}, err
		}
		if y == 0 {
			return Value{}, NewBasicError(FaultRuntime, ErrCodeDivisionByZero)
		}
		return NumberValue(float64(x % y)), nil
	case tokenPower:
		x, err := a.Number()
		if err != nil {
			return Value{}, err
		}
		y, err := b.Number()
		if err != nil {
			return Value{}, err
		}
		result := math.Pow(x, y)
		if math.IsInf(result, 0) || math.IsNaN(result) {
			return Value{}, NewBasicError(FaultRuntime, ErrCodeOverflow)
		}
		return NumberValue(result), nil
	case tokenAnd:
		x, y, err := integerOperands(a, b)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(float64(x & y)), nil
	case tokenOr:
		x, y, err := integerOperands(a, b)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(float64(x | y)), nil
	case tokenXor:
		x, y, err := integerOperands(a, b)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(float64(x ^ y)), nil
	case tokenEQ, tokenNE, tokenLT, tokenLE, tokenGT, tokenGE:
		return compareValues(op, a, b)
	}
	return Value{}, NewBasicError(FaultEvaluation, ErrCodeInternal)
}

func numericOp(a, b Value, f func(x, y float64) float64) (Value, error) {
	x, err := a.Number()
	if err != nil {
		return Value{}, err
	}
	y, err := b.Number()
	if err != nil {
		return Value{}, err
	}
	result := f(x, y)
	if math.IsInf(result, 0) {
		return Value{}, NewBasicError(FaultRuntime, ErrCodeOverflow)
	}
	return NumberValue(result), nil
}

func integerOperands(a, b Value) (int64, int64, error) {
	x, err := a.Number()
	if err != nil {
		return 0, 0, err
	}
	y, err := b.Number()
	if err != nil {
		return 0, 0, err
	}
	return int64(roundHalfEven(x)), int64(roundHalfEven(y)), nil
}

func compareValues(op tokenType, a, b Value) (Value, error) {
	var cmp int
	if a.Kind == KindString && b.Kind == KindString {
		cmp = strings.Compare(a.Str, b.Str)
	} else {
		x, err := a.Number()
		if err != nil {
			return Value{}, err
		}
		y, err := b.Number()
		if err != nil {
			return Value{}, err
		}
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	}
	switch op {
	case tokenEQ:
		return BoolValue(cmp == 0), nil
	case tokenNE:
		return BoolValue(cmp != 0), nil
	case tokenLT:
		return BoolValue(cmp < 0), nil
	case tokenLE:
		return BoolValue(cmp <= 0), nil
	case tokenGT:
		return BoolValue(cmp > 0), nil
	default:
		return BoolValue(cmp >= 0), nil
	}
}
