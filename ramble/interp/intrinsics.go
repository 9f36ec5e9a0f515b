package interp

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ramble-dl/ramble/ramble"
)

// evalIntrinsic applies a built-in functor. The type attribute selects the
// numeric interpretation of the shared machine word: arithmetic on floats
// and unsigned values works on the bit-cast views.
func (in *Interpreter) evalIntrinsic(op ramble.FunctorOp, attr ramble.TypeAttribute, args []ramble.RamDomain) (ramble.RamDomain, error) {
	switch op {
	case ramble.Add, ramble.Sub, ramble.Mul, ramble.Div, ramble.Mod, ramble.Exp:
		return in.evalArithmetic(op, attr, args[0], args[1])

	case ramble.Neg:
		if attr == ramble.Float {
			return ramble.FromFloat(-ramble.ToFloat(args[0])), nil
		}
		return -args[0], nil

	case ramble.BAnd:
		return args[0] & args[1], nil
	case ramble.BOr:
		return args[0] | args[1], nil
	case ramble.BXor:
		return args[0] ^ args[1], nil
	case ramble.BNot:
		return ^args[0], nil

	case ramble.Max, ramble.Min:
		return evalExtremum(op, attr, args), nil

	case ramble.Cat:
		var sb strings.Builder
		for _, arg := range args {
			s, err := in.decodeSymbol(arg)
			if err != nil {
				return 0, err
			}
			sb.WriteString(s)
		}
		return in.symbols.Encode(sb.String()), nil

	case ramble.StrLen:
		s, err := in.decodeSymbol(args[0])
		if err != nil {
			return 0, err
		}
		return ramble.RamDomain(len(s)), nil

	case ramble.Substr:
		s, err := in.decodeSymbol(args[0])
		if err != nil {
			return 0, err
		}
		return in.symbols.Encode(substr(s, args[1], args[2])), nil

	case ramble.Ord:
		// Symbols are already their ordinal.
		return args[0], nil

	case ramble.ToNumber:
		s, err := in.decodeSymbol(args[0])
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("interp: to_number(%q): %w", s, err)
		}
		return v, nil

	case ramble.ToString:
		return in.symbols.Encode(strconv.FormatInt(args[0], 10)), nil

	default:
		panic(fmt.Sprintf("interp: unexpected intrinsic %v", op))
	}
}

func (in *Interpreter) evalArithmetic(op ramble.FunctorOp, attr ramble.TypeAttribute, a, b ramble.RamDomain) (ramble.RamDomain, error) {
	switch attr {
	case ramble.Float:
		x, y := ramble.ToFloat(a), ramble.ToFloat(b)
		switch op {
		case ramble.Add:
			return ramble.FromFloat(x + y), nil
		case ramble.Sub:
			return ramble.FromFloat(x - y), nil
		case ramble.Mul:
			return ramble.FromFloat(x * y), nil
		case ramble.Div:
			return ramble.FromFloat(x / y), nil
		case ramble.Mod:
			return ramble.FromFloat(math.Mod(x, y)), nil
		case ramble.Exp:
			return ramble.FromFloat(math.Pow(x, y)), nil
		}

	case ramble.Unsigned:
		x, y := ramble.ToUnsigned(a), ramble.ToUnsigned(b)
		switch op {
		case ramble.Add:
			return ramble.FromUnsigned(x + y), nil
		case ramble.Sub:
			return ramble.FromUnsigned(x - y), nil
		case ramble.Mul:
			return ramble.FromUnsigned(x * y), nil
		case ramble.Div:
			if y == 0 {
				return 0, fmt.Errorf("interp: division by zero")
			}
			return ramble.FromUnsigned(x / y), nil
		case ramble.Mod:
			if y == 0 {
				return 0, fmt.Errorf("interp: modulo by zero")
			}
			return ramble.FromUnsigned(x % y), nil
		case ramble.Exp:
			return ramble.FromUnsigned(powUnsigned(x, y)), nil
		}

	default:
		switch op {
		case ramble.Add:
			return a + b, nil
		case ramble.Sub:
			return a - b, nil
		case ramble.Mul:
			return a * b, nil
		case ramble.Div:
			if b == 0 {
				return 0, fmt.Errorf("interp: division by zero")
			}
			return a / b, nil
		case ramble.Mod:
			if b == 0 {
				return 0, fmt.Errorf("interp: modulo by zero")
			}
			return a % b, nil
		case ramble.Exp:
			return powSigned(a, b), nil
		}
	}
	panic(fmt.Sprintf("interp: unexpected arithmetic %v", op))
}

func evalExtremum(op ramble.FunctorOp, attr ramble.TypeAttribute, args []ramble.RamDomain) ramble.RamDomain {
	best := args[0]
	for _, v := range args[1:] {
		if better(op, attr, v, best) {
			best = v
		}
	}
	return best
}

func better(op ramble.FunctorOp, attr ramble.TypeAttribute, v, best ramble.RamDomain) bool {
	var less bool
	switch attr {
	case ramble.Float:
		less = ramble.ToFloat(v) < ramble.ToFloat(best)
	case ramble.Unsigned:
		less = ramble.ToUnsigned(v) < ramble.ToUnsigned(best)
	default:
		less = v < best
	}
	if op == ramble.Min {
		return less
	}
	return !less && v != best
}

func powSigned(base, exp ramble.RamDomain) ramble.RamDomain {
	if exp < 0 {
		switch base {
		case 1:
			return 1
		case -1:
			if exp%2 == 0 {
				return 1
			}
			return -1
		}
		return 0
	}
	result := ramble.RamDomain(1)
	for ; exp > 0; exp >>= 1 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
	}
	return result
}

func powUnsigned(base, exp ramble.RamUnsigned) ramble.RamUnsigned {
	result := ramble.RamUnsigned(1)
	for ; exp > 0; exp >>= 1 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
	}
	return result
}

// substr clips the requested window to the string's bounds; a window fully
// outside yields the empty string.
func substr(s string, start, length ramble.RamDomain) string {
	if start < 0 {
		length += start
		start = 0
	}
	if start >= ramble.RamDomain(len(s)) || length <= 0 {
		return ""
	}
	end := start + length
	if end > ramble.RamDomain(len(s)) {
		end = ramble.RamDomain(len(s))
	}
	return s[start:end]
}
