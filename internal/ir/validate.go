package ir

import (
	"errors"
	"fmt"
)

// Validate checks module structural invariants.
// Returns an error joining every violation found.
func Validate(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	seen := make(map[string]bool, len(m.Funcs))
	for _, f := range m.Funcs {
		if f == nil {
			errs = append(errs, errors.New("nil function in module"))
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("duplicate function name %q", f.Name))
		}
		seen[f.Name] = true
		if err := validateFunc(f); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

func validateFunc(f *Func) error {
	if f.IsDeclaration() {
		return nil
	}

	var errs []error
	for i, bb := range f.Blocks {
		if len(bb.Instrs) == 0 {
			errs = append(errs, fmt.Errorf("block %d (%s): no instructions", i, bb.Name))
			continue
		}
		if !bb.Terminated() {
			errs = append(errs, fmt.Errorf("block %d (%s): missing terminator", i, bb.Name))
		}
		for j, ins := range bb.Instrs {
			if ins.IsTerminator() && j != len(bb.Instrs)-1 {
				errs = append(errs, fmt.Errorf("block %d (%s): terminator at %d is not last", i, bb.Name, j))
			}
			if err := validateInstr(f, ins); err != nil {
				errs = append(errs, fmt.Errorf("block %d (%s) instr %d: %w", i, bb.Name, j, err))
			}
		}
	}
	return errors.Join(errs...)
}

func validateInstr(f *Func, ins *Instr) error {
	var errs []error

	checkValue := func(v Value, what string) {
		switch v.Kind {
		case ValueParam:
			if v.Param < 0 || v.Param >= len(f.Params) {
				errs = append(errs, fmt.Errorf("%s: parameter %d does not exist", what, v.Param))
			}
		case ValueInstr:
			if v.Instr == nil {
				errs = append(errs, fmt.Errorf("%s: nil instruction reference", what))
			}
		case ValueGlobal:
			if v.Global == nil {
				errs = append(errs, fmt.Errorf("%s: nil global reference", what))
			}
		case ValueFunc:
			if v.Func == nil {
				errs = append(errs, fmt.Errorf("%s: nil function reference", what))
			}
		case ValueInvalid:
			errs = append(errs, fmt.Errorf("%s: invalid value", what))
		}
	}

	switch ins.Kind {
	case InstrCall:
		if ins.Call.Callee == nil {
			errs = append(errs, errors.New("call: nil callee"))
		}
		for i, a := range ins.Call.Args {
			checkValue(a, fmt.Sprintf("call arg %d", i))
		}
	case InstrStore:
		checkValue(ins.Store.Val, "store value")
		checkValue(ins.Store.Ptr, "store pointer")
	case InstrLoad:
		checkValue(ins.Load.Ptr, "load pointer")
	case InstrPtrCast:
		checkValue(ins.PtrCast.Val, "ptrcast value")
	case InstrRet:
		if ins.Ret.HasValue {
			checkValue(ins.Ret.Value, "return value")
		}
	case InstrAlloca, InstrUnreachable:
		// no operands
	default:
		errs = append(errs, fmt.Errorf("unknown instruction kind %d", ins.Kind))
	}
	return errors.Join(errs...)
}
