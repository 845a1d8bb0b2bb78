package vm

import "github.com/plaidvm/luacore/value"

// Numeric for loops reserve four consecutive registers starting at A:
// the initial value, limit, step, and the visible loop variable
// (spec.md §4.5's FORPREP/FORLOOP description, matching Lua 5.4's
// "three control registers plus one visible copy" layout).
const (
	forInitReg  = 0
	forLimitReg = 1
	forStepReg  = 2
	forVarReg   = 3
)

// forPrep validates and normalizes a numeric for loop's three control
// values, then primes the visible loop variable. It returns done=true
// when the loop should never execute (e.g. a positive step with init
// already past limit), so the caller can skip straight past the loop
// body via FORPREP's jump target.
func forPrep(f *Frame, a int) (done bool, err error) {
	initV := f.Reg(a + forInitReg)
	limitV := f.Reg(a + forLimitReg)
	stepV := f.Reg(a + forStepReg)

	if si, iok := initV.AsIntegerStrict(); iok {
		if ss, sok := stepV.AsIntegerStrict(); sok {
			if ss == 0 {
				return false, errZeroStep
			}
			sl, lok := limitV.AsIntegerStrict()
			if !lok {
				lf, _ := limitV.AsNumber()
				sl = clampFloatLimit(lf, ss > 0)
			}
			if (ss > 0 && si > sl) || (ss < 0 && si < sl) {
				return true, nil
			}
			f.SetReg(a+forLimitReg, value.Integer(sl))
			f.SetReg(a+forVarReg, value.Integer(si))
			return false, nil
		}
	}

	fi, iok := initV.AsNumber()
	fl, lok := limitV.AsNumber()
	fs, sok := stepV.AsNumber()
	if !iok || !lok || !sok {
		return false, errNonNumericFor
	}
	if fs == 0 {
		return false, errZeroStep
	}
	if (fs > 0 && fi > fl) || (fs < 0 && fi < fl) {
		return true, nil
	}
	f.SetReg(a+forInitReg, value.Float(fi))
	f.SetReg(a+forLimitReg, value.Float(fl))
	f.SetReg(a+forStepReg, value.Float(fs))
	f.SetReg(a+forVarReg, value.Float(fi))
	return false, nil
}

// forLoop advances the loop's control value by one step and reports
// whether the loop body should run again.
func forLoop(f *Frame, a int) bool {
	if si, ok := f.Reg(a + forVarReg).AsIntegerStrict(); ok {
		step, _ := f.Reg(a + forStepReg).AsIntegerStrict()
		limit, _ := f.Reg(a + forLimitReg).AsIntegerStrict()
		next := value.AddInt(si, step)
		if (step > 0 && next > limit) || (step < 0 && next < limit) {
			return false
		}
		f.SetReg(a+forVarReg, value.Integer(next))
		return true
	}

	cur, _ := f.Reg(a + forVarReg).AsFloatStrict()
	step, _ := f.Reg(a + forStepReg).AsFloatStrict()
	limit, _ := f.Reg(a + forLimitReg).AsFloatStrict()
	next := cur + step
	if (step > 0 && next > limit) || (step < 0 && next < limit) {
		return false
	}
	f.SetReg(a+forVarReg, value.Float(next))
	return true
}

func clampFloatLimit(f float64, positiveStep bool) int64 {
	const maxInt = int64(1<<63 - 1)
	const minInt = -maxInt - 1
	if positiveStep {
		if f >= float64(maxInt) {
			return maxInt
		}
		return int64(f)
	}
	if f <= float64(minInt) {
		return minInt
	}
	return int64(f)
}

var (
	errZeroStep      = forError{"'for' step is zero"}
	errNonNumericFor = forError{"'for' initial value must be a number"}
)

type forError struct{ msg string }

func (e forError) Error() string { return e.msg }
