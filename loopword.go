package tardi

import (
	log "github.com/sirupsen/logrus"
)

// opLoopMacro implements the loop macro. The newest value on the
// accumulator must be a compiled quotation; its trailing Nop Nop Return
// tail is rewritten to Jump <start> Return, break and continue placeholders
// inside the body (and inside nested quotations reachable through the
// constant pool) are patched to the loop's exit and start, and a kernel
// apply is appended so the rewritten quotation is invoked.
func opLoopMacro(vm *VM, c *Compiler) error {
	accum, err := vm.peek()
	if err != nil {
		return err
	}
	list, ok := accum.AsList()
	if !ok {
		return typeMismatch("loop expects the accumulator, got %v", accum.Data.Kind())
	}
	if len(list.Items) == 0 {
		return typeMismatch("loop expects a quotation on the accumulator")
	}

	last := list.Items[len(list.Items)-1]
	lambda, ok := last.AsFunction()
	if !ok {
		return typeMismatch("loop expects a quotation, got %v", last.Data.Kind())
	}
	comp := lambda.CompiledCallable()
	if comp == nil || comp.Length < 3 {
		return typeMismatch("loop expects a compiled quotation")
	}
	lambda.SetLoop(true)

	startIP := comp.IP
	returnIP := comp.IP + comp.Length - 1
	log.Tracef("loop rewriting [%d, %d]", startIP, returnIP)

	// turn the exit into a backward jump; the Return at returnIP stays as
	// the target break jumps to
	if err := c.env.SetInstruction(returnIP-2, int(OpJump)); err != nil {
		return err
	}
	if err := c.env.SetInstruction(returnIP-1, startIP); err != nil {
		return err
	}

	if err := patchLoopWindow(c.env, startIP, returnIP-2, startIP, returnIP); err != nil {
		return err
	}

	list.Items = append(list.Items, NewValue(Symbol{Module: ModKernel, Word: "apply"}))
	return nil
}

// patchLoopWindow scans [from, to) for break and continue placeholders,
// patching unclaimed ones to the loop's exit and start. Quotations found in
// the window's Lit constants are scanned recursively within their own
// windows.
func patchLoopWindow(env *Environment, from, to, startIP, returnIP int) error {
	type window struct{ from, to int }
	pending := []window{{from, to}}

	for len(pending) > 0 {
		w := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		cursor := w.from
		for cursor < w.to {
			instr, ok := env.Instruction(cursor)
			if !ok {
				return vmErrf(ErrInvalidAddress, "%d", cursor)
			}
			switch OpCode(instr) {
			case OpBreak, OpContinue:
				slot := cursor + 1
				target, ok := env.Instruction(slot)
				if !ok {
					return vmErrf(ErrInvalidAddress, "%d", slot)
				}
				if target == placeholderTarget {
					patched := returnIP
					if OpCode(instr) == OpContinue {
						patched = startIP
					}
					log.Tracef("patching %v at %d -> %d", OpCode(instr), cursor, patched)
					if err := env.SetInstruction(slot, patched); err != nil {
						return err
					}
				}
				cursor += 2
			case OpLit:
				slot := cursor + 1
				index, ok := env.Instruction(slot)
				if !ok {
					return vmErrf(ErrInvalidAddress, "%d", slot)
				}
				if constant := env.Constant(index); constant != nil {
					if nested, ok := constant.AsFunction(); ok {
						if nc := nested.CompiledCallable(); nc != nil && nc.Length > 0 {
							pending = append(pending, window{nc.IP, nc.IP + nc.Length - 1})
						}
					}
				}
				cursor += 2
			case OpJump, OpCall:
				cursor += 2
			case OpReturn:
				cursor = w.to
			default:
				cursor++
			}
		}
	}
	return nil
}
