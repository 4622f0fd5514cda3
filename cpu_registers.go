package brainpluck

// This file holds the packed-register and binregister macros: bit-level
// arithmetic, conditionals, comparison, and printing built on top of the
// byte-level primitives in cpu.go. None of these survive from the original
// implementation verbatim (the retrieved Rust source only shows call sites
// for them, not their bodies); each is composed from the byte macros using
// the technique spec.md §4.3 names for it.

// IfNonzero runs body iff pos != 0, leaving pos unchanged. scratch needs two
// pre-zero cells (At(0) flag, At(1) copy-scratch).
func (c *Cpu) IfNonzero(pos Pos, scratch ScratchTrack, body func(*Cpu)) {
	flag := scratch.At(0)
	copyScratch := scratch.At(1)
	c.CopyByte(pos, flag, copyScratch)
	c.LoopWhile(flag, func(cpu *Cpu) {
		cpu.ZeroByte(flag)
		body(cpu)
	})
}

// IfZero runs body iff pos == 0, leaving pos unchanged. scratch needs three
// pre-zero cells (At(0) flag, At(1) tmp copy of pos, At(2) copy-scratch).
func (c *Cpu) IfZero(pos Pos, scratch ScratchTrack, body func(*Cpu)) {
	flag := scratch.At(0)
	tmp := scratch.At(1)
	copyScratch := scratch.At(2)
	c.IncAt(flag)
	c.CopyByte(pos, tmp, copyScratch)
	c.LoopWhile(tmp, func(cpu *Cpu) {
		cpu.ZeroByte(tmp)
		cpu.ZeroByte(flag)
	})
	c.LoopWhile(flag, func(cpu *Cpu) {
		cpu.ZeroByte(flag)
		body(cpu)
	})
}

// IfNonzeroElse runs thenBody iff pos != 0, else elseBody; pos is
// unchanged. Needs the same three scratch cells as IfZero.
func (c *Cpu) IfNonzeroElse(pos Pos, scratch ScratchTrack, thenBody, elseBody func(*Cpu)) {
	flag := scratch.At(0)
	tmp := scratch.At(1)
	copyScratch := scratch.At(2)
	c.IncAt(flag)
	c.CopyByte(pos, tmp, copyScratch)
	c.LoopWhile(tmp, func(cpu *Cpu) {
		cpu.ZeroByte(tmp)
		cpu.ZeroByte(flag)
		thenBody(cpu)
	})
	c.LoopWhile(flag, func(cpu *Cpu) {
		cpu.ZeroByte(flag)
		elseBody(cpu)
	})
}

func (c *Cpu) ClrBinregister(r BinRegister) {
	c.ZeroSlice(r.At(0), r.Bits)
}

// SetBinregister materializes a compile-time-known constant; used by tests
// and by literal-construction in hir2sam/sam2lir (e.g. the constant ten
// used by decimal printing).
func (c *Cpu) SetBinregister(r BinRegister, value uint64) {
	for f := 0; f < r.Bits; f++ {
		weight := uint(r.Bits - 1 - f)
		if (value>>weight)&1 == 1 {
			c.IncAt(r.At(f))
		}
	}
}

func (c *Cpu) incBinregisterFrom(r BinRegister, f int, scratch ScratchTrack) {
	if f < 0 {
		return
	}
	bit := r.At(f)
	c.IfNonzeroElse(bit, scratch, func(cpu *Cpu) {
		cpu.ZeroByte(bit)
		cpu.incBinregisterFrom(r, f-1, scratch)
	}, func(cpu *Cpu) {
		cpu.IncAt(bit)
	})
}

// IncBinregister adds 1, wrapping mod 2^Bits.
func (c *Cpu) IncBinregister(r BinRegister, scratch ScratchTrack) {
	c.incBinregisterFrom(r, r.Bits-1, scratch)
}

func (c *Cpu) decBinregisterFrom(r BinRegister, f int, scratch ScratchTrack) {
	if f < 0 {
		return
	}
	bit := r.At(f)
	c.IfNonzeroElse(bit, scratch, func(cpu *Cpu) {
		cpu.DecAt(bit)
	}, func(cpu *Cpu) {
		cpu.IncAt(bit)
		cpu.decBinregisterFrom(r, f-1, scratch)
	})
}

// DecBinregister subtracts 1, wrapping mod 2^Bits.
func (c *Cpu) DecBinregister(r BinRegister, scratch ScratchTrack) {
	c.decBinregisterFrom(r, r.Bits-1, scratch)
}

// registerScratchBase is a fixed offset on the scratch track, clear of every
// other macro's workspace (the decimal printer's is the widest at 200..340),
// reserved for IncRegister/DecRegister's byte<->bit round trip.
const registerScratchBase = 500

// IncRegister adds 1 to a big-endian byte register, wrapping mod 2^(Size*8).
func (c *Cpu) IncRegister(r Register, scratch ScratchTrack) {
	bin := BinRegister{Track: scratch.Track, Bits: r.Size * 8, Base: registerScratchBase}
	c.UnpackRegister(r, bin, scratch)
	c.IncBinregister(bin, scratch)
	c.ZeroRegister(r)
	c.PackBinregister(bin, r, scratch)
	c.ClrBinregister(bin)
}

// DecRegister is IncRegister's mirror.
func (c *Cpu) DecRegister(r Register, scratch ScratchTrack) {
	bin := BinRegister{Track: scratch.Track, Bits: r.Size * 8, Base: registerScratchBase}
	c.UnpackRegister(r, bin, scratch)
	c.DecBinregister(bin, scratch)
	c.ZeroRegister(r)
	c.PackBinregister(bin, r, scratch)
	c.ClrBinregister(bin)
}

// fullAdderBit computes bBit,carry = bBit+aBit+carry (mod 2, with carry
// out), leaving aBit unchanged.
func (c *Cpu) fullAdderBit(aBit, bBit, carry Pos, scratch ScratchTrack) {
	c.IfNonzeroElse(aBit, scratch, func(cpu *Cpu) {
		cpu.IfNonzeroElse(bBit, scratch, func(cpu *Cpu) {
			cpu.IfNonzeroElse(carry, scratch, func(cpu *Cpu) {
				// a=1 b=1 c=1: sum=1 carry=1, no change
			}, func(cpu *Cpu) {
				// a=1 b=1 c=0: sum=0 carry=1
				cpu.DecAt(bBit)
				cpu.IncAt(carry)
			})
		}, func(cpu *Cpu) {
			cpu.IfNonzeroElse(carry, scratch, func(cpu *Cpu) {
				// a=1 b=0 c=1: sum=0 carry=1, no change
			}, func(cpu *Cpu) {
				// a=1 b=0 c=0: sum=1 carry=0
				cpu.IncAt(bBit)
			})
		})
	}, func(cpu *Cpu) {
		cpu.IfNonzeroElse(bBit, scratch, func(cpu *Cpu) {
			cpu.IfNonzeroElse(carry, scratch, func(cpu *Cpu) {
				// a=0 b=1 c=1: sum=0 carry=1
				cpu.DecAt(bBit)
			}, func(cpu *Cpu) {
				// a=0 b=1 c=0: sum=1 carry=0, no change
			})
		}, func(cpu *Cpu) {
			cpu.IfNonzeroElse(carry, scratch, func(cpu *Cpu) {
				// a=0 b=0 c=1: sum=1 carry=0
				cpu.IncAt(bBit)
				cpu.DecAt(carry)
			}, func(cpu *Cpu) {
				// a=0 b=0 c=0: no change
			})
		})
	})
}

// AddBinregisterToBinregister computes b += a (mod 2^Bits), a unchanged.
func (c *Cpu) AddBinregisterToBinregister(a, b BinRegister, scratch ScratchTrack) {
	if a.Bits != b.Bits {
		panic("brainpluck: binregister size mismatch in AddBinregisterToBinregister")
	}
	carry := scratch.At(30)
	for f := a.Bits - 1; f >= 0; f-- {
		c.fullAdderBit(a.At(f), b.At(f), carry, scratch)
	}
	c.ZeroByte(carry) // carry out of the MSB is discarded, matching wrapping semantics
}

// fullSubtractorBit computes bBit,borrow = bBit-aBit-borrow (mod 2, with
// borrow out), leaving aBit unchanged.
func (c *Cpu) fullSubtractorBit(aBit, bBit, borrow Pos, scratch ScratchTrack) {
	c.IfNonzeroElse(aBit, scratch, func(cpu *Cpu) {
		cpu.IfNonzeroElse(bBit, scratch, func(cpu *Cpu) {
			cpu.IfNonzeroElse(borrow, scratch, func(cpu *Cpu) {
				// a=1 b=1 bw=1: diff=1 bw=1, no change
			}, func(cpu *Cpu) {
				// a=1 b=1 bw=0: diff=0 bw=0
				cpu.DecAt(bBit)
			})
		}, func(cpu *Cpu) {
			cpu.IfNonzeroElse(borrow, scratch, func(cpu *Cpu) {
				// a=1 b=0 bw=1: diff=0 bw=1, no change
			}, func(cpu *Cpu) {
				// a=1 b=0 bw=0: diff=1 bw=1
				cpu.IncAt(bBit)
				cpu.IncAt(borrow)
			})
		})
	}, func(cpu *Cpu) {
		cpu.IfNonzeroElse(bBit, scratch, func(cpu *Cpu) {
			cpu.IfNonzeroElse(borrow, scratch, func(cpu *Cpu) {
				// a=0 b=1 bw=1: diff=0 bw=0
				cpu.DecAt(bBit)
				cpu.DecAt(borrow)
			}, func(cpu *Cpu) {
				// a=0 b=1 bw=0: diff=1 bw=0, no change
			})
		}, func(cpu *Cpu) {
			cpu.IfNonzeroElse(borrow, scratch, func(cpu *Cpu) {
				// a=0 b=0 bw=1: diff=1 bw=1
				cpu.IncAt(bBit)
			}, func(cpu *Cpu) {
				// a=0 b=0 bw=0: no change
			})
		})
	})
}

// SubBinregisterFromBinregister computes b -= a (mod 2^Bits), a unchanged.
func (c *Cpu) SubBinregisterFromBinregister(a, b BinRegister, scratch ScratchTrack) {
	if a.Bits != b.Bits {
		panic("brainpluck: binregister size mismatch in SubBinregisterFromBinregister")
	}
	borrow := scratch.At(31)
	for f := a.Bits - 1; f >= 0; f-- {
		c.fullSubtractorBit(a.At(f), b.At(f), borrow, scratch)
	}
	c.ZeroByte(borrow)
}

// ShiftBinregisterLeft multiplies by 2 mod 2^Bits: the MSB is discarded and
// a 0 bit enters at the LSB. No scratch needed.
func (c *Cpu) ShiftBinregisterLeft(r BinRegister) {
	c.ZeroByte(r.At(0))
	for f := 0; f < r.Bits-1; f++ {
		c.MoveaddByte(r.At(f+1), r.At(f))
	}
}

// ShiftBinregisterRight divides by 2 (floor): the LSB is discarded and a 0
// bit enters at the MSB.
func (c *Cpu) ShiftBinregisterRight(r BinRegister) {
	c.ZeroByte(r.At(r.Bits - 1))
	for f := r.Bits - 1; f > 0; f-- {
		c.MoveaddByte(r.At(f-1), r.At(f))
	}
}

// UnpackRegister expands each byte of reg (big-endian, Size bytes) into 8
// binregister cells each, MSB first, via repeated divmod-2.
func (c *Cpu) UnpackRegister(reg Register, binreg BinRegister, scratch ScratchTrack) {
	if binreg.Bits != reg.Size*8 {
		panic("brainpluck: binregister width must be reg size * 8 in UnpackRegister")
	}
	quotient := scratch.At(10)
	newQuotient := scratch.At(11)
	remainder := scratch.At(12)
	copyScratch := scratch.At(13)
	for i := 0; i < reg.Size; i++ {
		c.CopyByte(reg.At(i), quotient, copyScratch)
		for k := 1; k <= 8; k++ {
			c.MovedivByteOntoZeros(quotient, 2, newQuotient, remainder, scratch)
			bitFrame := i*8 + (8 - k)
			c.MoveaddByte(remainder, binreg.At(bitFrame))
			c.MoveaddByte(newQuotient, quotient)
		}
	}
}

// PackBinregister is UnpackRegister's inverse: shift-and-add each byte's 8
// bits back into reg.
func (c *Cpu) PackBinregister(binreg BinRegister, reg Register, scratch ScratchTrack) {
	if binreg.Bits != reg.Size*8 {
		panic("brainpluck: binregister width must be reg size * 8 in PackBinregister")
	}
	accumulator := scratch.At(10)
	double := scratch.At(11)
	copyScratch := scratch.At(13)
	for i := 0; i < reg.Size; i++ {
		c.ZeroByte(accumulator)
		for j := 0; j < 8; j++ {
			c.CopyByte(accumulator, double, copyScratch)
			c.MoveaddByte(double, accumulator)
			c.MoveaddByte(binreg.At(i*8+j), accumulator)
		}
		c.MoveaddByte(accumulator, reg.At(i))
	}
}

// MulBinregisters computes out = a*b mod 2^Bits via double-and-add; a and b
// are left unchanged, out must start zeroed.
func (c *Cpu) MulBinregisters(a, b, out BinRegister, scratch ScratchTrack) {
	if a.Bits != b.Bits || a.Bits != out.Bits {
		panic("brainpluck: binregister size mismatch in MulBinregisters")
	}
	c.ClrBinregister(out)
	for f := 0; f < b.Bits; f++ {
		c.ShiftBinregisterLeft(out)
		c.IfNonzero(b.At(f), scratch, func(cpu *Cpu) {
			cpu.AddBinregisterToBinregister(a, out, scratch)
		})
	}
}

// Cmp2UintBinregisters computes the three-way comparison result ('4' a<b,
// '5' a==b, '6' a>b) into result, a pre-zero cell. a and b are unchanged.
func (c *Cpu) Cmp2UintBinregisters(a, b BinRegister, result Pos, scratch ScratchTrack) {
	if a.Bits != b.Bits {
		panic("brainpluck: binregister size mismatch in Cmp2UintBinregisters")
	}
	decided := scratch.At(14)
	c.ZeroByte(decided)
	c.AddConstToByte(result, 53) // '5', equal until a differing bit decides otherwise
	for f := 0; f < a.Bits; f++ {
		c.IfZero(decided, scratch, func(cpu *Cpu) {
			cpu.IfNonzeroElse(a.At(f), scratch, func(cpu *Cpu) {
				cpu.IfZero(b.At(f), scratch, func(cpu *Cpu) {
					cpu.AddConstToByte(result, 1) // a=1 b=0: a>b
					cpu.IncAt(decided)
				})
			}, func(cpu *Cpu) {
				cpu.IfNonzero(b.At(f), scratch, func(cpu *Cpu) {
					cpu.SubConstFromByte(result, 1) // a=0 b=1: a<b
					cpu.IncAt(decided)
				})
			})
		})
	}
	c.ZeroByte(decided)
}

// MoveMatchCmpResult destructively dispatches on a cmp-result byte ('4',
// '5', '6'), leaving result at 0. Mirrors the dec/if_zero chain SAM→LIR
// opcode dispatch uses (see sam2lir.go), applied to three cases instead of
// 31.
func (c *Cpu) MoveMatchCmpResult(result Pos, scratch ScratchTrack, lessBody, equalBody, greaterBody func(*Cpu)) {
	c.SubConstFromByte(result, 52) // '4'->0 (less), '5'->1 (equal), '6'->2 (greater)
	c.IfZero(result, scratch, lessBody)
	c.DecAt(result)
	c.IfZero(result, scratch, equalBody)
	c.DecAt(result)
	c.IfZero(result, scratch, greaterBody)
	c.ZeroByte(result)
}

// DivBinregisters computes div = a/b, rem = a%b via restoring binary long
// division; a and b are unchanged, div and rem must start zeroed.
func (c *Cpu) DivBinregisters(a, b, div, rem BinRegister, scratch ScratchTrack) {
	if a.Bits != b.Bits || a.Bits != div.Bits || a.Bits != rem.Bits {
		panic("brainpluck: binregister size mismatch in DivBinregisters")
	}
	c.ClrBinregister(div)
	c.ClrBinregister(rem)
	cmpResult := scratch.At(15)
	for f := 0; f < a.Bits; f++ {
		c.ShiftBinregisterLeft(rem)
		c.IfNonzero(a.At(f), scratch, func(cpu *Cpu) {
			cpu.IncAt(rem.At(rem.Bits - 1))
		})
		c.ZeroByte(cmpResult)
		c.Cmp2UintBinregisters(rem, b, cmpResult, scratch)
		c.MoveMatchCmpResult(cmpResult, scratch, func(cpu *Cpu) {
			// rem < b: quotient bit stays 0
		}, func(cpu *Cpu) {
			cpu.SubBinregisterFromBinregister(b, rem, scratch)
			cpu.IncAt(div.At(f))
		}, func(cpu *Cpu) {
			cpu.SubBinregisterFromBinregister(b, rem, scratch)
			cpu.IncAt(div.At(f))
		})
	}
}

func (c *Cpu) printLiteralByte(pos Pos, value byte) {
	c.AddConstToByte(pos, value)
	c.Goto(pos)
	c.Out()
	c.ZeroByte(pos)
}

// PrintBinregisterInBinary prints "0b" followed by Bits '0'/'1' characters.
func (c *Cpu) PrintBinregisterInBinary(r BinRegister, scratch ScratchTrack) {
	lit := scratch.At(16)
	c.printLiteralByte(lit, '0')
	c.printLiteralByte(lit, 'b')
	tmp := scratch.At(16)
	copyScratch := scratch.At(17)
	for f := 0; f < r.Bits; f++ {
		c.CopyByte(r.At(f), tmp, copyScratch)
		c.AddConstToByte(tmp, '0')
		c.Goto(tmp)
		c.Out()
		c.ZeroByte(tmp)
	}
}

// PrintBinregisterInDecimal prints r's unsigned value in decimal with no
// leading zeros (but "0" for a zero register). Implemented via repeated
// divmod-10 using scratch binregister workspace on the same track at a
// disjoint frame window above the small scratch cells used elsewhere.
func (c *Cpu) PrintBinregisterInDecimal(r BinRegister, scratch ScratchTrack) {
	bits := r.Bits
	const base = 200
	work := BinRegister{Track: scratch.Track, Bits: bits, Base: base}
	ten := BinRegister{Track: scratch.Track, Bits: bits, Base: base + bits}
	divOut := BinRegister{Track: scratch.Track, Bits: bits, Base: base + 2*bits}
	remOut := BinRegister{Track: scratch.Track, Bits: bits, Base: base + 3*bits}

	c.CopySlice(r.At(0), bits, work.At(0), scratch)
	c.SetBinregister(ten, 10)

	maxDigits := bits/3 + 2
	digitBase := base + 4*bits
	digits := make([]Pos, maxDigits)
	for i := range digits {
		digits[i] = Pos{Frame: digitBase + i, Track: scratch.Track.Num}
	}

	for i := maxDigits - 1; i >= 0; i-- {
		c.DivBinregisters(work, ten, divOut, remOut, scratch)
		c.moveDigitOut(remOut, digits[i], scratch)
		c.CopySlice(divOut.At(0), bits, work.At(0), scratch)
		c.ZeroSlice(divOut.At(0), bits)
	}

	seenNonzero := scratch.At(18)
	c.ZeroByte(seenNonzero)
	for i := 0; i < maxDigits; i++ {
		isLast := i == maxDigits-1
		c.IfNonzero(digits[i], scratch, func(cpu *Cpu) {
			cpu.IncAt(seenNonzero)
		})
		c.IfNonzeroElse(seenNonzero, scratch, func(cpu *Cpu) {
			cpu.AddConstToByte(digits[i], '0')
			cpu.Goto(digits[i])
			cpu.Out()
			cpu.ZeroByte(digits[i])
		}, func(cpu *Cpu) {
			if isLast {
				cpu.AddConstToByte(digits[i], '0')
				cpu.Goto(digits[i])
				cpu.Out()
				cpu.ZeroByte(digits[i])
			} else {
				cpu.ZeroByte(digits[i])
			}
		})
	}
	c.ZeroByte(seenNonzero)
	c.ZeroSlice(work.At(0), bits)
	c.ZeroSlice(ten.At(0), bits)
}

// moveDigitOut converts a binregister holding a value in [0,9] (rem's
// result from dividing by ten) into the single decimal-digit byte cell out,
// leaving rem zeroed. Only the low 4 bits can be nonzero; higher bits are
// zeroed defensively.
func (c *Cpu) moveDigitOut(rem BinRegister, out Pos, scratch ScratchTrack) {
	for f := 0; f < rem.Bits-4; f++ {
		c.ZeroByte(rem.At(f))
	}
	weight := byte(8)
	for f := rem.Bits - 4; f < rem.Bits; f++ {
		if weight == 1 {
			c.MoveaddByte(rem.At(f), out)
		} else {
			c.IfNonzero(rem.At(f), scratch, func(cpu *Cpu) {
				cpu.AddConstToByte(out, weight)
			})
			c.ZeroByte(rem.At(f))
		}
		weight /= 2
	}
}
