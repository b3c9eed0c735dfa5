package blocks

import (
	"fmt"
	"sort"

	"github.com/camljit/camljit/internal/decode"
)

// VerificationError is returned when the stack-depth tracking rules in
// spec.md §4.F are violated, or when re-entering a visited offset with an
// inconsistent start-stack-size or block type.
type VerificationError struct {
	Offset int32
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("blocks: verification failed at offset %d: %s", e.Offset, e.Reason)
}

type rawBlock struct {
	startOffset  int32
	blockType    Type
	startStack   int
	endStack     int
	instructions []decode.Instruction[int32]
	exit         rawExit
	predecessors map[int32]struct{}
}

// rawExit mirrors Exit but targets are original code offsets, translated to
// block ids once every reachable block has been discovered.
type rawExit struct {
	kind         ExitKind
	target       int32
	then, els    int32
	cmp          decode.Comp
	constv       int32
	ints, tags   []int32
	normal, trap int32
	pop          uint32
	args, toPop  uint32
	raise        decode.RaiseKind
}

type builder struct {
	words     []int32
	parsed    *decode.ParsedInstructions
	offsets   []int32 // sorted keys of parsed.OffsetMap
	pending   map[int32]*rawBlock
	order     []int32 // post-order of start offsets, appended as each finishes
	used      map[int32]struct{}
}

// Build reconstructs the basic-block graph of the closure whose first
// instruction begins at entryOffset within words.
func Build(words []int32, entryOffset int32, arity uint32) (*Closure, error) {
	parsed, err := decode.Parse(words, 0)
	if err != nil {
		if perr, ok := err.(*decode.ParseError); ok && perr.Partial != nil {
			parsed = perr.Partial
		} else {
			return nil, err
		}
	}

	offs := make([]int32, 0, len(parsed.OffsetMap))
	for k := range parsed.OffsetMap {
		offs = append(offs, k)
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })

	b := &builder{
		words:   words,
		parsed:  parsed,
		offsets: offs,
		pending: make(map[int32]*rawBlock),
		used:    make(map[int32]struct{}),
	}

	if err := b.visit(entryOffset, 0, First, nil); err != nil {
		return nil, err
	}

	// b.order is post-order (entry finishes last); reverse for RPO so the
	// entry gets id 0.
	n := len(b.order)
	ids := make(map[int32]int, n)
	rpo := make([]int32, n)
	for i, off := range b.order {
		id := n - 1 - i
		rpo[id] = off
		ids[off] = id
	}

	out := &Closure{Arity: arity, Blocks: make([]*Block, n)}
	for id, off := range rpo {
		rb := b.pending[off]
		preds := make([]int, 0, len(rb.predecessors))
		for p := range rb.predecessors {
			preds = append(preds, ids[p])
		}
		sort.Ints(preds)
		blk := &Block{
			ID:             id,
			Type:           rb.blockType,
			Predecessors:   preds,
			Instructions:   rb.instructions,
			StartStackSize: rb.startStack,
			EndStackSize:   rb.endStack,
		}
		blk.Exit = translateExit(rb.exit, ids)
		if blk.StartStackSize > out.MaxStackSize {
			out.MaxStackSize = blk.StartStackSize
		}
		if rb.blockType == Trap {
			out.HasTrapHandlers = true
		}
		out.Blocks[id] = blk
	}
	for off := range b.used {
		out.UsedClosures = append(out.UsedClosures, off)
	}
	sort.Slice(out.UsedClosures, func(i, j int) bool { return out.UsedClosures[i] < out.UsedClosures[j] })

	computeSealedBlocks(out)
	return out, nil
}

func translateExit(re rawExit, ids map[int32]int) Exit {
	e := Exit{Kind: re.kind, Cmp: re.cmp, Const: re.constv, Pop: re.pop, Args: re.args, ToPop: re.toPop, Raise: re.raise}
	switch re.kind {
	case ExitBranch:
		e.Target = ids[re.target]
	case ExitBranchIf, ExitBranchCmp:
		e.Then = ids[re.then]
		e.Else = ids[re.els]
	case ExitSwitch:
		e.Ints = make([]int, len(re.ints))
		for i, o := range re.ints {
			e.Ints[i] = ids[o]
		}
		e.Tags = make([]int, len(re.tags))
		for i, o := range re.tags {
			e.Tags[i] = ids[o]
		}
	case ExitPushTrap:
		e.Normal = ids[re.normal]
		e.Trap = ids[re.trap]
	}
	return e
}

// nextOffset returns the first recorded original-word offset strictly
// greater than off, or -1 if off is the last one.
func (b *builder) nextOffset(off int32) int32 {
	i := sort.Search(len(b.offsets), func(i int) bool { return b.offsets[i] > off })
	if i >= len(b.offsets) {
		return -1
	}
	return b.offsets[i]
}

func (b *builder) groupAt(off int32) []decode.Instruction[int32] {
	span := b.parsed.OffsetMap[off]
	return b.parsed.Instructions[span.Start+1 : span.Start+span.Count]
}

// visit constructs (or links a predecessor into) the block starting at off.
func (b *builder) visit(off int32, startStack int, blockType Type, pred *int32) error {
	if rb, ok := b.pending[off]; ok {
		if rb.startStack != startStack {
			return &VerificationError{Offset: off, Reason: fmt.Sprintf("stack size mismatch: have %d, want %d", rb.startStack, startStack)}
		}
		if rb.blockType != blockType && !(rb.blockType == First && blockType == Normal) {
			return &VerificationError{Offset: off, Reason: "block type mismatch on re-entry"}
		}
		if pred != nil {
			rb.predecessors[*pred] = struct{}{}
		}
		return nil
	}

	rb := &rawBlock{startOffset: off, blockType: blockType, startStack: startStack, predecessors: make(map[int32]struct{})}
	if pred != nil {
		rb.predecessors[*pred] = struct{}{}
	}
	b.pending[off] = rb // placeholder visible to recursive back-edges before we finish

	depth := startStack
	cur := off
	for {
		span, ok := b.parsed.OffsetMap[cur]
		if !ok {
			return &VerificationError{Offset: cur, Reason: "offset does not begin a decoded instruction"}
		}
		group := b.parsed.Instructions[span.Start+1 : span.Start+span.Count]
		rb.instructions = append(rb.instructions, group...)

		last := group[len(group)-1]
		delta, checkErr := stackDelta(last, depth)
		if checkErr != nil {
			return &VerificationError{Offset: cur, Reason: checkErr.Error()}
		}

		terminal, err := b.handleExit(rb, last, cur, depth, delta)
		if err != nil {
			return err
		}
		if terminal {
			rb.endStack = depth // terminal instructions don't further change depth
			break
		}
		depth += delta

		nxt := b.nextOffset(cur)
		if nxt < 0 {
			rb.endStack = depth
			rb.exit = rawExit{kind: ExitStop}
			break
		}
		cur = nxt
	}

	b.order = append(b.order, off)
	return nil
}

// handleExit records rb.exit and recurses into successor blocks when last
// is a branch/terminal instruction. Returns terminal=true if this ends the
// block (no further straight-line instructions follow in it).
func (b *builder) handleExit(rb *rawBlock, last decode.Instruction[int32], cur int32, depth int, delta int) (terminal bool, err error) {
	switch last.Kind {
	case decode.Branch:
		rb.endStack = depth + delta
		rb.exit = rawExit{kind: ExitBranch, target: last.Label}
		return true, b.visit(last.Label, rb.endStack, Normal, &rb.startOffset)

	case decode.BranchIf, decode.BranchIfNot:
		fall := b.nextOffset(cur)
		then, els := last.Label, fall
		if last.Kind == decode.BranchIfNot {
			then, els = fall, last.Label
		}
		rb.endStack = depth + delta
		rb.exit = rawExit{kind: ExitBranchIf, then: then, els: els}
		if err := b.visit(then, rb.endStack, Normal, &rb.startOffset); err != nil {
			return true, err
		}
		if els >= 0 {
			return true, b.visit(els, rb.endStack, Normal, &rb.startOffset)
		}
		return true, nil

	case decode.BranchCmp:
		fall := b.nextOffset(cur)
		rb.endStack = depth + delta
		rb.exit = rawExit{kind: ExitBranchCmp, then: last.Label, els: fall, cmp: last.Cmp, constv: last.Int}
		if err := b.visit(last.Label, rb.endStack, Normal, &rb.startOffset); err != nil {
			return true, err
		}
		if fall >= 0 {
			return true, b.visit(fall, rb.endStack, Normal, &rb.startOffset)
		}
		return true, nil

	case decode.Switch:
		rb.endStack = depth + delta
		ints := last.Labels[:last.IntCount]
		tags := last.Labels[last.IntCount:]
		rb.exit = rawExit{kind: ExitSwitch, ints: ints, tags: tags}
		for _, l := range ints {
			if err := b.visit(l, rb.endStack, Normal, &rb.startOffset); err != nil {
				return true, err
			}
		}
		for _, l := range tags {
			if err := b.visit(l, rb.endStack, Normal, &rb.startOffset); err != nil {
				return true, err
			}
		}
		return true, nil

	case decode.PushTrap:
		fall := b.nextOffset(cur)
		rb.endStack = depth // the +4 only applies on the normal continuation edge
		rb.exit = rawExit{kind: ExitPushTrap, normal: fall, trap: last.Label}
		if fall >= 0 {
			if err := b.visit(fall, depth+4, Normal, &rb.startOffset); err != nil {
				return true, err
			}
		}
		return true, b.visit(last.Label, depth, Trap, &rb.startOffset)

	case decode.ApplyTerm:
		if depth != int(last.Uint2) {
			return true, &VerificationError{Offset: cur, Reason: fmt.Sprintf("ApplyTerm slot mismatch: depth=%d slot=%d", depth, last.Uint2)}
		}
		rb.endStack = depth
		rb.exit = rawExit{kind: ExitTailCall, args: last.Uint, toPop: last.Uint2}
		return true, nil

	case decode.Return:
		if depth != int(last.Uint) {
			return true, &VerificationError{Offset: cur, Reason: fmt.Sprintf("Return depth mismatch: depth=%d n=%d", depth, last.Uint)}
		}
		rb.endStack = depth
		rb.exit = rawExit{kind: ExitReturn, pop: last.Uint}
		return true, nil

	case decode.Raise:
		rb.endStack = depth
		rb.exit = rawExit{kind: ExitRaise, raise: last.Raise}
		return true, nil

	case decode.Stop:
		rb.endStack = depth
		rb.exit = rawExit{kind: ExitStop}
		return true, nil

	case decode.Closure:
		b.used[last.Label] = struct{}{}
	case decode.ClosureRec:
		for _, l := range last.Labels {
			b.used[l] = struct{}{}
		}
	}
	return false, nil
}

// stackDelta returns the net VM-stack change for ins given the current
// depth, enforcing the per-instruction checks of spec.md §4.F's table.
func stackDelta(ins decode.Instruction[int32], depth int) (int, error) {
	switch ins.Kind {
	case decode.Push:
		return 1, nil
	case decode.PushRetAddr:
		return 3, nil
	case decode.Pop:
		if depth < int(ins.Uint) {
			return 0, fmt.Errorf("Pop(%d) with depth %d", ins.Uint, depth)
		}
		return -int(ins.Uint), nil
	case decode.Assign:
		if depth <= int(ins.Uint) {
			return 0, fmt.Errorf("Assign(%d) with depth %d", ins.Uint, depth)
		}
		return 0, nil
	case decode.Apply1:
		if depth < 1 {
			return 0, fmt.Errorf("Apply1 with depth %d", depth)
		}
		return -1, nil
	case decode.Apply2:
		if depth < 2 {
			return 0, fmt.Errorf("Apply2 with depth %d", depth)
		}
		return -2, nil
	case decode.Apply3:
		if depth < 3 {
			return 0, fmt.Errorf("Apply3 with depth %d", depth)
		}
		return -3, nil
	case decode.Apply:
		need := int(ins.Uint) + 3
		if depth < need {
			return 0, fmt.Errorf("Apply(%d) with depth %d", ins.Uint, depth)
		}
		return -need, nil
	case decode.ClosureRec:
		d := len(ins.Labels)
		if ins.Uint2 > 0 {
			d -= int(ins.Uint2) - 1
		}
		return d, nil
	case decode.MakeBlock:
		if ins.Uint > 0 {
			return -(int(ins.Uint) - 1), nil
		}
		return 0, nil
	case decode.PopTrap:
		if depth < 4 {
			return 0, fmt.Errorf("PopTrap with depth %d", depth)
		}
		return -4, nil
	case decode.CCall:
		// Not listed explicitly in spec.md's table, but every C-call form
		// pops its stack-resident arguments (accu carries the first) after
		// the primitive returns, per the source VM's C_CALLn semantics.
		n := int(ins.Uint) - 1
		if n > 0 {
			if depth < n {
				return 0, fmt.Errorf("CCall with %d stack args, depth %d", n, depth)
			}
			return -n, nil
		}
		return 0, nil
	default:
		return 0, nil
	}
}

// computeSealedBlocks fills in Block.SealedBlocks: block x is sealed by its
// maximum-numbered predecessor in reverse post-order.
func computeSealedBlocks(c *Closure) {
	sealedBy := make(map[int]int)
	for _, blk := range c.Blocks {
		for _, p := range blk.Predecessors {
			if cur, ok := sealedBy[blk.ID]; !ok || p > cur {
				sealedBy[blk.ID] = p
			}
		}
	}
	for id, by := range sealedBy {
		c.Blocks[by].SealedBlocks = append(c.Blocks[by].SealedBlocks, id)
	}
	for _, blk := range c.Blocks {
		sort.Ints(blk.SealedBlocks)
	}
}
