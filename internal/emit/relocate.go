package emit

import "github.com/camljit/camljit/internal/decode"

// Relocate converts parsed's labels from raw source word offsets to
// indices into parsed.Instructions (spec.md §3: "relocation converts
// these to either parsed-instruction indices or basic-block indices"; the
// baseline emitter uses the former since it allocates one dynamic label
// per linear instruction index, not per basic block).
func Relocate(parsed *decode.ParsedInstructions) []decode.Instruction[int] {
	out := make([]decode.Instruction[int], len(parsed.Instructions))
	for i, ins := range parsed.Instructions {
		out[i] = decode.MapLabels(ins, func(byteOffset int32) int {
			return int(parsed.OffsetMap[byteOffset].Start)
		})
	}
	return out
}
