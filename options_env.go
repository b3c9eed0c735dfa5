package camljit

import (
	"os"
	"strconv"

	"github.com/camljit/camljit/internal/ir"
	"github.com/camljit/camljit/internal/trace"
)

// envVar is the single environment variable the host reads a
// shell-word-split command line of recognized options from (spec.md §6
// "a single environment-variable command line").
const envVar = "JIT_OPTIONS"

// OptionsFromEnv builds Options from JIT_OPTIONS, falling back to
// NewOptions' defaults for anything unset. Unrecognized tokens are
// ignored, matching a host embedding model where the option set may grow
// without every consumer needing to reject unknown flags.
func OptionsFromEnv() *Options {
	return parseOptions(os.Getenv(envVar))
}

func parseOptions(raw string) *Options {
	o := NewOptions()
	for _, tok := range splitShellWords(raw) {
		key, value, hasValue := splitKV(tok)
		switch key {
		case "use_jit":
			o = o.WithJIT(boolOr(value, hasValue, true))
		case "use_compiler":
			o = o.WithCompiler(boolOr(value, hasValue, true))
		case "trace":
			o = o.WithTrace(boolOr(value, hasValue, true))
		case "call_trace":
			o = o.WithCallTrace(boolOr(value, hasValue, true))
		case "trace_format":
			if f, ok := trace.ParseFormat(value); ok {
				o = o.WithTraceFormat(f)
			}
		case "output_dir":
			if hasValue {
				o = o.WithOutputDir(value)
			}
		case "save_compiled":
			o = o.WithSaveCompiled(boolOr(value, hasValue, true))
		case "save_instruction_counts":
			o = o.WithSaveInstructionCounts(boolOr(value, hasValue, true))
		case "hot_threshold":
			if n, err := strconv.ParseUint(value, 10, 64); hasValue && err == nil {
				o = o.WithHotThreshold(n)
			}
		case "no_hot_threshold":
			o = o.WithNoHotThreshold()
		case "cranelift_error_handling":
			switch value {
			case "panic":
				o = o.WithCraneliftErrorHandling(ir.ErrorHandlingPanic)
			case "log":
				o = o.WithCraneliftErrorHandling(ir.ErrorHandlingLog)
			case "ignore":
				o = o.WithCraneliftErrorHandling(ir.ErrorHandlingIgnore)
			}
		}
	}
	return o
}

func boolOr(value string, hasValue, defaultTrue bool) bool {
	if !hasValue {
		return defaultTrue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultTrue
	}
	return b
}

// splitKV splits a "key=value" token on its first '=', reporting whether a
// value was present at all ("key" alone means a boolean flag).
func splitKV(tok string) (key, value string, hasValue bool) {
	for i := 0; i < len(tok); i++ {
		if tok[i] == '=' {
			return tok[:i], tok[i+1:], true
		}
	}
	return tok, "", false
}

// splitShellWords tokenizes s the way a POSIX shell would word-split a
// command line, honoring single and double quotes, since no pack example
// imports a shell-word-splitting library and spec.md's Non-goals exclude a
// standalone CLI that would otherwise justify one.
func splitShellWords(s string) []string {
	var words []string
	var cur []byte
	inWord := false
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur = append(cur, c)
			}
		case c == '\'' || c == '"':
			quote = c
			inWord = true
		case c == ' ' || c == '\t' || c == '\n':
			if inWord {
				words = append(words, string(cur))
				cur = cur[:0]
				inWord = false
			}
		default:
			cur = append(cur, c)
			inWord = true
		}
	}
	if inWord {
		words = append(words, string(cur))
	}
	return words
}
