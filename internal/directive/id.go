package directive

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// idDomainKey is the 32-byte key for BLAKE3 keyed hashing of directive
// ids. The bytes are the ASCII domain name zero-padded to 32; readable
// ASCII keeps the key inspectable in hex dumps without weakening keyed
// mode, which treats it as an opaque value.
var idDomainKey = [32]byte{
	'a', 'g', 'e', 'n', 't', 'p', 'a', 'c', 'k', '.',
	'd', 'i', 'r', 'e', 'c', 't', 'i', 'v', 'e', '.',
	'i', 'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// computeID derives a directive's stable identity from its semantic
// content: kind, prompt text, and options. The bound variable name and
// the position in the document never participate, so re-parsing
// unchanged content yields identical ids and renaming a variable keeps
// prior cache entries valid.
func computeID(d *Directive) string {
	h, err := blake3.NewKeyed(idDomainKey[:])
	if err != nil {
		// NewKeyed fails only for a wrong key length, which the
		// fixed-size array rules out.
		panic("directive: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	fields := []string{string(d.Kind)}
	switch d.Kind {
	case KindInteractive:
		fields = append(fields,
			normalizeText(d.Question),
			optionalString(d.Interactive.DefaultValue),
			optionalString(d.Interactive.Placeholder),
		)
	case KindDelegated:
		fields = append(fields,
			string(d.Prompt.Kind),
			normalizeText(d.Prompt.Value),
			strconv.FormatBool(d.Delegated.ExpectJSON),
			d.Delegated.Tool,
			optionalBool(d.Delegated.SafeMode),
			strconv.Itoa(d.Delegated.TimeoutMs),
			optionalString(d.Delegated.SystemPrompt),
		)
	}
	for _, f := range fields {
		// Length prefixes keep field boundaries unambiguous.
		h.Write([]byte(strconv.Itoa(len(f))))
		h.Write([]byte{':'})
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// normalizeText makes ids independent of checkout line endings and
// surrounding whitespace.
func normalizeText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}

// optionalString encodes a pointer field so that absent, empty, and
// non-empty values all hash differently.
func optionalString(p *string) string {
	if p == nil {
		return "-"
	}
	return "+" + *p
}

func optionalBool(p *bool) string {
	if p == nil {
		return "-"
	}
	return "+" + strconv.FormatBool(*p)
}
