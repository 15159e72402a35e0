// Package binding maps a loaded graph's declared inputs to token-id and
// attention-mask roles and writes caller sequences into those inputs.
package binding

import (
	"fmt"
	"strings"

	"github.com/straja-ai/aidetect/internal/engine"
)

// Role is what an input slot carries.
type Role int

const (
	RoleUnknown Role = iota
	RoleTokenIDs
	RoleAttentionMask
)

func (r Role) String() string {
	switch r {
	case RoleTokenIDs:
		return "token_ids"
	case RoleAttentionMask:
		return "attention_mask"
	default:
		return "unknown"
	}
}

// MarshalText renders the role name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses a name produced by String.
func (r *Role) UnmarshalText(text []byte) error {
	for _, c := range []Role{RoleUnknown, RoleTokenIDs, RoleAttentionMask} {
		if c.String() == string(text) {
			*r = c
			return nil
		}
	}
	return fmt.Errorf("unknown input role %q", text)
}

// Descriptor is one classified input slot.
type Descriptor struct {
	Name    string             `json:"name" yaml:"name"`
	Role    Role               `json:"role" yaml:"role"`
	Index   int                `json:"index" yaml:"index"`
	Element engine.ElementType `json:"element" yaml:"element"`
	Dims    []int64            `json:"dims" yaml:"dims,flow"`
	// DeclaredSeqLen is dim 1 when positive, else 0.
	DeclaredSeqLen int `json:"declared_seq_len" yaml:"declared_seq_len"`
}

// Layout is the role assignment for one graph. Indices are positions into
// the graph's ordered inputs and are meaningless for any other graph.
type Layout struct {
	TokenIDs      int          `json:"token_ids_index" yaml:"token_ids_index"`
	AttentionMask int          `json:"attention_mask_index" yaml:"attention_mask_index"`
	SeqLen        int          `json:"seq_len" yaml:"seq_len"`
	Slots         []Descriptor `json:"slots" yaml:"slots"`
}

// Resolved reports whether the layout carries a fixed sequence length.
func (l Layout) Resolved() bool {
	return l.SeqLen > 0
}

func (l Layout) String() string {
	return fmt.Sprintf("token_ids=%d attention_mask=%d seq_len=%d", l.TokenIDs, l.AttentionMask, l.SeqLen)
}

// Classify maps an input name to a role. Matching is case-sensitive and the
// token-id substrings are tried first, so a name carrying both "input" and
// "attention" (e.g. "attention_mask_input") is a token-id slot.
func Classify(name string) Role {
	switch {
	case strings.Contains(name, "input_ids"), strings.Contains(name, "input"):
		return RoleTokenIDs
	case strings.Contains(name, "attention_mask"), strings.Contains(name, "attention"):
		return RoleAttentionMask
	}
	return RoleUnknown
}

// Resolve classifies slots in order. The first slot of each role wins and
// later slots of the same role stay RoleUnknown. When nothing classifies,
// slot 0 becomes token ids and slot 1 the attention mask.
func Resolve(slots []engine.SlotInfo) Layout {
	l := Layout{TokenIDs: -1, AttentionMask: -1, Slots: make([]Descriptor, len(slots))}

	for i, s := range slots {
		d := Descriptor{Name: s.Name, Index: i, Element: s.Element, Dims: append([]int64(nil), s.Dims...)}
		if s.Rank() >= 2 && s.Dim(1) > 0 {
			d.DeclaredSeqLen = int(s.Dim(1))
		}
		switch Classify(s.Name) {
		case RoleTokenIDs:
			if l.TokenIDs < 0 {
				l.TokenIDs = i
				d.Role = RoleTokenIDs
			}
		case RoleAttentionMask:
			if l.AttentionMask < 0 {
				l.AttentionMask = i
				d.Role = RoleAttentionMask
			}
		}
		l.Slots[i] = d
	}

	if l.TokenIDs < 0 && l.AttentionMask < 0 {
		if len(slots) >= 1 {
			l.TokenIDs = 0
			l.Slots[0].Role = RoleTokenIDs
		}
		if len(slots) >= 2 {
			l.AttentionMask = 1
			l.Slots[1].Role = RoleAttentionMask
		}
	}

	for _, d := range l.Slots {
		if d.Role != RoleUnknown && d.DeclaredSeqLen > 0 {
			l.SeqLen = d.DeclaredSeqLen
			break
		}
	}
	return l
}
