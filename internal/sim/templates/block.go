// Package templates expands positioned layout elements into voxel edits.
// Every expansion is a restartable iter.Seq: iterating it twice yields the
// same edits in the same order.
package templates

import (
	"fmt"
	"sort"
	"strings"
)

// Block is a block id with its canonical state string ("k=v,k=v" sorted by
// key) and optional SNBT data.
type Block struct {
	ID    string
	State string
	Data  string
}

var Air = Block{ID: "minecraft:air"}

// ParseBlock accepts "ns:id" or "ns:id[k=v,...]".
func ParseBlock(s string) Block {
	id, state, ok := strings.Cut(s, "[")
	if !ok {
		return Block{ID: s}
	}
	state = strings.TrimSuffix(state, "]")
	return Block{ID: id, State: canonicalState(state)}
}

func canonicalState(s string) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (b Block) String() string {
	if b.State == "" {
		return b.ID
	}
	return b.ID + "[" + b.State + "]"
}

func (b Block) IsAir() bool { return b.ID == Air.ID }

// StateMap decodes the state string.
func (b Block) StateMap() map[string]string {
	if b.State == "" {
		return nil
	}
	out := map[string]string{}
	for _, kv := range strings.Split(b.State, ",") {
		k, v, _ := strings.Cut(kv, "=")
		out[k] = v
	}
	return out
}

// WithState returns b with key set to value.
func (b Block) WithState(key, value string) Block {
	m := b.StateMap()
	if m == nil {
		m = map[string]string{}
	}
	m[key] = value
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	b.State = strings.Join(parts, ",")
	return b
}

func (b Block) WithData(data string) Block {
	b.Data = data
	return b
}

// SignData builds the SNBT payload of a sign with up to four lines.
func SignData(color string, glowing bool, lines ...string) string {
	var msgs [4]string
	for i := range msgs {
		text := ""
		if i < len(lines) {
			text = strings.ReplaceAll(lines[i], `'`, `\'`)
		}
		msgs[i] = fmt.Sprintf(`'{"text":"%s"}'`, text)
	}
	glow := "0b"
	if glowing {
		glow = "1b"
	}
	return fmt.Sprintf(`{front_text:{color:"%s",has_glowing_text:%s,messages:[%s]}}`, color, glow, strings.Join(msgs[:], ","))
}
