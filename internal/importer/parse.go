package importer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-vcard"

	"github.com/mmcdole/rolo/internal/domain"
)

const maxLineSize = 1 << 20 // embedded photos produce long folded lines

// block is the raw text of one BEGIN:VCARD ... END:VCARD pair. A block
// that never saw its END marker is kept so it can be counted as skipped.
type block struct {
	text       string
	terminated bool
}

// splitBlocks cuts the payload into card blocks. Lines outside a block are
// ignored. A BEGIN inside an open block abandons the open one.
func splitBlocks(r io.Reader) ([]block, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		blocks []block
		cur    strings.Builder
		open   bool
	)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		marker := strings.ToUpper(strings.TrimSpace(line))

		switch {
		case marker == "BEGIN:VCARD":
			if open {
				blocks = append(blocks, block{text: cur.String()})
			}
			cur.Reset()
			open = true
			cur.WriteString("BEGIN:VCARD\r\n")
		case !open:
			continue
		case marker == "END:VCARD":
			cur.WriteString("END:VCARD\r\n")
			blocks = append(blocks, block{text: cur.String(), terminated: true})
			cur.Reset()
			open = false
		default:
			cur.WriteString(line)
			cur.WriteString("\r\n")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}
	if open {
		blocks = append(blocks, block{text: cur.String()})
	}
	return blocks, nil
}

// parseBlock decodes one block. Every error wraps domain.ErrImportParseSkip.
func parseBlock(b block) (domain.ImportRecord, error) {
	if !b.terminated {
		return domain.ImportRecord{}, fmt.Errorf("%w: unterminated card", domain.ErrImportParseSkip)
	}

	card, err := vcard.NewDecoder(strings.NewReader(normalizeParams(b.text))).Decode()
	if err != nil {
		return domain.ImportRecord{}, fmt.Errorf("%w: %w", domain.ErrImportParseSkip, err)
	}

	rec := domain.ImportRecord{
		Name:  cardName(card),
		Email: strings.TrimSpace(card.PreferredValue(vcard.FieldEmail)),
	}
	if rec.Name == "" {
		return domain.ImportRecord{}, fmt.Errorf("%w: card has no name", domain.ErrImportParseSkip)
	}

	for _, f := range card[vcard.FieldTelephone] {
		number := strings.TrimSpace(f.Value)
		number = strings.TrimPrefix(number, "tel:")
		if number == "" {
			continue
		}
		rec.Phones = append(rec.Phones, domain.ImportPhone{
			Number:     number,
			NumberType: phoneType(f.Params.Types()),
		})
	}
	return rec, nil
}

// cardName prefers FN and falls back to the structured N field
func cardName(card vcard.Card) string {
	if fn := strings.TrimSpace(card.PreferredValue(vcard.FieldFormattedName)); fn != "" {
		return fn
	}
	n := card.Name()
	if n == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{n.GivenName, n.AdditionalName, n.FamilyName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Type values that describe preference or medium rather than the kind of
// number. They are used only when nothing else is given.
var weakTypes = map[string]bool{"pref": true, "voice": true}

// phoneType picks the label of a TEL field: the first type that is not a
// weak type, else the first type, lower-cased
func phoneType(types []string) string {
	var all []string
	for _, t := range types {
		for _, v := range strings.Split(t, ",") {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				all = append(all, v)
			}
		}
	}
	for _, t := range all {
		if !weakTypes[t] {
			return t
		}
	}
	if len(all) > 0 {
		return all[0]
	}
	return ""
}

// vCard 2.1 encodings that may appear as bare parameters
var bareEncodings = map[string]bool{"QUOTED-PRINTABLE": true, "BASE64": true, "8BIT": true, "7BIT": true}

// normalizeParams rewrites vCard 2.1 bare parameters (TEL;CELL;VOICE:...)
// into the name=value form the decoder understands (TEL;TYPE=CELL;TYPE=VOICE:...).
// Folded continuation lines and values are left untouched.
func normalizeParams(text string) string {
	lines := strings.Split(text, "\r\n")
	for i, line := range lines {
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		end := nameEnd(line)
		if end < 0 || !strings.Contains(line[:end], ";") {
			continue
		}

		segs := strings.Split(line[:end], ";")
		changed := false
		for j := 1; j < len(segs); j++ {
			seg := strings.TrimSpace(segs[j])
			if seg == "" || strings.Contains(seg, "=") {
				continue
			}
			if bareEncodings[strings.ToUpper(seg)] {
				segs[j] = "ENCODING=" + seg
			} else {
				segs[j] = "TYPE=" + seg
			}
			changed = true
		}
		if changed {
			lines[i] = strings.Join(segs, ";") + line[end:]
		}
	}
	return strings.Join(lines, "\r\n")
}

// nameEnd returns the index of the colon ending the name and parameters
// of a content line, skipping quoted parameter values, or -1
func nameEnd(line string) int {
	quoted := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			quoted = !quoted
		case ':':
			if !quoted {
				return i
			}
		}
	}
	return -1
}
