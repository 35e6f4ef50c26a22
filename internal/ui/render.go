package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mmcdole/rolo/internal/cache"
	"github.com/mmcdole/rolo/internal/domain"
)

const maxCellWidth = 40

// ContactTable renders records as a bordered table
func ContactTable(records []cache.Record) string {
	if len(records) == 0 {
		return DimStyle.Render("No contacts.")
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{r.ID, Truncate(r.Name, maxCellWidth), Truncate(r.EmailOrEmpty(), maxCellWidth)}
	}
	return newTable(rows)
}

// SearchTable renders ranked results with matched characters highlighted
func SearchTable(results []cache.SearchResult) string {
	if len(results) == 0 {
		return DimStyle.Render("No matches.")
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		name, email := splitMatches(r.Name, r.EmailOrEmpty(), r.MatchedIndexes)
		rows[i] = []string{r.ID, name, email}
	}
	return newTable(rows)
}

func newTable(rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(DimStyle).
		Headers("ID", "NAME", "EMAIL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return HeaderStyle
			case col == 0:
				return IDCellStyle
			default:
				return CellStyle
			}
		})
	return t.String()
}

// splitMatches highlights the matched byte offsets of the indexed text
// "name email" and returns the name and email parts separately
func splitMatches(name, email string, matched []int) (string, string) {
	if email == "" {
		return HighlightMatches(name, matched), ""
	}
	return HighlightMatches(name, matched), HighlightMatches(email, shift(matched, len(name)+1))
}

func shift(indexes []int, by int) []int {
	out := make([]int, 0, len(indexes))
	for _, i := range indexes {
		if i >= by {
			out = append(out, i-by)
		}
	}
	return out
}

// HighlightMatches renders text with the bytes at matchedIndexes in the
// match style
func HighlightMatches(text string, matchedIndexes []int) string {
	if len(matchedIndexes) == 0 {
		return text
	}

	matchSet := make(map[int]bool, len(matchedIndexes))
	for _, idx := range matchedIndexes {
		matchSet[idx] = true
	}

	var b strings.Builder
	for i, r := range text {
		if matchSet[i] {
			b.WriteString(MatchHighlightStyle.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContactDetail renders one contact with its phones in order
func ContactDetail(d domain.ContactDetail) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(d.Name))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s%s\n", LabelStyle.Render("id"), DimStyle.Render(d.ID))
	if email := d.EmailOrEmpty(); email != "" {
		fmt.Fprintf(&b, "%s%s\n", LabelStyle.Render("email"), email)
	}
	if len(d.Phones) == 0 {
		fmt.Fprintf(&b, "%s%s\n", LabelStyle.Render("phones"), DimStyle.Render("none"))
		return b.String()
	}
	for i, p := range d.Phones {
		label := ""
		if i == 0 {
			label = "phones"
		}
		line := p.Number
		if t := p.TypeOrEmpty(); t != "" {
			line += " " + AccentStyle.Render("("+t+")")
		}
		fmt.Fprintf(&b, "%s%s  %s\n", LabelStyle.Render(label), line, DimStyle.Render(p.ID))
	}
	return b.String()
}

// ImportReport renders the counts and failures of a batch import
func ImportReport(r domain.ImportReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d imported, %d skipped, %d failed\n",
		SuccessStyle.Render("✓"), r.Imported, r.Skipped, len(r.Failures))
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "  %s %s\n", ErrorStyle.Render("✗"), f)
	}
	return b.String()
}

// UploadResult renders the response of a server-side import
func UploadResult(r domain.UploadResult) string {
	return fmt.Sprintf("%s %d imported, %d skipped by the server\n", SuccessStyle.Render("✓"), r.Count, r.Skipped)
}

// Success renders a one-line confirmation
func Success(msg string) string {
	return SuccessStyle.Render("✓") + " " + msg + "\n"
}
