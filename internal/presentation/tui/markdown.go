package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/vitrine/pkg/domain"
)

// MaxRows caps how many rows of a frame are printed.
const MaxRows = 20

// Markdown converts a view into a markdown document, one block per element.
func Markdown(v domain.View) string {
	var b strings.Builder

	title := v.ReportName
	if title == "" {
		title = "vitrine"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if v.Dialog != nil {
		writeDialog(&b, v.Dialog)
	}

	for _, ev := range v.Elements {
		block := element(ev.Element.Payload)
		if block == "" {
			continue
		}
		if ev.Stale {
			b.WriteString("*stale:*\n\n")
		}
		b.WriteString(block)
		b.WriteString("\n\n")
	}
	// Remote text must not reach the terminal as escape sequences.
	return StripControl(strings.TrimRight(b.String(), "\n")) + "\n"
}

func writeDialog(b *strings.Builder, d *domain.Dialog) {
	switch d.Kind {
	case domain.DialogCompileError:
		fmt.Fprintf(b, "> **Compilation error:** %s\n\n", d.Message)
	case domain.DialogScriptChanged:
		b.WriteString("> **The script changed on disk.** Rerun to see the new version.\n\n")
	case domain.DialogUploadProgress:
		fmt.Fprintf(b, "> Uploading report: %d%%\n\n", d.Progress)
	case domain.DialogUploaded:
		fmt.Fprintf(b, "> Report published at %s\n\n", d.URL)
	case domain.DialogLogin:
		b.WriteString("> **The server requires a login.**\n\n")
	default:
		fmt.Fprintf(b, "> %s\n\n", d.Message)
	}
}

func element(p domain.Payload) string {
	switch v := p.(type) {
	case domain.Text:
		return text(v)
	case domain.DataFrame:
		return table(v)
	case domain.Table:
		return table(v.DataFrame)
	case domain.Chart:
		return fmt.Sprintf("*%s chart, %d rows*\n\n%s", v.Type, v.Data.NumRows(), table(v.Data))
	case domain.VegaLiteChart:
		return fmt.Sprintf("*Vega-Lite chart, %d rows*\n\n%s", v.Data.NumRows(), table(v.Data))
	case domain.Map:
		return fmt.Sprintf("*map, %d points*", v.Points.NumRows())
	case domain.ImageList:
		var lines []string
		for _, img := range v.Images {
			if img.URL != "" {
				lines = append(lines, fmt.Sprintf("![%s](%s)", img.Caption, img.URL))
			} else {
				lines = append(lines, fmt.Sprintf("*image: %s*", img.Caption))
			}
		}
		return strings.Join(lines, "\n")
	case domain.DocString:
		head := v.Name
		if v.Signature != "" {
			head += v.Signature
		}
		return fmt.Sprintf("`%s`\n\n%s", head, v.DocString)
	case domain.Exception:
		out := fmt.Sprintf("**%s:** %s", v.Type, v.Message)
		if len(v.StackTrace) > 0 {
			out += "\n\n```\n" + strings.Join(v.StackTrace, "\n") + "\n```"
		}
		return out
	case domain.Progress:
		return progress(v.Value)
	case domain.Balloons:
		return "*balloons!*"
	default:
		// Empty and nil render nothing.
		return ""
	}
}

func text(t domain.Text) string {
	switch t.Format {
	case domain.FormatMarkdown:
		return t.Body
	case domain.FormatJSON:
		return "```json\n" + t.Body + "\n```"
	case domain.FormatError:
		return "> **Error:** " + t.Body
	case domain.FormatWarning:
		return "> **Warning:** " + t.Body
	case domain.FormatInfo:
		return "> " + t.Body
	case domain.FormatSuccess:
		return "> **Success:** " + t.Body
	default:
		return "```\n" + t.Body + "\n```"
	}
}

func table(df domain.DataFrame) string {
	if len(df.Columns) == 0 {
		return "*empty table*"
	}
	var b strings.Builder
	b.WriteString("|")
	for _, c := range df.Columns {
		fmt.Fprintf(&b, " %s |", cell(c.Name))
	}
	b.WriteString("\n|")
	for range df.Columns {
		b.WriteString(" --- |")
	}

	rows := df.NumRows()
	for i := 0; i < min(rows, MaxRows); i++ {
		b.WriteString("\n|")
		for _, c := range df.Columns {
			var v any
			if i < len(c.Values) {
				v = c.Values[i]
			}
			fmt.Fprintf(&b, " %s |", cell(v))
		}
	}
	if rows > MaxRows {
		fmt.Fprintf(&b, "\n\n*%d more rows*", rows-MaxRows)
	}
	return b.String()
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	return strings.ReplaceAll(fmt.Sprint(v), "|", `\|`)
}

func progress(value int) string {
	value = max(0, min(value, 100))
	filled := value / 5
	return fmt.Sprintf("`[%s%s] %d%%`", strings.Repeat("#", filled), strings.Repeat(" ", 20-filled), value)
}
