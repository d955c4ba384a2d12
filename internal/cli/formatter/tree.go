package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dverna/crossplan/internal/domain"
)

// TreeItem is one rendered row of the backlog hierarchy.
type TreeItem struct {
	Item   *domain.WorkItem
	Level  int
	IsLast bool

	// Faded marks items whose iteration lies outside the selected window;
	// they render dimmed to keep context without stealing attention.
	Faded bool
}

const (
	treeBranch = "├─ "
	treeCorner = "└─ "
	treePipe   = "│  "
)

// RenderTree renders the Epic→Feature→Backlog-Item→Task hierarchy with
// box-drawing connectors. Done items get a green ✔ prefix, in-progress a
// yellow ▶, and remaining-work badges are right-aligned.
func RenderTree(items []TreeItem) string {
	if len(items) == 0 {
		return ""
	}

	type lineInfo struct {
		content string
		badge   string
	}

	lines := make([]lineInfo, len(items))
	maxContentWidth := 0

	for idx, ti := range items {
		var prefix string
		if ti.Level > 0 {
			for i := 1; i < ti.Level; i++ {
				prefix += treePipe
			}
			if ti.IsLast {
				prefix += treeCorner
			} else {
				prefix += treeBranch
			}
		}

		w := ti.Item
		title := w.Fields.String(domain.FieldTitle)
		switch itemType := w.Type(); itemType {
		case domain.TypeEpic, domain.TypeFeature:
			title = TypeStyle(itemType).Render(title)
		}
		if w.ID > 0 {
			title = StyleDim.Render(fmt.Sprintf("#%d ", w.ID)) + title
		} else if w.TempID != "" {
			title = StyleDim.Render("(draft) ") + title
		}

		statusPrefix := ""
		state := w.Fields.String(domain.FieldState)
		switch state {
		case domain.StateDone:
			statusPrefix = StateStyle(state).Render("✔ ")
			title = Dim(title)
		case domain.StateInProgress:
			statusPrefix = StateStyle(state).Render("▶ ")
			title = StyleYellow.Render(title)
		}
		if ti.Faded {
			title = StyleFaded.Render(w.Fields.String(domain.FieldTitle))
		}

		content := prefix + statusPrefix + title
		lines[idx].content = content

		if rw := w.Fields.Float(domain.FieldRemainingWork); rw > 0 {
			lines[idx].badge = StyleBlue.Render(fmt.Sprintf("[ %gh ]", rw))
		}

		if width := lipgloss.Width(content); width > maxContentWidth {
			maxContentWidth = width
		}
	}

	var b strings.Builder
	for _, li := range lines {
		if li.badge != "" {
			pad := maxContentWidth - lipgloss.Width(li.content)
			if pad < 0 {
				pad = 0
			}
			b.WriteString(li.content + strings.Repeat(" ", pad) + "  " + li.badge + "\n")
		} else {
			b.WriteString(li.content + "\n")
		}
	}

	return b.String()
}

// FlattenTree walks top-level parents depth-first, emitting one TreeItem
// per node. fadedFn decides per item whether it renders dimmed; nil means
// nothing fades.
func FlattenTree(roots []*domain.WorkItem, fadedFn func(*domain.WorkItem) bool) []TreeItem {
	var out []TreeItem
	var walk func(w *domain.WorkItem, level int, isLast bool)
	walk = func(w *domain.WorkItem, level int, isLast bool) {
		faded := fadedFn != nil && fadedFn(w)
		out = append(out, TreeItem{Item: w, Level: level, IsLast: isLast, Faded: faded})
		for i, child := range w.Children {
			walk(child, level+1, i == len(w.Children)-1)
		}
	}
	for i, root := range roots {
		walk(root, 0, i == len(roots)-1)
	}
	return out
}
