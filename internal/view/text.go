package view

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/vdavid/vmail/webclient/internal/controller"
	"github.com/vdavid/vmail/webclient/internal/models"
)

const timeLayout = "2006-01-02 15:04"

// TextRenderer paints views as plain text, for terminals.
type TextRenderer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextRenderer creates a renderer writing to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (t *TextRenderer) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintf(t.w, format, args...)
}

func (t *TextRenderer) Redirect(fragment string) {
	t.printf("-> %s\n", fragment)
}

func (t *TextRenderer) RenderFolders(system, user []string, active string) {
	names := make([]string, 0, len(system)+len(user))
	for _, f := range append(append([]string{}, system...), user...) {
		if f == active {
			f = "[" + f + "]"
		}
		names = append(names, f)
	}
	t.printf("Folders: %s\n", strings.Join(names, " "))
}

func (t *TextRenderer) RenderMessageList(page controller.ListPage) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, page %d of %d (%d messages)\n", page.Folder, page.PageIndex+1, page.PageCount, page.Total)
	if len(page.Messages) == 0 {
		b.WriteString("  (empty)\n")
	}
	for _, m := range page.Messages {
		marker := " "
		if m.ID == page.Selected {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %-8s %s  %-24s %s\n", marker, m.ID, m.Timestamp.Format(timeLayout), truncate(m.From, 24), m.Subject)
	}
	t.printf("%s", b.String())
}

func (t *TextRenderer) RenderMessage(folder string, msg models.Message) {
	t.printf("--- %s/%s\nFrom: %s\nTo: %s\nDate: %s\nSubject: %s\n\n%s\n---\n",
		folder, msg.ID, msg.From, msg.To, msg.Timestamp.Format(timeLayout), msg.Subject, msg.Body)
}

func (t *TextRenderer) RenderCompose(folder string, draft *models.Message) {
	if draft == nil {
		t.printf("Compose (from %s)\n", folder)
		return
	}
	t.printf("Compose draft %s\nTo: %s\nSubject: %s\n\n%s\n", draft.ID, draft.To, draft.Subject, draft.Body)
}

func (t *TextRenderer) RenderFolderNameFeedback(name string, err error) {
	if err != nil {
		t.printf("Folder name %q: %v\n", name, err)
		return
	}
	t.printf("Folder name %q is available\n", name)
}

func (t *TextRenderer) RenderNotice(text string) {
	t.printf("* %s\n", text)
}

func (t *TextRenderer) RenderError(err error) {
	t.printf("! %s error: %v\n", ErrorKind(err), err)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Ensure TextRenderer implements controller.Renderer
var _ controller.Renderer = (*TextRenderer)(nil)
