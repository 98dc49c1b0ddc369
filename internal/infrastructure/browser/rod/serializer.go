package rod

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"github.com/softlight/wayfinder/internal/domain/entity"
	"github.com/softlight/wayfinder/internal/infrastructure/browser/pagetext"
)

const (
	buttonSelector = "button, [role='button'], input[type='submit'], input[type='button'], [onclick]"
	inputSelector  = "input:not([type='submit']):not([type='button']):not([type='hidden']), textarea, [role='textbox'], [contenteditable='true']"
	linkSelector   = "a[href]"
)

// Snapshot serializes the current page into the text form fed to the
// decision model: URL, visible interactive elements grouped by role, and
// the page's visible text lines.
func (a *Adapter) Snapshot(ctx context.Context) (entity.PageSnapshot, error) {
	page := a.page.Context(ctx).Timeout(a.cfg.ActionTimeout)

	snap := entity.PageSnapshot{URL: a.CurrentURL()}

	var elements []entity.PageElement
	elements = append(elements, a.collect(page, buttonSelector, entity.RoleButton)...)
	elements = append(elements, a.collect(page, inputSelector, entity.RoleInput)...)
	elements = append(elements, a.collect(page, linkSelector, entity.RoleLink)...)
	snap.Elements = elements

	html, err := page.HTML()
	if err != nil {
		return entity.PageSnapshot{}, fmt.Errorf("read page html: %w", mapErr(err))
	}
	snap.VisibleText = pagetext.VisibleLines(html)

	if err := ctx.Err(); err != nil {
		return entity.PageSnapshot{}, err
	}
	return snap, nil
}

func (a *Adapter) collect(page *rod.Page, selector, role string) []entity.PageElement {
	els, err := page.Elements(selector)
	if err != nil {
		a.log.Debug("element query failed", zap.String("role", role), zap.Error(err))
		return nil
	}

	var out []entity.PageElement
	seen := make(map[string]struct{})
	for _, el := range els {
		if visible, verr := el.Visible(); verr != nil || !visible {
			continue
		}
		pe := entity.PageElement{Role: role, Text: elementLabel(el, role), Hint: elementHint(el, role)}
		if pe.Text == "" && pe.Hint == "" {
			continue
		}
		key := pe.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, pe)
	}
	return out
}

// elementLabel picks the string the model should use to address the
// element. Inputs prefer their placeholder over surrounding text.
func elementLabel(el *rod.Element, role string) string {
	if role == entity.RoleInput {
		for _, attr := range []string{"placeholder", "aria-label", "name", "id"} {
			if v, err := el.Attribute(attr); err == nil && v != nil && *v != "" {
				return *v
			}
		}
		return ""
	}

	if text, err := el.Text(); err == nil {
		if text = strings.Join(strings.Fields(text), " "); text != "" {
			return text
		}
	}
	if aria, err := el.Attribute("aria-label"); err == nil && aria != nil {
		return *aria
	}
	return ""
}

func elementHint(el *rod.Element, role string) string {
	switch role {
	case entity.RoleInput:
		if t, err := el.Attribute("type"); err == nil && t != nil && *t != "" {
			return *t
		}
		return "text"
	case entity.RoleLink:
		if href, err := el.Attribute("href"); err == nil && href != nil {
			return *href
		}
	}
	return ""
}
