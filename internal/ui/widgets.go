package ui

import (
	"sort"
	"strings"

	"chatflow/client/internal/forms"

	"github.com/rivo/tview"
)

func styledForm(title string) *tview.Form {
	form := tview.NewForm()
	form.SetBackgroundColor(ColorBg)
	form.SetFieldBackgroundColor(ColorField)
	form.SetFieldTextColor(ColorFg)
	form.SetLabelColor(ColorHighlight)
	form.SetButtonBackgroundColor(ColorButton)
	form.SetButtonTextColor(ColorTitle)
	form.SetBorder(true)
	form.SetBorderColor(ColorBorder)
	form.SetTitle(" " + title + " ")
	form.SetTitleColor(ColorTitle)
	return form
}

func styledList(title string) *tview.List {
	list := tview.NewList()
	list.SetBorder(true)
	list.SetBorderColor(ColorBorder)
	list.SetBackgroundColor(ColorBg)
	list.SetTitle(" " + title + " ")
	list.SetTitleColor(ColorTitle)
	list.SetMainTextColor(ColorFg)
	list.SetSelectedTextColor(ColorTitle)
	list.SetSelectedBackgroundColor(ColorButton)
	list.SetHighlightFullLine(true)
	return list
}

func styledText(title string) *tview.TextView {
	view := tview.NewTextView()
	view.SetDynamicColors(true)
	view.SetBackgroundColor(ColorBg)
	view.SetTextColor(ColorFg)
	if title != "" {
		view.SetBorder(true)
		view.SetBorderColor(ColorBorder)
		view.SetTitle(" " + title + " ")
		view.SetTitleColor(ColorTitle)
	}
	return view
}

// errorLine is the red line under a form that lists its field errors.
func errorLine() *tview.TextView {
	view := tview.NewTextView()
	view.SetDynamicColors(true)
	view.SetBackgroundColor(ColorBg)
	view.SetTextColor(ColorError)
	view.SetTextAlign(tview.AlignCenter)
	view.SetWordWrap(true)
	return view
}

// fieldErrorText joins field errors in a stable order.
func fieldErrorText(fe forms.FieldErrors) string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fe[f])
	}
	return tview.Escape(strings.Join(msgs, "\n"))
}

// centered wraps p in a fixed-size box in the middle of the screen.
func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(p, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)
}

// formWithErrors stacks a form over its error line.
func formWithErrors(form *tview.Form, errs *tview.TextView) *tview.Flex {
	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(errs, 3, 0, false)
}

// showModal puts p on top of everything under name.
func (a *App) showModal(name string, p tview.Primitive, width, height int) {
	a.pages.AddPage(name, centered(p, width, height), true, true)
	a.app.SetFocus(p)
}

func (a *App) closeModal(name string) {
	a.pages.RemovePage(name)
}
