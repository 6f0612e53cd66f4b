package mailer

import (
	"bytes"
	_ "embed"
	"fmt"
	"html"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v2"
)

type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindApproval     Kind = "approval"
	KindRejection    Kind = "rejection"
	KindNewMessage   Kind = "new_message"
)

//go:embed templates.yaml
var templatesYAML []byte

const (
	footerText = `{{define "footer_text"}}
---
此為系統自動發送的郵件，請勿直接回覆。
如有任何問題，請聯絡社團活動組。{{end}}`

	footerHTML = `{{define "footer_html"}}<hr style="margin: 30px 0; border: none; border-top: 1px solid #ddd;">
<p style="color: #666; font-size: 12px;">此為系統自動發送的郵件，請勿直接回覆。<br>如有任何問題，請聯絡社團活動組。</p>{{end}}`
)

// Data is the payload interpolated into every template.
type Data struct {
	TeacherName  string
	Club         string
	Contact      string
	SubmissionID string
	ReviewNote   string
	From         string
	Content      string
}

type view struct {
	Data
	FromLabel      string
	ReviewNoteHTML htmltemplate.HTML
	ContentHTML    htmltemplate.HTML
}

type rawTemplate struct {
	Subject string `yaml:"subject"`
	Text    string `yaml:"text"`
	HTML    string `yaml:"html"`
}

type compiled struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// Renderer turns a Kind and Data into a ready-to-send Message.
type Renderer struct {
	tpls   map[Kind]compiled
	ugc    *bluemonday.Policy
	strict *bluemonday.Policy
}

func NewRenderer() (*Renderer, error) {
	return parseTemplates(templatesYAML)
}

func parseTemplates(src []byte) (*Renderer, error) {
	var raw map[Kind]rawTemplate
	if err := yaml.Unmarshal(src, &raw); err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	r := &Renderer{
		tpls:   make(map[Kind]compiled, len(raw)),
		ugc:    bluemonday.UGCPolicy(),
		strict: bluemonday.StrictPolicy(),
	}
	for kind, t := range raw {
		tt, err := texttemplate.New(string(kind)).Parse(footerText + t.Text)
		if err != nil {
			return nil, fmt.Errorf("template %s text: %w", kind, err)
		}
		ht, err := htmltemplate.New(string(kind)).Parse(footerHTML + t.HTML)
		if err != nil {
			return nil, fmt.Errorf("template %s html: %w", kind, err)
		}
		r.tpls[kind] = compiled{subject: t.Subject, text: tt, html: ht}
	}
	return r, nil
}

// Render builds the message for kind, addressed to to.
func (r *Renderer) Render(kind Kind, to string, d Data) (Message, error) {
	t, ok := r.tpls[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail template %q", kind)
	}

	v := view{
		Data:           d,
		FromLabel:      fromLabel(d.From),
		ReviewNoteHTML: htmltemplate.HTML(r.ugc.Sanitize(d.ReviewNote)),
		ContentHTML:    htmltemplate.HTML(r.ugc.Sanitize(d.Content)),
	}

	plain := v
	plain.ReviewNote = r.plain(d.ReviewNote)
	plain.Content = r.plain(d.Content)
	var text bytes.Buffer
	if err := t.text.Execute(&text, plain); err != nil {
		return Message{}, err
	}
	var body bytes.Buffer
	if err := t.html.Execute(&body, v); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: t.subject,
		Text:    strings.TrimSpace(text.String()) + "\n",
		HTML:    body.String(),
	}, nil
}

func (r *Renderer) plain(s string) string {
	return html.UnescapeString(r.strict.Sanitize(s))
}

func fromLabel(from string) string {
	if from == "admin" {
		return "管理員"
	}
	return "使用者"
}
