package core

import (
	"bytes"
	"context"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/karo/fs"
)

// MaxMessageLen is the single-SMS body limit; longer renders are truncated
// with a trailing ellipsis marker.
const (
	MaxMessageLen  = 160
	truncateLen    = 157
	truncateMarker = "..."
)

var (
	smsTemplates *texttmpl.Template
	tmplInit     sync.Once
	tmplErr      error
)

type (
	// SMSMessage is a single outbound text message body; addressing and
	// delivery belong to the fan-out layer.
	SMSMessage struct {
		BodyStr string // simple non-templated content

		// templated content
		TemplateName string // without ext
		TemplateData interface{}
		Content      string
	}

	// MessageSender is any service that can deliver a message body to a
	// destination address. Implementations own their timeout policy.
	MessageSender interface {
		Send(ctx context.Context, body, address string) error
	}
)

func (m *SMSMessage) Render() error {
	if m.BodyStr != "" {
		m.Content = TruncateMessage(m.BodyStr)
		return nil
	}
	if m.TemplateName == "" {
		return nil
	}

	tmplInit.Do(parseTemplates) // only execute once during first render
	if tmplErr != nil {
		return tmplErr
	}
	tmpl := smsTemplates.Lookup(m.TemplateName + ".txt")
	if tmpl == nil {
		return errors.Errorf("unknown sms template %q", m.TemplateName)
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, m.TemplateData); err != nil {
		return errors.Wrap(err, "rendering sms template "+m.TemplateName)
	}
	m.Content = TruncateMessage(CleanString(buff.String()))
	return nil
}

func (m *SMSMessage) HasContent() bool { return m.Content != "" }

// TruncateMessage caps body at MaxMessageLen characters, replacing the tail
// with "..." when over the limit.
func TruncateMessage(body string) string {
	runes := []rune(body)
	if len(runes) <= MaxMessageLen {
		return body
	}
	return string(runes[:truncateLen]) + truncateMarker
}

func parseTemplates() {
	tmpl := texttmpl.New("sms")
	if Conf.Debug || Conf.TestMode {
		tmpl = tmpl.Option("missingkey=error")
	}
	tmpl = tmpl.Funcs(texttmpl.FuncMap{
		"upper": strings.ToUpper,
	})
	smsTemplates, tmplErr = tmpl.ParseFS(appfs.FS, "templates/sms/*.txt")
	if tmplErr != nil {
		tmplErr = errors.Wrap(tmplErr, "core.parseTemplates")
	}
}
