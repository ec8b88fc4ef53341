package core

import (
	"bytes"
	"net/mail"
	"text/template"
)

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		Template     *template.Template
		TemplateData interface{}
		TextContent  string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	if m.Template == nil {
		return nil
	}

	var buff bytes.Buffer
	if err := m.Template.Execute(&buff, m.TemplateData); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" }

// ParseAddressList parses a comma separated list of addresses, skipping empty input.
func ParseAddressList(list string) ([]mail.Address, error) {
	list = CleanString(list)
	if list == "" {
		return nil, nil
	}
	ptrs, err := mail.ParseAddressList(list)
	if err != nil {
		return nil, err
	}
	addrs := make([]mail.Address, 0, len(ptrs))
	for _, a := range ptrs {
		addrs = append(addrs, *a)
	}
	return addrs, nil
}
