package document

import (
	"context"
	"net/mail"
	"text/template"
	"time"

	"github.com/aulaprof/aula/core"
)

// Alerter is notified when an object could not be cleaned up after a failed upload.
type Alerter interface {
	ObjectOrphaned(ctx context.Context, bucket, key string, cause error)
}

var orphanTmpl = template.Must(template.New("orphan").Parse(`An uploaded object has no metadata row and could not be removed.

Bucket: {{.Bucket}}
Key:    {{.Key}}
Time:   {{.Time}}
Cause:  {{.Cause}}

Run "admin audit -fix" to remove orphaned objects.
`))

type mailAlerter struct {
	mailSvc core.EmailService
	to      []mail.Address
}

// NewMailAlerter emails orphan reports to the ops addresses. With no addresses it does nothing.
func NewMailAlerter(mailSvc core.EmailService, to []mail.Address) Alerter {
	return &mailAlerter{mailSvc: mailSvc, to: to}
}

func (a *mailAlerter) ObjectOrphaned(_ context.Context, bucket, key string, cause error) {
	if len(a.to) == 0 {
		return
	}
	causeMsg := ""
	if cause != nil {
		causeMsg = cause.Error()
	}
	a.mailSvc.SendMessages(&core.EmailMessage{
		To:       a.to,
		Subject:  "Orphaned storage object",
		Template: orphanTmpl,
		TemplateData: map[string]string{
			"Bucket": bucket,
			"Key":    key,
			"Time":   time.Now().UTC().Format(time.RFC3339),
			"Cause":  causeMsg,
		},
	})
}
