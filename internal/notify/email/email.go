package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/farsisweep/internal/config"
	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/jon4hz/farsisweep/internal/tracker"
	"github.com/samber/lo"
	mail "github.com/xhit/go-simple-mail/v2"
)

// NotificationService sends new content digests by email.
type NotificationService struct {
	config *config.EmailConfig
	log    *log.Logger
}

// DigestItem is one new record in the digest.
type DigestItem struct {
	Title string
	URL   string
}

// Digest contains the data of a digest email.
type Digest struct {
	Date     time.Time
	Total    int
	Shows    []DigestItem
	Episodes []DigestItem
	Movies   []DigestItem
}

// New creates a new email notification service. A nil config disables it.
func New(cfg *config.EmailConfig) *NotificationService {
	if cfg == nil {
		cfg = &config.EmailConfig{}
	}
	return &NotificationService{
		config: cfg,
		log:    log.Default().WithPrefix("email"),
	}
}

// Enabled reports whether digests are sent.
func (n *NotificationService) Enabled() bool {
	return n.config.Enabled
}

// NewDigest builds the digest data for content.
func NewDigest(content *tracker.Content, date time.Time) Digest {
	return Digest{
		Date:  date,
		Total: content.Total(),
		Shows: lo.Map(content.Shows, func(s models.Show, _ int) DigestItem {
			return DigestItem{Title: s.TitleEn, URL: s.URL}
		}),
		Episodes: lo.Map(content.Episodes, func(e models.Episode, _ int) DigestItem {
			title := e.Title
			if e.SeasonNumber > 0 || e.EpisodeNumber > 0 {
				title = fmt.Sprintf("%s (S%02dE%02d)", e.Title, e.SeasonNumber, e.EpisodeNumber)
			}
			return DigestItem{Title: title, URL: e.URL}
		}),
		Movies: lo.Map(content.Movies, func(m models.Movie, _ int) DigestItem {
			return DigestItem{Title: m.TitleEn, URL: m.URL}
		}),
	}
}

// Subject returns the subject line of a digest.
func (d Digest) Subject() string {
	return fmt.Sprintf("[Farsisweep] %d new items", d.Total)
}

// SendDigest mails the digest of content to the configured recipients.
func (n *NotificationService) SendDigest(content *tracker.Content) error {
	if !n.config.Enabled {
		n.log.Debug("email notifications are disabled, skipping digest")
		return nil
	}
	if content.Empty() {
		return nil
	}

	digest := NewDigest(content, time.Now())
	body, err := RenderDigest(digest)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}
	return n.sendEmail(digest.Subject(), body)
}

var digestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<body>
<h2>{{ .Total }} new items</h2>
<p>{{ .Date.Format "2006-01-02 15:04" }}</p>
{{ with .Shows }}<h3>Shows</h3>
<ul>
{{ range . }}<li><a href="{{ .URL }}">{{ .Title }}</a></li>
{{ end }}</ul>
{{ end }}{{ with .Episodes }}<h3>Episodes</h3>
<ul>
{{ range . }}<li><a href="{{ .URL }}">{{ .Title }}</a></li>
{{ end }}</ul>
{{ end }}{{ with .Movies }}<h3>Movies</h3>
<ul>
{{ range . }}<li><a href="{{ .URL }}">{{ .Title }}</a></li>
{{ end }}</ul>
{{ end }}</body>
</html>
`))

// RenderDigest renders the HTML body of a digest.
func RenderDigest(d Digest) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (n *NotificationService) sendEmail(subject, body string) error {
	server := mail.NewSMTPClient()
	server.Host = n.config.SMTPHost
	server.Port = n.config.SMTPPort
	server.Username = n.config.Username
	server.Password = n.config.Password

	switch {
	case n.config.UseSSL:
		server.Encryption = mail.EncryptionSSLTLS
	case n.config.UseTLS:
		server.Encryption = mail.EncryptionSTARTTLS
	default:
		server.Encryption = mail.EncryptionNone
	}

	if n.config.InsecureSkipVerify {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	smtpClient, err := server.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := smtpClient.Close(); closeErr != nil {
			n.log.Warn("failed to close SMTP client", "error", closeErr)
		}
	}()

	fromName := n.config.FromName
	if fromName == "" {
		fromName = "Farsisweep"
	}

	email := mail.NewMSG()
	email.SetFrom(fmt.Sprintf("%s <%s>", fromName, n.config.FromEmail))
	email.AddTo(n.config.To...)
	email.SetSubject(subject)
	email.SetBody(mail.TextHTML, body)

	if err := email.Send(smtpClient); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.log.Info("digest sent", "to", n.config.To, "subject", subject)
	return nil
}
