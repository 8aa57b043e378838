package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

// Dispatcher renders the application's emails.
type Dispatcher struct {
	mailer Mailer
	pages  map[string]*template.Template
	otpTTL time.Duration
}

func NewDispatcher(m Mailer, otpTTL time.Duration) (*Dispatcher, error) {
	d := &Dispatcher{mailer: m, pages: map[string]*template.Template{}, otpTTL: otpTTL}
	for _, name := range []string{"otp", "withdrawal_verification", "contribution_received"} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		d.pages[name] = t
	}
	return d, nil
}

func (d *Dispatcher) send(ctx context.Context, to, subject, page string, data map[string]any) error {
	data["Subject"] = subject
	var buf bytes.Buffer
	if err := d.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}
	return d.mailer.Send(ctx, Message{To: []string{to}, Subject: subject, HTML: buf.String()})
}

func (d *Dispatcher) PasswordResetOTP(ctx context.Context, email, code, link string) error {
	return d.send(ctx, email, "Reset Password", "otp", map[string]any{
		"Code":    code,
		"Expires": HumanDuration(d.otpTTL),
		"Link":    link,
		"Action":  "reset your password",
	})
}

func (d *Dispatcher) EmailVerificationOTP(ctx context.Context, email, code, link string) error {
	return d.send(ctx, email, "Email Verification", "otp", map[string]any{
		"Code":    code,
		"Expires": HumanDuration(d.otpTTL),
		"Link":    link,
		"Action":  "verify your email",
	})
}

func (d *Dispatcher) WithdrawalOTP(ctx context.Context, email, code string, amount decimal.Decimal, registryName string) error {
	return d.send(ctx, email, "Your PamperMomma Withdrawal Verification Code", "withdrawal_verification", map[string]any{
		"Code":         code,
		"Expires":      HumanDuration(d.otpTTL),
		"Amount":       amount.StringFixed(2),
		"RegistryName": registryName,
	})
}

func (d *Dispatcher) ContributionReceived(ctx context.Context, email, registryName, serviceName, contributor string, amount decimal.Decimal) error {
	return d.send(ctx, email, "You received a contribution", "contribution_received", map[string]any{
		"Amount":       amount.StringFixed(2),
		"RegistryName": registryName,
		"ServiceName":  serviceName,
		"Contributor":  contributor,
	})
}

// HumanDuration renders d as "10 minutes", "1 hour" and so on.
func HumanDuration(d time.Duration) string {
	unit := func(n int64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return unit(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return unit(int64(d/time.Minute), "minute")
	default:
		return unit(int64(d/time.Second), "second")
	}
}
