package email

import (
	"html"
	"strconv"
	"strings"
	"time"
)

type Content struct {
	Subject string
	Text    string
	HTML    string
}

type emailStrings struct {
	NewAccountSubject string
	NewAccountText    string
	NewAccountHTML    string

	PasswordResetSubject string
	PasswordResetText    string
	PasswordResetHTML    string
}

var emailTranslations = map[string]emailStrings{
	"en": {
		NewAccountSubject: "Your QA Playwright Reports account",
		NewAccountText: "An account has been created for {email}.\n" +
			"Set your password here: {link}\n" +
			"The link expires in {minutes} minutes.",
		NewAccountHTML: "<p>An account has been created for <strong>{email}</strong>.</p>" +
			"<p><a href=\"{link}\">Set your password</a></p>" +
			"<p>The link expires in {minutes} minutes.</p>",

		PasswordResetSubject: "Reset your password",
		PasswordResetText: "Reset your password: {link}\n" +
			"The link expires in {minutes} minutes.\n" +
			"If you did not request this, ignore this email.",
		PasswordResetHTML: "<p>Password reset</p>" +
			"<p><a href=\"{link}\">Reset password</a></p>" +
			"<p>The link expires in {minutes} minutes.</p>" +
			"<p>If you did not request this, ignore this email.</p>",
	},
	"de": {
		NewAccountSubject: "Ihr Konto für QA Playwright Reports",
		NewAccountText: "Für {email} wurde ein Konto angelegt.\n" +
			"Passwort festlegen: {link}\n" +
			"Der Link ist {minutes} Minuten gültig.",
		NewAccountHTML: "<p>Für <strong>{email}</strong> wurde ein Konto angelegt.</p>" +
			"<p><a href=\"{link}\">Passwort festlegen</a></p>" +
			"<p>Der Link ist {minutes} Minuten gültig.</p>",

		PasswordResetSubject: "Passwort zurücksetzen",
		PasswordResetText: "Setzen Sie Ihr Passwort zurück: {link}\n" +
			"Der Link ist {minutes} Minuten gültig.\n" +
			"Wenn Sie dies nicht angefordert haben, ignorieren Sie diese E-Mail.",
		PasswordResetHTML: "<p>Passwort zurücksetzen</p>" +
			"<p><a href=\"{link}\">Passwort zurücksetzen</a></p>" +
			"<p>Der Link ist {minutes} Minuten gültig.</p>" +
			"<p>Wenn Sie dies nicht angefordert haben, ignorieren Sie diese E-Mail.</p>",
	},
}

func emailStringsForLocale(locale string) emailStrings {
	if val, ok := emailTranslations[NormalizeLocale(locale)]; ok {
		return val
	}
	return emailTranslations[DefaultLocale]
}

func renderTemplate(tmpl string, values map[string]string) string {
	if tmpl == "" || len(values) == 0 {
		return tmpl
	}

	replacements := make([]string, 0, len(values)*2)
	for key, value := range values {
		replacements = append(replacements, "{"+key+"}", value)
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}

func messageValues(m Message) map[string]string {
	minutes := int(m.ExpiresIn.Round(time.Minute) / time.Minute)
	return map[string]string{
		"email":   m.To,
		"link":    m.Link,
		"minutes": strconv.Itoa(minutes),
	}
}

func escapeValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = html.EscapeString(v)
	}
	return out
}

func NewAccountEmail(m Message) Content {
	t := emailStringsForLocale(m.Locale)
	values := messageValues(m)
	return Content{
		Subject: t.NewAccountSubject,
		Text:    renderTemplate(t.NewAccountText, values),
		HTML:    renderTemplate(t.NewAccountHTML, escapeValues(values)),
	}
}

func PasswordResetEmail(m Message) Content {
	t := emailStringsForLocale(m.Locale)
	values := messageValues(m)
	return Content{
		Subject: t.PasswordResetSubject,
		Text:    renderTemplate(t.PasswordResetText, values),
		HTML:    renderTemplate(t.PasswordResetHTML, escapeValues(values)),
	}
}
