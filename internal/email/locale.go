package email

import (
	"net/http"
	"strings"
)

const DefaultLocale = "en"

var supportedLocales = map[string]struct{}{
	"en": {},
	"de": {},
}

// LocaleFromRequest picks the first supported language of Accept-Language.
func LocaleFromRequest(r *http.Request) string {
	if r == nil {
		return DefaultLocale
	}
	return NormalizeLocale(r.Header.Get("Accept-Language"))
}

func NormalizeLocale(header string) string {
	for _, part := range strings.Split(header, ",") {
		lang, _, _ := strings.Cut(part, ";")
		lang, _, _ = strings.Cut(strings.ToLower(strings.TrimSpace(lang)), "-")
		if _, ok := supportedLocales[lang]; ok {
			return lang
		}
	}
	return DefaultLocale
}
