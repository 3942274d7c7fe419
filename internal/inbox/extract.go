package inbox

import (
	"bytes"
	"errors"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"
)

// ErrNotFound is returned when a message carries no code or link.
var ErrNotFound = errors.New("no code found in message")

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	labeledCode    = regexp.MustCompile(`(?i)код[^0-9\n]*(\d{6})\b`)
	standaloneCode = regexp.MustCompile(`\b(\d{6})\b`)
)

// Verification is what a verification mail carries.
type Verification struct {
	Token string
	Code  string
}

// ParseText returns the text/plain body of a raw RFC 5322 message. A
// message go-message cannot parse is returned as is.
func ParseText(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	var html string
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return string(body)
		case strings.HasPrefix(contentType, "text/html") && html == "":
			html = string(body)
		}
	}
	return html
}

// ExtractVerification finds the confirmation link token and the 6-digit
// code in a verification mail. Either may be missing, not both.
func ExtractVerification(text string) (Verification, error) {
	var v Verification
	for _, raw := range urlPattern.FindAllString(text, -1) {
		u, err := url.Parse(strings.TrimRight(raw, `.,;:)"'>`))
		if err != nil {
			continue
		}
		if tok := u.Query().Get("token"); tok != "" {
			v.Token = tok
			break
		}
	}
	v.Code = findCode(text)

	if v.Token == "" && v.Code == "" {
		return Verification{}, ErrNotFound
	}
	return v, nil
}

// ExtractResetCode finds the 6-digit code in a password reset mail.
func ExtractResetCode(text string) (string, error) {
	code := findCode(text)
	if code == "" {
		return "", ErrNotFound
	}
	return code, nil
}

func findCode(text string) string {
	if m := labeledCode.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	// Digits inside links are tokens, not codes.
	stripped := urlPattern.ReplaceAllString(text, " ")
	if m := standaloneCode.FindStringSubmatch(stripped); m != nil {
		return m[1]
	}
	return ""
}
