package pipeline

import (
	"context"
	"regexp"
	"strings"

	"chat_engine/internal/domain"
	"golang.org/x/net/html"
)

var allowedTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true, "em": true,
	"strong": true, "code": true, "pre": true, "a": true,
}

var entityPattern = regexp.MustCompile(`^&(#[0-9]+|#[xX][0-9a-fA-F]+|[A-Za-z][A-Za-z0-9]*);`)

// SanitizeContent удаляет неразрешенные HTML-теги из content и caption,
// затем экранирует остаток (уже существующие сущности не кодируются повторно).
type SanitizeContent struct{}

func (SanitizeContent) Handle(ctx context.Context, msg *domain.Message, next Handler) (*domain.Message, error) {
	for _, field := range []string{"content", "caption"} {
		if value, ok := msg.Payload[field].(string); ok {
			msg.Payload[field] = Sanitize(value)
		}
	}
	return next(ctx, msg)
}

func Sanitize(content string) string {
	return escapeHTML(stripTags(content))
}

func stripTags(content string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF или ошибка разбора: возвращаем то, что успели собрать
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if allowedTags[string(name)] {
				b.Write(z.Raw())
			}
		}
	}
}

func escapeHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			if entityPattern.MatchString(s[i:]) {
				b.WriteByte(c)
			} else {
				b.WriteString("&amp;")
			}
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
