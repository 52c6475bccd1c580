package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"
)

const (
	ProfanityModeAsterisk = "asterisk"
	ProfanityModeRemove   = "remove"
	ProfanityModeReject   = "reject"
)

type ProfanityOptions struct {
	Words       []string
	Replacement string
	Mode        string
}

// FilterProfanity ищет слова из списка целиком и без учета регистра в content и caption.
type FilterProfanity struct {
	pattern     *regexp.Regexp
	replacement string
	mode        string
}

func NewFilterProfanity(opts ProfanityOptions) (*FilterProfanity, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ProfanityModeAsterisk
	}
	switch mode {
	case ProfanityModeAsterisk, ProfanityModeRemove, ProfanityModeReject:
	default:
		return nil, fmt.Errorf("unknown profanity mode %q", mode)
	}
	replacement := opts.Replacement
	if replacement == "" {
		replacement = "*"
	}

	f := &FilterProfanity{replacement: replacement, mode: mode}
	quoted := make([]string, 0, len(opts.Words))
	for _, w := range opts.Words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) > 0 {
		f.pattern = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return f, nil
}

func (f *FilterProfanity) Handle(ctx context.Context, msg *domain.Message, next Handler) (*domain.Message, error) {
	if f.pattern == nil {
		return next(ctx, msg)
	}
	for _, field := range []string{"content", "caption"} {
		value, ok := msg.Payload[field].(string)
		if !ok {
			continue
		}
		filtered, err := f.Filter(value)
		if err != nil {
			return nil, err
		}
		msg.Payload[field] = filtered
	}
	return next(ctx, msg)
}

func (f *FilterProfanity) Filter(text string) (string, error) {
	if f.pattern == nil {
		return text, nil
	}
	switch f.mode {
	case ProfanityModeRemove:
		return f.pattern.ReplaceAllString(text, ""), nil
	case ProfanityModeReject:
		if f.pattern.MatchString(text) {
			return "", apperrors.Validation("content", "message contains inappropriate content")
		}
		return text, nil
	default:
		return f.pattern.ReplaceAllStringFunc(text, func(match string) string {
			return strings.Repeat(f.replacement, utf8.RuneCountInString(match))
		}), nil
	}
}
