package pipeline

import (
	"context"
	"net/url"
	"regexp"
	"strconv"

	"chat_engine/internal/domain"
	"chat_engine/internal/validator"
	apperrors "chat_engine/pkg/errors"
)

var (
	mentionPattern = regexp.MustCompile(`@\[([^\]]+)\]\((\d+)\)|@(\w+)`)
	urlPattern     = regexp.MustCompile("(?i)https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")
)

// DetectMentions находит упоминания вида @[Имя](id) и @username.
type DetectMentions struct{}

func (DetectMentions) Handle(ctx context.Context, msg *domain.Message, next Handler) (*domain.Message, error) {
	content, ok := msg.Payload["content"].(string)
	if !ok {
		return next(ctx, msg)
	}

	var mentions []interface{}
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		switch {
		case m[2] != "":
			id, err := strconv.ParseInt(m[2], 10, 64)
			if err != nil {
				continue
			}
			mentions = append(mentions, map[string]interface{}{"name": m[1], "id": id, "text": m[0]})
		case m[3] != "":
			mentions = append(mentions, map[string]interface{}{"username": m[3], "text": m[0]})
		}
	}
	if len(mentions) > 0 {
		msg.Payload["mentions"] = mentions
	}
	return next(ctx, msg)
}

// DetectURLs добавляет в payload список ссылок с доменами.
type DetectURLs struct{}

func (DetectURLs) Handle(ctx context.Context, msg *domain.Message, next Handler) (*domain.Message, error) {
	content, ok := msg.Payload["content"].(string)
	if !ok {
		return next(ctx, msg)
	}

	var urls []interface{}
	for _, raw := range urlPattern.FindAllString(content, -1) {
		entry := map[string]interface{}{"url": raw, "domain": nil}
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			entry["domain"] = u.Hostname()
		}
		urls = append(urls, entry)
	}
	if len(urls) > 0 {
		msg.Payload["urls"] = urls
	}
	return next(ctx, msg)
}

// ValidateMediaURLs требует http/https для url и thumbnail.
type ValidateMediaURLs struct{}

func (ValidateMediaURLs) Handle(ctx context.Context, msg *domain.Message, next Handler) (*domain.Message, error) {
	for _, field := range []string{"url", "thumbnail"} {
		value, present := msg.Payload[field]
		if !present || value == nil {
			continue
		}
		raw, ok := value.(string)
		if !ok || !validator.IsHTTPURL(raw) {
			return nil, apperrors.Validation(field, "URL must be a valid http or https URL")
		}
	}
	return next(ctx, msg)
}
