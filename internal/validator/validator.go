// Package validator проверяет структуру payload в зависимости от типа сообщения.
package validator

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"
)

// Validate возвращает ошибку валидации с именем проблемного поля или nil.
func Validate(messageType domain.MessageType, payload map[string]interface{}) error {
	switch messageType {
	case domain.MessageTypeText:
		content, err := requireString(payload, "content")
		if err != nil {
			return err
		}
		if strings.TrimSpace(content) == "" {
			return apperrors.Validation("content", "text message content cannot be empty")
		}
	case domain.MessageTypeImage, domain.MessageTypeVideo, domain.MessageTypeAudio:
		raw, err := requireString(payload, "url")
		if err != nil {
			return err
		}
		if !IsHTTPURL(raw) {
			return apperrors.Validation("url", string(messageType)+" message URL is not valid")
		}
	case domain.MessageTypeFile:
		if _, err := requireString(payload, "url"); err != nil {
			return err
		}
		if _, err := requireString(payload, "filename"); err != nil {
			return err
		}
	case domain.MessageTypeLocation:
		lat, err := requireNumber(payload, "latitude")
		if err != nil {
			return err
		}
		lng, err := requireNumber(payload, "longitude")
		if err != nil {
			return err
		}
		if lat < -90 || lat > 90 {
			return apperrors.Validation("latitude", "latitude must be between -90 and 90")
		}
		if lng < -180 || lng > 180 {
			return apperrors.Validation("longitude", "longitude must be between -180 and 180")
		}
	case domain.MessageTypeContact:
		if _, err := requireString(payload, "name"); err != nil {
			return err
		}
		if !present(payload, "phone") && !present(payload, "email") {
			return apperrors.Validation("phone", "contact message must have a phone or email")
		}
	case domain.MessageTypeSystem:
		if _, err := requireString(payload, "content"); err != nil {
			return err
		}
	case domain.MessageTypeCustom:
		// произвольный payload
	default:
		return apperrors.Validation("type", "unknown message type "+string(messageType))
	}
	return nil
}

// IsHTTPURL проверяет, что это абсолютный URL со схемой http или https и непустым хостом.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func requireString(payload map[string]interface{}, field string) (string, error) {
	value, ok := payload[field].(string)
	if !ok {
		return "", apperrors.Validation(field, "must be a string")
	}
	return value, nil
}

func requireNumber(payload map[string]interface{}, field string) (float64, error) {
	switch v := payload[field].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, nil
		}
	}
	return 0, apperrors.Validation(field, "must be numeric")
}

func present(payload map[string]interface{}, field string) bool {
	v, ok := payload[field]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return s != ""
	}
	return true
}
