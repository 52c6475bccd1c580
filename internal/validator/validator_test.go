package validator

import (
	"testing"

	"chat_engine/internal/domain"
	apperrors "chat_engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAccepts(t *testing.T) {
	cases := []struct {
		name    string
		typ     domain.MessageType
		payload map[string]interface{}
	}{
		{"text", domain.MessageTypeText, map[string]interface{}{"content": "hi"}},
		{"image", domain.MessageTypeImage, map[string]interface{}{"url": "https://cdn.example.com/a.png"}},
		{"video", domain.MessageTypeVideo, map[string]interface{}{"url": "http://cdn.example.com/a.mp4"}},
		{"file", domain.MessageTypeFile, map[string]interface{}{"url": "files/a.pdf", "filename": "a.pdf"}},
		{"location", domain.MessageTypeLocation, map[string]interface{}{"latitude": 52.5, "longitude": "13.4"}},
		{"contact email", domain.MessageTypeContact, map[string]interface{}{"name": "Ann", "email": "ann@example.com"}},
		{"contact phone", domain.MessageTypeContact, map[string]interface{}{"name": "Ann", "phone": "+100"}},
		{"system", domain.MessageTypeSystem, map[string]interface{}{"content": "joined"}},
		{"custom", domain.MessageTypeCustom, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, Validate(tc.typ, tc.payload))
		})
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name    string
		typ     domain.MessageType
		payload map[string]interface{}
		field   string
	}{
		{"text missing", domain.MessageTypeText, map[string]interface{}{}, "content"},
		{"text blank", domain.MessageTypeText, map[string]interface{}{"content": "   "}, "content"},
		{"text not string", domain.MessageTypeText, map[string]interface{}{"content": 5}, "content"},
		{"image ftp", domain.MessageTypeImage, map[string]interface{}{"url": "ftp://x/a.png"}, "url"},
		{"audio relative", domain.MessageTypeAudio, map[string]interface{}{"url": "/a.mp3"}, "url"},
		{"file no name", domain.MessageTypeFile, map[string]interface{}{"url": "https://x/a"}, "filename"},
		{"lat range", domain.MessageTypeLocation, map[string]interface{}{"latitude": 91.0, "longitude": 0.0}, "latitude"},
		{"lng range", domain.MessageTypeLocation, map[string]interface{}{"latitude": 0.0, "longitude": -181}, "longitude"},
		{"lat type", domain.MessageTypeLocation, map[string]interface{}{"latitude": "north", "longitude": 0.0}, "latitude"},
		{"contact no channel", domain.MessageTypeContact, map[string]interface{}{"name": "Ann"}, "phone"},
		{"system missing", domain.MessageTypeSystem, map[string]interface{}{}, "content"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.typ, tc.payload)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))

			var typed *apperrors.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, tc.field, typed.Field)
		})
	}
}
