package pipeline

import (
	"context"
	"testing"

	"chat_engine/internal/domain"
	"chat_engine/internal/encryption"
	apperrors "chat_engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textMessage(content string) *domain.Message {
	return &domain.Message{
		ThreadID: 7,
		Sender:   domain.NewActor("user", "1"),
		Type:     domain.MessageTypeText,
		Payload:  map[string]interface{}{"content": content},
	}
}

func recorder(name string, trace *[]string) Pipe {
	return PipeFunc(func(ctx context.Context, msg *domain.Message, next Handler) (*domain.Message, error) {
		*trace = append(*trace, name)
		return next(ctx, msg)
	})
}

func TestPipelineRunsInOrder(t *testing.T) {
	var trace []string
	p := New(recorder("a", &trace), recorder("b", &trace), recorder("c", &trace))

	_, err := p.Process(context.Background(), textMessage("x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, trace)
}

func TestPipelineShortCircuits(t *testing.T) {
	var trace []string
	stop := PipeFunc(func(ctx context.Context, msg *domain.Message, next Handler) (*domain.Message, error) {
		return nil, apperrors.Validation("content", "stop")
	})
	p := New(recorder("a", &trace), stop, recorder("c", &trace))

	_, err := p.Process(context.Background(), textMessage("x"))
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, []string{"a"}, trace)
}

func TestEmptyPipelinePassesThrough(t *testing.T) {
	msg := textMessage("x")
	out, err := New().Process(context.Background(), msg)
	require.NoError(t, err)
	assert.Same(t, msg, out)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "alert(1) &lt;b&gt;bold&lt;/b&gt;", Sanitize("<script>alert(1)</script> <b>bold</b>"))
	assert.Equal(t, "fish &amp; chips &amp; peas", Sanitize("fish & chips &amp; peas"))
	assert.Equal(t, "&quot;quoted&quot; &apos;single&apos;", Sanitize(`"quoted" 'single'`))
	assert.Equal(t, "a &lt; b", Sanitize("a < b"))
	assert.Equal(t, "plain text", Sanitize("<div>plain <span>text</span></div>"))
}

func TestSanitizeContentPipe(t *testing.T) {
	msg := &domain.Message{Payload: map[string]interface{}{"url": "https://x/a.png", "caption": "<img src=x>nice"}}
	out, err := New(SanitizeContent{}).Process(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "nice", out.Payload["caption"])
	assert.Equal(t, "https://x/a.png", out.Payload["url"])
}

func TestDetectMentions(t *testing.T) {
	msg := textMessage("hey @[Jane Doe](42) and @bob!")
	out, err := New(DetectMentions{}).Process(context.Background(), msg)
	require.NoError(t, err)

	mentions := out.Payload["mentions"].([]interface{})
	require.Len(t, mentions, 2)
	assert.Equal(t, map[string]interface{}{"name": "Jane Doe", "id": int64(42), "text": "@[Jane Doe](42)"}, mentions[0])
	assert.Equal(t, map[string]interface{}{"username": "bob", "text": "@bob"}, mentions[1])
}

func TestDetectMentionsSkipsNonText(t *testing.T) {
	msg := &domain.Message{Payload: map[string]interface{}{"url": "https://x/@bob"}}
	out, err := New(DetectMentions{}, DetectURLs{}).Process(context.Background(), msg)
	require.NoError(t, err)
	assert.NotContains(t, out.Payload, "mentions")
	assert.NotContains(t, out.Payload, "urls")

	plain := textMessage("no mentions here")
	out, err = New(DetectMentions{}).Process(context.Background(), plain)
	require.NoError(t, err)
	assert.NotContains(t, out.Payload, "mentions")
}

func TestDetectURLs(t *testing.T) {
	msg := textMessage(`see https://Example.com/path?q=1 and <http://sub.test.org/x> "HTTPS://caps.io"`)
	out, err := New(DetectURLs{}).Process(context.Background(), msg)
	require.NoError(t, err)

	urls := out.Payload["urls"].([]interface{})
	require.Len(t, urls, 3)
	assert.Equal(t, map[string]interface{}{"url": "https://Example.com/path?q=1", "domain": "Example.com"}, urls[0])
	assert.Equal(t, "http://sub.test.org/x", urls[1].(map[string]interface{})["url"])
	assert.Equal(t, "caps.io", urls[2].(map[string]interface{})["domain"])
}

func TestValidateMediaURLs(t *testing.T) {
	ok := &domain.Message{Payload: map[string]interface{}{"url": "https://x/a.png", "thumbnail": "http://x/t.png"}}
	_, err := New(ValidateMediaURLs{}).Process(context.Background(), ok)
	assert.NoError(t, err)

	bad := &domain.Message{Payload: map[string]interface{}{"url": "https://x/a.png", "thumbnail": "javascript:alert(1)"}}
	_, err = New(ValidateMediaURLs{}).Process(context.Background(), bad)
	require.Error(t, err)
	var typed *apperrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, "thumbnail", typed.Field)

	text := textMessage("no urls to validate")
	_, err = New(ValidateMediaURLs{}).Process(context.Background(), text)
	assert.NoError(t, err)
}

func TestFilterProfanityModes(t *testing.T) {
	words := []string{"darn", "heck"}

	asterisk, err := NewFilterProfanity(ProfanityOptions{Words: words})
	require.NoError(t, err)
	out, err := asterisk.Filter("Darn it, what the HECK. darning is fine")
	require.NoError(t, err)
	assert.Equal(t, "**** it, what the ****. darning is fine", out)

	custom, err := NewFilterProfanity(ProfanityOptions{Words: words, Replacement: "#"})
	require.NoError(t, err)
	out, err = custom.Filter("heck")
	require.NoError(t, err)
	assert.Equal(t, "####", out)

	remove, err := NewFilterProfanity(ProfanityOptions{Words: words, Mode: ProfanityModeRemove})
	require.NoError(t, err)
	out, err = remove.Filter("oh darn!")
	require.NoError(t, err)
	assert.Equal(t, "oh !", out)

	reject, err := NewFilterProfanity(ProfanityOptions{Words: words, Mode: ProfanityModeReject})
	require.NoError(t, err)
	_, err = reject.Filter("what the heck")
	assert.True(t, apperrors.IsValidation(err))
	out, err = reject.Filter("all good")
	require.NoError(t, err)
	assert.Equal(t, "all good", out)
}

func TestFilterProfanityEmptyListIsNoop(t *testing.T) {
	f, err := NewFilterProfanity(ProfanityOptions{Mode: ProfanityModeReject})
	require.NoError(t, err)

	msg := textMessage("anything goes")
	out, err := New(f).Process(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "anything goes", out.Payload["content"])
}

func TestFilterProfanityAppliesToCaption(t *testing.T) {
	f, err := NewFilterProfanity(ProfanityOptions{Words: []string{"darn"}})
	require.NoError(t, err)

	msg := &domain.Message{Payload: map[string]interface{}{"url": "https://x/a.png", "caption": "darn photo"}}
	out, err := New(f).Process(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "**** photo", out.Payload["caption"])
}

func TestNewFilterProfanityRejectsUnknownMode(t *testing.T) {
	_, err := NewFilterProfanity(ProfanityOptions{Mode: "shout"})
	assert.Error(t, err)
}

func symmetricManager(t *testing.T, enabled bool) *encryption.Manager {
	t.Helper()
	driver, err := encryption.NewSymmetricDriver("pipeline-test-key")
	require.NoError(t, err)
	return encryption.NewManager(enabled, encryption.DriverSymmetric).Register(driver)
}

func TestEncryptPayload(t *testing.T) {
	manager := symmetricManager(t, true)
	msg := textMessage("secret")

	out, err := New(NewEncryptPayload(manager)).Process(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, out.Encrypted)
	require.NotNil(t, out.EncryptionDriver)
	assert.Equal(t, encryption.DriverSymmetric, *out.EncryptionDriver)
	assert.Len(t, out.Payload, 1)

	plain, err := manager.OpenPayload(out.Payload, out.Encrypted, out.EncryptionDriver, nil)
	require.NoError(t, err)
	assert.Equal(t, "secret", plain["content"])
}

func TestEncryptPayloadSkips(t *testing.T) {
	disabled := symmetricManager(t, false)
	msg := textMessage("open")
	out, err := New(NewEncryptPayload(disabled)).Process(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, out.Encrypted)
	assert.Equal(t, "open", out.Payload["content"])

	enabled := symmetricManager(t, true)
	already := &domain.Message{Encrypted: true, Payload: map[string]interface{}{encryption.PayloadKey: "opaque"}}
	out, err = New(NewEncryptPayload(enabled)).Process(context.Background(), already)
	require.NoError(t, err)
	assert.Equal(t, "opaque", out.Payload[encryption.PayloadKey])
}

func TestBuild(t *testing.T) {
	p, err := Build([]string{PipeSanitize, PipeMentions, PipeURLs, PipeMediaURLs, PipeProfanity}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, p.Len())

	_, err = Build([]string{"translate"}, Options{})
	assert.Error(t, err)

	manager := symmetricManager(t, true)
	_, err = Build([]string{PipeEncrypt, PipeSanitize}, Options{Encryption: manager})
	assert.Error(t, err, "encrypt must be last")

	p, err = Build([]string{PipeSanitize}, Options{Encryption: manager})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len(), "encrypt appended when enabled")

	out, err := p.Process(context.Background(), textMessage("<i>hi</i>"))
	require.NoError(t, err)
	assert.True(t, out.Encrypted)
}
