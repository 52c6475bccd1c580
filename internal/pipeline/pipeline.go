// Package pipeline: цепочка обработчиков содержимого сообщения перед сохранением.
package pipeline

import (
	"context"
	"fmt"

	"chat_engine/internal/domain"
	"chat_engine/internal/encryption"
)

// Handler продолжает цепочку.
type Handler func(ctx context.Context, msg *domain.Message) (*domain.Message, error)

// Pipe может изменить сообщение и обязан вызвать next, либо прервать цепочку ошибкой.
type Pipe interface {
	Handle(ctx context.Context, msg *domain.Message, next Handler) (*domain.Message, error)
}

type PipeFunc func(ctx context.Context, msg *domain.Message, next Handler) (*domain.Message, error)

func (f PipeFunc) Handle(ctx context.Context, msg *domain.Message, next Handler) (*domain.Message, error) {
	return f(ctx, msg, next)
}

// Pipeline выполняет pipes строго в заданном порядке.
type Pipeline struct {
	pipes []Pipe
}

func New(pipes ...Pipe) *Pipeline {
	return &Pipeline{pipes: pipes}
}

func (p *Pipeline) Len() int {
	return len(p.pipes)
}

func (p *Pipeline) Process(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	handler := Handler(func(_ context.Context, m *domain.Message) (*domain.Message, error) {
		return m, nil
	})
	for i := len(p.pipes) - 1; i >= 0; i-- {
		pipe, next := p.pipes[i], handler
		handler = func(ctx context.Context, m *domain.Message) (*domain.Message, error) {
			return pipe.Handle(ctx, m, next)
		}
	}
	return handler(ctx, msg)
}

// Идентификаторы встроенных pipes для конфигурации.
const (
	PipeSanitize  = "sanitize"
	PipeMentions  = "mentions"
	PipeURLs      = "urls"
	PipeMediaURLs = "media_urls"
	PipeProfanity = "profanity"
	PipeEncrypt   = "encrypt"
)

func KnownPipe(id string) bool {
	switch id {
	case PipeSanitize, PipeMentions, PipeURLs, PipeMediaURLs, PipeProfanity, PipeEncrypt:
		return true
	}
	return false
}

type Options struct {
	Profanity  ProfanityOptions
	Encryption *encryption.Manager
}

// Build собирает pipeline из списка идентификаторов. Шифрование всегда последнее:
// при включенном шифровании оно добавляется в конец, если не указано явно.
func Build(ids []string, opts Options) (*Pipeline, error) {
	pipes := make([]Pipe, 0, len(ids)+1)
	hasEncrypt := false
	for i, id := range ids {
		switch id {
		case PipeSanitize:
			pipes = append(pipes, SanitizeContent{})
		case PipeMentions:
			pipes = append(pipes, DetectMentions{})
		case PipeURLs:
			pipes = append(pipes, DetectURLs{})
		case PipeMediaURLs:
			pipes = append(pipes, ValidateMediaURLs{})
		case PipeProfanity:
			filter, err := NewFilterProfanity(opts.Profanity)
			if err != nil {
				return nil, err
			}
			pipes = append(pipes, filter)
		case PipeEncrypt:
			if i != len(ids)-1 {
				return nil, fmt.Errorf("pipe %q must be last", PipeEncrypt)
			}
			if opts.Encryption == nil {
				return nil, fmt.Errorf("pipe %q requires an encryption manager", PipeEncrypt)
			}
			pipes = append(pipes, NewEncryptPayload(opts.Encryption))
			hasEncrypt = true
		default:
			return nil, fmt.Errorf("unknown pipe %q", id)
		}
	}
	if !hasEncrypt && opts.Encryption != nil && opts.Encryption.IsEnabled() {
		pipes = append(pipes, NewEncryptPayload(opts.Encryption))
	}
	return New(pipes...), nil
}
