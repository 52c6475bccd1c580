package pipeline

import (
	"context"
	"fmt"

	"chat_engine/internal/domain"
	"chat_engine/internal/encryption"
)

// EncryptPayload заменяет payload обёрткой с шифротекстом. Должен идти последним.
type EncryptPayload struct {
	manager *encryption.Manager
}

func NewEncryptPayload(manager *encryption.Manager) *EncryptPayload {
	return &EncryptPayload{manager: manager}
}

func (p *EncryptPayload) Handle(ctx context.Context, msg *domain.Message, next Handler) (*domain.Message, error) {
	if !p.manager.IsEnabled() || msg.Encrypted {
		return next(ctx, msg)
	}

	ciphertext, err := p.manager.Encrypt(msg.Payload, encryption.Context{
		"thread_id":   msg.ThreadID,
		"sender_type": msg.Sender.Type,
		"sender_id":   msg.Sender.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}

	driver := p.manager.DriverName()
	msg.Payload = map[string]interface{}{encryption.PayloadKey: ciphertext}
	msg.Encrypted = true
	msg.EncryptionDriver = &driver
	return next(ctx, msg)
}
