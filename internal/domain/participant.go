package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const securityCodeLength = 60

type ThreadParticipant struct {
	ID           int64           `json:"id"`
	ThreadID     int64           `json:"thread_id"`
	Actor        Actor           `json:"actor"`
	Role         ParticipantRole `json:"role"`
	JoinedAt     time.Time       `json:"joined_at"`
	LeftAt       *time.Time      `json:"left_at,omitempty"`
	ChatLockPin  *string         `json:"-"`
	PublicKey    *string         `json:"public_key,omitempty"`
	SecurityCode *string         `json:"security_code,omitempty"`
}

func (p *ThreadParticipant) IsActive() bool {
	return p.LeftAt == nil
}

func (p *ThreadParticipant) Leave(now time.Time) {
	p.LeftAt = &now
}

// Rejoin возвращает участника в тред: left_at очищается, joined_at обновляется.
func (p *ThreadParticipant) Rejoin(now time.Time) {
	p.LeftAt = nil
	p.JoinedAt = now
}

func (p *ThreadParticipant) CanManageParticipants() bool {
	return p.Role.CanManageParticipants()
}

func (p *ThreadParticipant) CanDeleteThread() bool {
	return p.Role.CanDeleteThread()
}

// LockChat устанавливает персональный PIN на чат. Хранится только bcrypt-хэш.
func (p *ThreadParticipant) LockChat(pin string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	h := string(hashed)
	p.ChatLockPin = &h
	return nil
}

func (p *ThreadParticipant) UnlockChat() {
	p.ChatLockPin = nil
}

func (p *ThreadParticipant) IsChatLocked() bool {
	return p.ChatLockPin != nil
}

// CheckPin всегда успешен для незаблокированного чата.
func (p *ThreadParticipant) CheckPin(pin string) bool {
	if p.ChatLockPin == nil {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(*p.ChatLockPin), []byte(pin)) == nil
}

// SetPublicKey сохраняет публичный ключ и выводит из него код безопасности.
func (p *ThreadParticipant) SetPublicKey(publicKey string) {
	code := SecurityCode(publicKey)
	p.PublicKey = &publicKey
	p.SecurityCode = &code
}

func (p *ThreadParticipant) FormattedSecurityCode() string {
	if p.SecurityCode == nil {
		return ""
	}
	code := *p.SecurityCode
	groups := make([]string, 0, len(code)/5+1)
	for len(code) > 5 {
		groups = append(groups, code[:5])
		code = code[5:]
	}
	if code != "" {
		groups = append(groups, code)
	}
	return strings.Join(groups, " ")
}

// VerifySecurityWith сравнивает общий код пары ключей с сохраненными кодами.
// Это иллюстративная проверка, а не криптографическая верификация.
func (p *ThreadParticipant) VerifySecurityWith(other *ThreadParticipant) bool {
	if p.PublicKey == nil || other == nil || other.PublicKey == nil {
		return false
	}
	a, b := *p.PublicKey, *other.PublicKey
	if b < a {
		a, b = b, a
	}
	shared := SecurityCode(a + b)
	return (p.SecurityCode != nil && *p.SecurityCode == shared) ||
		(other.SecurityCode != nil && *other.SecurityCode == shared)
}

// SecurityCode строит 60-значный числовой код из SHA-256 ключа.
func SecurityCode(key string) string {
	sum := sha256.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])
	var b strings.Builder
	b.Grow(securityCodeLength)
	for i := 0; i < securityCodeLength; i++ {
		c := digest[i%len(digest)]
		var v byte
		if c >= 'a' {
			v = c - 'a' + 10
		} else {
			v = c - '0'
		}
		b.WriteByte('0' + v%10)
	}
	return b.String()
}
