// Package hasher строит детерминированный отпечаток набора участников треда
// для дедупликации тредов.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"chat_engine/internal/domain"
)

type Member struct {
	Actor domain.Actor
	Role  domain.ParticipantRole
}

// Generate возвращает SHA-256 (hex) от отсортированных токенов "type:id[:role]",
// соединенных "|". Если threadType задан, строка предваряется "{type}||".
func Generate(members []Member, includeRoles bool, threadType domain.ThreadType) string {
	tokens := make([]string, 0, len(members))
	for _, m := range members {
		token := m.Actor.Type + ":" + m.Actor.ID
		if includeRoles {
			token += ":" + string(m.Role)
		}
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	data := strings.Join(tokens, "|")
	if threadType != "" {
		data = string(threadType) + "||" + data
	}

	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// ForDirectMessage: отпечаток личной переписки двух акторов (без ролей).
func ForDirectMessage(a, b domain.Actor) string {
	return Generate([]Member{{Actor: a}, {Actor: b}}, false, domain.ThreadTypeDirect)
}
