package domain

import (
	"fmt"
	"strings"
)

// Actor ссылается на участника переписки по типу и идентификатору.
// Движок не знает, что стоит за актором (пользователь, команда, бот).
type Actor struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func NewActor(actorType, id string) Actor {
	return Actor{Type: actorType, ID: id}
}

func (a Actor) Equal(other Actor) bool {
	return a.Type == other.Type && a.ID == other.ID
}

func (a Actor) IsZero() bool {
	return a.Type == "" && a.ID == ""
}

func (a Actor) String() string {
	return a.Type + ":" + a.ID
}

// ParseActor разбирает строку вида "type:id", полученную из Actor.String.
func ParseActor(s string) (Actor, error) {
	actorType, id, ok := strings.Cut(s, ":")
	if !ok || actorType == "" || id == "" {
		return Actor{}, fmt.Errorf("invalid actor reference %q", s)
	}
	return NewActor(actorType, id), nil
}
