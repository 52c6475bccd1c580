// Package encryption хранит реестр драйверов шифрования payload "at rest".
// Встроенные драйверы не реализуют сквозное (E2E) шифрование.
package encryption

import "encoding/json"

const (
	DriverNone      = "none"
	DriverSymmetric = "symmetric"

	// PayloadKey: ключ, под которым в payload лежит шифротекст.
	PayloadKey = "_encrypted"
)

// Context: дополнительные сведения о сообщении (thread_id, sender_type, sender_id).
type Context map[string]interface{}

type Driver interface {
	Encrypt(payload map[string]interface{}, ctx Context) (string, error)
	Decrypt(ciphertext string, ctx Context) (map[string]interface{}, error)
	Name() string
	CanDecrypt(driverName string) bool
}

// NullDriver просто сериализует payload в JSON.
type NullDriver struct{}

func (NullDriver) Encrypt(payload map[string]interface{}, _ Context) (string, error) {
	return encodeJSON(payload)
}

func (NullDriver) Decrypt(ciphertext string, _ Context) (map[string]interface{}, error) {
	return decodeJSON([]byte(ciphertext))
}

func (NullDriver) Name() string {
	return DriverNone
}

func (NullDriver) CanDecrypt(driverName string) bool {
	return driverName == DriverNone || driverName == ""
}

func encodeJSON(payload map[string]interface{}) (string, error) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSON(data []byte) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
