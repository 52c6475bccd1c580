package encryption

import (
	"fmt"
	"sort"
	"sync"
)

// Manager: реестр драйверов и глобальный переключатель шифрования.
type Manager struct {
	mu            sync.RWMutex
	drivers       map[string]Driver
	enabled       bool
	defaultDriver string
}

// NewManager создает менеджер с уже зарегистрированным драйвером "none".
func NewManager(enabled bool, defaultDriver string) *Manager {
	if defaultDriver == "" {
		defaultDriver = DriverNone
	}
	m := &Manager{
		drivers:       make(map[string]Driver),
		enabled:       enabled,
		defaultDriver: defaultDriver,
	}
	m.Register(NullDriver{})
	return m
}

func (m *Manager) Register(driver Driver) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.Name()] = driver
	return m
}

// Driver возвращает драйвер по имени; пустое имя означает драйвер по умолчанию.
func (m *Manager) Driver(name string) (Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "" {
		name = m.defaultDriver
	}
	driver, ok := m.drivers[name]
	if !ok {
		return nil, fmt.Errorf("encryption driver %q not registered", name)
	}
	return driver, nil
}

func (m *Manager) DefaultDriver() (Driver, error) {
	return m.Driver("")
}

func (m *Manager) DriverName() string {
	return m.defaultDriver
}

func (m *Manager) IsEnabled() bool {
	return m.enabled
}

// Encrypt при выключенном шифровании всегда возвращает обычный JSON.
func (m *Manager) Encrypt(payload map[string]interface{}, ctx Context) (string, error) {
	if !m.enabled {
		return encodeJSON(payload)
	}
	driver, err := m.DefaultDriver()
	if err != nil {
		return "", err
	}
	return driver.Encrypt(payload, ctx)
}

// Decrypt ищет драйвер по сохраненному тегу. Старые сообщения остаются читаемыми
// после смены драйвера по умолчанию, пока их драйвер зарегистрирован.
func (m *Manager) Decrypt(ciphertext string, driverName string, ctx Context) (map[string]interface{}, error) {
	if !m.enabled || driverName == DriverNone || driverName == "" {
		return decodeJSON([]byte(ciphertext))
	}

	m.mu.RLock()
	names := make([]string, 0, len(m.drivers))
	for name := range m.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	var match Driver
	for _, name := range names {
		if m.drivers[name].CanDecrypt(driverName) {
			match = m.drivers[name]
			break
		}
	}
	m.mu.RUnlock()

	if match == nil {
		return nil, fmt.Errorf("no driver can decrypt payload encrypted with %q", driverName)
	}
	return match.Decrypt(ciphertext, ctx)
}

// OpenPayload возвращает открытый payload сообщения или версии.
func (m *Manager) OpenPayload(payload map[string]interface{}, encrypted bool, driverName *string, ctx Context) (map[string]interface{}, error) {
	if !encrypted {
		return payload, nil
	}
	ciphertext, ok := payload[PayloadKey].(string)
	if !ok {
		return nil, fmt.Errorf("encrypted payload has no %s field", PayloadKey)
	}
	name := ""
	if driverName != nil {
		name = *driverName
	}
	return m.Decrypt(ciphertext, name, ctx)
}

func (m *Manager) RegisteredDrivers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.drivers))
	for name := range m.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
