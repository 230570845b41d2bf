package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// ControlMessage это входящее сообщение управляющего канала
type ControlMessage struct {
	Client  Role            `json:"client"`
	Command json.RawMessage `json:"command,omitempty"`
}

// ParseControlMessage разбирает сообщение управляющего канала. Ключи сравниваются
// с учётом регистра, при повторе ключа побеждает последний. Корректный JSON, который
// не является объектом, даёт пустое сообщение без ошибки.
func ParseControlMessage(raw []byte) (*ControlMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// json.Unmarshal проверяет синтаксис до декодирования, так что ошибка типа
		// означает корректный JSON другой формы
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ControlMessage{}, nil
		}
		return nil, err
	}
	message := &ControlMessage{}
	if client, ok := fields["client"]; ok {
		var role string
		// client не строка - роль не задана
		if json.Unmarshal(client, &role) == nil {
			message.Client = Role(role)
		}
	}
	if command, ok := fields["command"]; ok {
		message.Command = command
	}
	return message, nil
}

// HasCommand сообщает, есть ли в сообщении команда. Ложные значения
// (null, "", false, числа равные нулю) командой не считаются.
func (m *ControlMessage) HasCommand() bool {
	command := bytes.TrimSpace(m.Command)
	if len(command) == 0 {
		return false
	}
	switch command[0] {
	case 'n':
		return string(command) != "null"
	case 'f':
		return string(command) != "false"
	case '"':
		return string(command) != `""`
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		value, err := strconv.ParseFloat(string(command), 64)
		return err != nil || value != 0
	}
	return true
}

// EncodeCommand собирает {"command": <value>} для устройств. Значение передаётся
// без экранирования HTML, как его отправил браузер.
func EncodeCommand(command json.RawMessage) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(CommandMessage{Command: command}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buffer.Bytes(), []byte("\n")), nil
}

// CommandMessage пересылается каждому зарегистрированному устройству
type CommandMessage struct {
	Command json.RawMessage `json:"command"`
}

// ControlPeer описывает одно соединение управляющего канала
type ControlPeer struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	Role        Role      `json:"role"`
	ConnectedAt time.Time `json:"connected_at"`
}
