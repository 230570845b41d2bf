package password

import (
	"encoding/base64"
	"errors"
	"golang.org/x/crypto/bcrypt"
)

var ErrEmptySecret = errors.New("secret is empty")

// HashSecret хеширует секрет администратора с помощью bcrypt.
// Соль входит в сам хеш, результат закодирован в base64, чтобы его можно было
// хранить в YAML и переменных окружения без экранирования.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(hash), nil
}

// CheckSecret проверяет секрет по хешу из HashSecret.
// Пустой хеш означает, что доступ закрыт для всех.
func CheckSecret(secret, hash string) bool {
	if hash == "" || secret == "" {
		return false
	}
	decodedHash, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword(decodedHash, []byte(secret)) == nil
}
