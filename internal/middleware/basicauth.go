package middleware

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"reqlens/request"

	"golang.org/x/crypto/bcrypt"
)

var ErrUnauthorized = errors.New("unauthorized")

// BasicAuth resolves the remote user from HTTP Basic credentials checked
// against bcrypt hashes. Requests without credentials pass through with an
// empty remote user.
type BasicAuth struct {
	users map[string][]byte
}

func NewBasicAuth(users map[string]string) *BasicAuth {
	b := &BasicAuth{users: make(map[string][]byte, len(users))}
	for user, hash := range users {
		b.users[user] = []byte(hash)
	}
	return b
}

// LoadBasicAuth reads an htpasswd style file of user:bcrypt-hash lines.
func LoadBasicAuth(path string) (*BasicAuth, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open auth file: %w", err)
	}
	defer f.Close()
	return ParseBasicAuth(f)
}

func ParseBasicAuth(r io.Reader) (*BasicAuth, error) {
	users := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		user, hash, ok := strings.Cut(line, ":")
		if !ok || user == "" || hash == "" {
			return nil, fmt.Errorf("auth file line %d: expected user:hash", lineNo)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("auth file line %d: %w", lineNo, err)
		}
		users[user] = hash
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read auth file: %w", err)
	}
	return NewBasicAuth(users), nil
}

func (b *BasicAuth) Len() int {
	return len(b.users)
}

func (b *BasicAuth) HandleRequest(req *request.Request) error {
	authorization := req.Headers().Authorization()
	if authorization == "" {
		return nil
	}

	user, password, ok := parseBasic(authorization)
	if !ok {
		return ErrUnauthorized
	}

	hash, ok := b.users[user]
	if !ok {
		return ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrUnauthorized
	}

	req.SetRemoteUser(user)
	return nil
}

func parseBasic(authorization string) (user, password string, ok bool) {
	const prefix = "basic "
	if len(authorization) < len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(authorization[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}
