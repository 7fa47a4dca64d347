package service

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/teamchat-api/internal/repository"
)

func encodeCursor(cursor repository.MessageCursor) string {
	cursor.CreatedAt = cursor.CreatedAt.UTC()
	payload, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(payload)
}

// decodeCursor parses an opaque page cursor. An empty string means the first page.
func decodeCursor(raw string) (*repository.MessageCursor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}

	var cursor repository.MessageCursor
	if err := json.Unmarshal(payload, &cursor); err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	if cursor.ID == 0 || cursor.CreatedAt.IsZero() {
		return nil, fmt.Errorf("%w: incomplete cursor", ErrInvalidInput)
	}

	cursor.CreatedAt = cursor.CreatedAt.UTC()
	return &cursor, nil
}
