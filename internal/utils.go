package internal

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func sanitizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.Trim(part, " \"")
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}
	if len(clean) == 0 {
		clean = []string{name}
	}
	return pgx.Identifier(clean).Sanitize()
}

// toUUID reads an identifier given as a uuid.UUID, its text form or 16 raw bytes.
// Pointers are followed; a nil pointer or an empty slice is not an identifier.
func toUUID(obj any) (uuid.UUID, bool) {
	switch v := obj.(type) {
	case *uuid.UUID:
		if v == nil {
			return uuid.Nil, false
		}
		return *v, true
	case *string:
		if v == nil {
			return uuid.Nil, false
		}
		return toUUID(*v)
	case uuid.UUID:
		return v, true
	case string:
		id, err := uuid.Parse(v)
		return id, err == nil
	case []byte:
		if len(v) == 0 {
			return uuid.Nil, false
		}
		if len(v) == 16 {
			id, err := uuid.FromBytes(v)
			return id, err == nil
		}
		return toUUID(string(v))
	}
	return uuid.Nil, false
}
