package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the caller did not supply one so
// inserts behave the same on postgres and sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
