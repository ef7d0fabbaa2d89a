package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Character is structured content owned by a project. The schema beyond a
// name is free-form JSON; characters are cascade-deleted with their project.
type Character struct {
	UUID        uuid.UUID       `json:"uuid"`
	ProjectUUID uuid.UUID       `json:"project_uuid"`
	Name        string          `json:"name"`
	Data        json.RawMessage `json:"data,omitempty"`
	CreateDate  time.Time       `json:"create_date"`
	EditDate    time.Time       `json:"edit_date"`
}
