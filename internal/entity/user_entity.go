// FILE: internal/entity/user_entity.go
package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Id        uuid.UUID
	Email     string
	FullName  string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
