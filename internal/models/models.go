package models

import (
	"gorm.io/gorm"
)

// CredentialRecord is one row of the append-only credential log.
type CredentialRecord struct {
	gorm.Model
	Username string `gorm:"uniqueIndex"`
	Salt     []byte
	Hash     []byte
	Params   string
}
