package models

import "errors"

var ErrIdentityAssigned = errors.New("identity payload already assigned")

// ContentType is a category of document page a folder can require.
// IdentityPayload stays empty between the first insert and AssignIdentity.
type ContentType struct {
	Model
	Name            string `gorm:"size:255;not null;uniqueIndex:idx_content_types_name,where:deleted_at IS NULL" json:"name"`
	Description     string `json:"description"`
	Required        bool   `gorm:"not null" json:"required"`
	IdentityPayload string `gorm:"size:64;index" json:"qrCode"`
}

func (ContentType) TableName() string {
	return "content_types"
}

func (c *ContentType) HasIdentity() bool {
	return c.IdentityPayload != ""
}

func (c *ContentType) AssignIdentity(payload string) error {
	if c.HasIdentity() {
		return ErrIdentityAssigned
	}
	c.IdentityPayload = payload
	return nil
}
