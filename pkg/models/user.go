package models

import (
	"math"
	"unicode/utf8"

	"github.com/Ramsey-B/fern/pkg/errs"
)

const (
	userNameMinLength = 2
	userNameMaxLength = 100
)

// UserEntity constrains the payload to {name, externalId}. The typed
// accessors are a read facade over the backing JSON; the name and external
// id are never stored anywhere else.
type UserEntity struct {
	base
}

// NewUserEntity validates the id grammar and the user data constraints.
func NewUserEntity(id string, data any) (*UserEntity, error) {
	b, err := newBase(id, data)
	if err != nil {
		return nil, err
	}
	if err := validateUserData(b.data); err != nil {
		return nil, err
	}
	return &UserEntity{base: b}, nil
}

// UserFactory adapts NewUserEntity to the Factory signature.
func UserFactory(id string, data any) (Entity, error) {
	return NewUserEntity(id, data)
}

// Name returns the user's display name from the backing JSON.
func (u *UserEntity) Name() string {
	name, _ := u.base.data.(map[string]any)["name"].(string)
	return name
}

// ExternalID returns the user's external identifier from the backing JSON.
func (u *UserEntity) ExternalID() int64 {
	value, _ := u.base.data.(map[string]any)["externalId"].(float64)
	return int64(value)
}

// Merge re-validates the merged payload: a merge producing invalid user data
// fails the same way fresh construction would.
func (u *UserEntity) Merge(partial any) (Entity, error) {
	merged := u.base.mergeData(partial)
	if err := validateUserData(merged.data); err != nil {
		return nil, err
	}
	return &UserEntity{base: merged}, nil
}

func (u *UserEntity) WithETag(etag string) Entity {
	return &UserEntity{base: u.base.withETag(etag)}
}

func (u *UserEntity) WithMetadata(meta *Metadata) Entity {
	return &UserEntity{base: u.base.withMetadata(meta)}
}

func validateUserData(data any) error {
	doc, ok := data.(map[string]any)
	if !ok {
		return errs.NewValidation("data", "user data must be a JSON object")
	}

	name, ok := doc["name"].(string)
	if !ok {
		return errs.NewValidation("name", "name is required and must be a string")
	}
	if length := utf8.RuneCountInString(name); length < userNameMinLength || length > userNameMaxLength {
		return errs.NewValidation("name", "name must be %d to %d characters, got %d", userNameMinLength, userNameMaxLength, length)
	}

	externalID, ok := doc["externalId"].(float64)
	if !ok {
		return errs.NewValidation("externalId", "externalId is required and must be a number")
	}
	if math.Trunc(externalID) != externalID || externalID <= 0 {
		return errs.NewValidation("externalId", "externalId must be a positive integer, got %v", externalID)
	}

	return nil
}
