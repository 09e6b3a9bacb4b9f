package models

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist,
	// or does not belong to the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrEmptyCart is returned when checkout is attempted with no items.
	ErrEmptyCart = errors.New("cart is empty")
)

// MissingContactInfoError is returned when checkout is submitted without
// a phone and/or address. It carries both submitted values so the form
// can be re-rendered without data loss.
type MissingContactInfoError struct {
	Phone   string
	Address string
}

func (e *MissingContactInfoError) Error() string {
	var missing []string
	if e.PhoneMissing() {
		missing = append(missing, "phone")
	}
	if e.AddressMissing() {
		missing = append(missing, "address")
	}
	return "missing contact info: " + strings.Join(missing, ", ")
}

// PhoneMissing reports whether the phone field was left empty.
func (e *MissingContactInfoError) PhoneMissing() bool { return e.Phone == "" }

// AddressMissing reports whether the address field was left empty.
func (e *MissingContactInfoError) AddressMissing() bool { return e.Address == "" }
