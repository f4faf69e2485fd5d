package sos

import (
	"fmt"
	"net/mail"
	"strings"
)

// Contact is an emergency contact of a user.
type Contact struct {
	// Address is the normalised e-mail address notifications are sent to.
	Address string
	// DisplayName is an optional human name for the contact.
	DisplayName string
}

// User is the snapshot the directory returns for one dispatch.
type User struct {
	// ID is the directory identifier of the user.
	ID string
	// Name is used in the alert text ("<Name> needs help!").
	Name string
	// Contacts lists emergency contacts in directory order.
	Contacts []Contact
}

// NewContact trims and lower-cases the address and checks it is e-mail shaped.
func NewContact(address, displayName string) (Contact, error) {
	normalized := strings.ToLower(strings.TrimSpace(address))
	if normalized == "" {
		return Contact{}, fmt.Errorf("%w: contact address is empty", ErrInvalidInput)
	}

	parsed, err := mail.ParseAddress(normalized)
	if err != nil || parsed.Address != normalized {
		return Contact{}, fmt.Errorf("%w: contact address %q is not an e-mail", ErrInvalidInput, address)
	}

	return Contact{
		Address:     normalized,
		DisplayName: strings.TrimSpace(displayName),
	}, nil
}

// Clone returns a copy of the user with its own contact slice, so callers can
// hold a snapshot that is unaffected by later directory changes.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}

	cloned := *u
	cloned.Contacts = append([]Contact(nil), u.Contacts...)

	return &cloned
}
