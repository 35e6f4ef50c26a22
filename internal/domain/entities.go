package domain

import "strings"

// Session is the credential pair issued by the contact service.
// A Session is only meaningful when both tokens are present.
type Session struct {
	AccessToken  string
	RefreshToken string
}

// Complete reports whether both tokens are present.
func (s Session) Complete() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// User is the authenticated account as returned by /auth/users/me
type User struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Contacts []ContactDetail `json:"contacts"`
}

// ContactSummary is the lightweight record produced by the list endpoint
type ContactSummary struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
}

// EmailOrEmpty returns the email address or "" when absent
func (c ContactSummary) EmailOrEmpty() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// ContactDetail is the full contact record including its phone numbers.
// Phones preserve the order the service returned them in.
type ContactDetail struct {
	ContactSummary
	UserID string        `json:"user_id,omitempty"`
	Phones []PhoneNumber `json:"phones"`
}

// Summary returns the summary portion of the detail
func (c ContactDetail) Summary() ContactSummary {
	return c.ContactSummary
}

// PhoneNumber belongs to exactly one contact
type PhoneNumber struct {
	ID         string  `json:"id"`
	Number     string  `json:"number"`
	NumberType *string `json:"number_type"`
	ContactID  string  `json:"contact_id,omitempty"`
}

// TypeOrEmpty returns the number type label or "" when absent
func (p PhoneNumber) TypeOrEmpty() string {
	if p.NumberType == nil {
		return ""
	}
	return *p.NumberType
}

// ContactCreate is the request body for POST /contacts/
type ContactCreate struct {
	Name   string  `json:"name"`
	Email  *string `json:"email,omitempty"`
	UserID string  `json:"user_id"`
}

// ContactUpdate is the request body for PUT /contacts/{id}.
// Nil fields are left unchanged by the service.
type ContactUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// PhoneCreate is the request body for POST /phones/
type PhoneCreate struct {
	Number     string  `json:"number"`
	NumberType *string `json:"number_type,omitempty"`
	ContactID  string  `json:"contact_id"`
}

// PhoneUpdate is the request body for PUT /phones/{id}
type PhoneUpdate struct {
	Number     *string `json:"number,omitempty"`
	NumberType *string `json:"number_type,omitempty"`
}

// Credentials are the login form fields
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration are the sign-up form fields
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ImportPhone is one TEL entry of a parsed card
type ImportPhone struct {
	Number     string
	NumberType string // "" when the card carried no type label
}

// ImportRecord is one parsed card, discarded after submission
type ImportRecord struct {
	Name   string
	Email  string // "" when absent
	Phones []ImportPhone
}

// ImportReport is the outcome of a batch import.
// Imported + Skipped + len(Failures) equals the number of card blocks found.
type ImportReport struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failures []string `json:"failures"`

	// Created holds the contacts created by this batch, in input order,
	// so callers can refresh their caches.
	Created []ContactDetail `json:"-"`
}

// UploadResult is the response of the server-side card import
type UploadResult struct {
	Count   int `json:"count"`
	Skipped int `json:"skipped"`
}

// StringPtr returns nil for blank strings, otherwise a pointer to the trimmed value
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
