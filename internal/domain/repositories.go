package domain

import (
	"context"
	"io"
)

// AuthRepository covers the unauthenticated auth endpoints plus logout.
// Implementations talk to the service directly; they never refresh.
type AuthRepository interface {
	Login(ctx context.Context, creds Credentials) (Session, error)
	Register(ctx context.Context, reg Registration) (*User, error)
	Refresh(ctx context.Context, refreshToken string) (Session, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	CurrentUser(ctx context.Context, accessToken string) (*User, error)
}

// ContactRepository covers the bearer-authenticated contact and phone endpoints.
// Every call takes the access token to attach; "" sends the request unauthenticated.
type ContactRepository interface {
	ListContacts(ctx context.Context, accessToken string) ([]ContactSummary, error)
	GetContact(ctx context.Context, accessToken, id string) (*ContactDetail, error)
	CreateContact(ctx context.Context, accessToken string, c ContactCreate) (*ContactDetail, error)
	UpdateContact(ctx context.Context, accessToken, id string, c ContactUpdate) (*ContactDetail, error)
	DeleteContact(ctx context.Context, accessToken, id string) error

	CreatePhone(ctx context.Context, accessToken string, p PhoneCreate) (*PhoneNumber, error)
	UpdatePhone(ctx context.Context, accessToken, id string, p PhoneUpdate) (*PhoneNumber, error)
	DeletePhone(ctx context.Context, accessToken, id string) error

	UploadCards(ctx context.Context, accessToken, userID, filename string, cards io.Reader) (*UploadResult, error)
}

// ContactFetcher loads a full contact through the gateway
type ContactFetcher interface {
	GetContact(ctx context.Context, id string) (*ContactDetail, error)
}

// ContactCreator submits creates through the gateway
type ContactCreator interface {
	CreateContact(ctx context.Context, c ContactCreate) (*ContactDetail, error)
	CreatePhone(ctx context.Context, p PhoneCreate) (*PhoneNumber, error)
}
