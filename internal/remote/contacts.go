package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/mmcdole/rolo/internal/domain"
)

// ListContacts returns the contact summaries of the current user
func (c *Client) ListContacts(ctx context.Context, accessToken string) ([]domain.ContactSummary, error) {
	var contacts []domain.ContactSummary
	err := c.doRequest(ctx, request{method: http.MethodGet, path: "/contacts/", accessToken: accessToken}, &contacts)
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

// GetContact returns a contact with its phone numbers
func (c *Client) GetContact(ctx context.Context, accessToken, id string) (*domain.ContactDetail, error) {
	var contact domain.ContactDetail
	err := c.doRequest(ctx, request{method: http.MethodGet, path: contactPath(id), accessToken: accessToken}, &contact)
	if err != nil {
		return nil, err
	}
	if contact.Phones == nil {
		contact.Phones = []domain.PhoneNumber{}
	}
	return &contact, nil
}

func (c *Client) CreateContact(ctx context.Context, accessToken string, in domain.ContactCreate) (*domain.ContactDetail, error) {
	var contact domain.ContactDetail
	err := c.doRequest(ctx, request{method: http.MethodPost, path: "/contacts/", accessToken: accessToken, body: in}, &contact)
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *Client) UpdateContact(ctx context.Context, accessToken, id string, in domain.ContactUpdate) (*domain.ContactDetail, error) {
	var contact domain.ContactDetail
	err := c.doRequest(ctx, request{method: http.MethodPut, path: contactPath(id), accessToken: accessToken, body: in}, &contact)
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *Client) DeleteContact(ctx context.Context, accessToken, id string) error {
	return c.doRequest(ctx, request{method: http.MethodDelete, path: contactPath(id), accessToken: accessToken}, nil)
}

func (c *Client) CreatePhone(ctx context.Context, accessToken string, in domain.PhoneCreate) (*domain.PhoneNumber, error) {
	var phone domain.PhoneNumber
	err := c.doRequest(ctx, request{method: http.MethodPost, path: "/phones/", accessToken: accessToken, body: in}, &phone)
	if err != nil {
		return nil, err
	}
	return &phone, nil
}

func (c *Client) UpdatePhone(ctx context.Context, accessToken, id string, in domain.PhoneUpdate) (*domain.PhoneNumber, error) {
	var phone domain.PhoneNumber
	err := c.doRequest(ctx, request{method: http.MethodPut, path: phonePath(id), accessToken: accessToken, body: in}, &phone)
	if err != nil {
		return nil, err
	}
	return &phone, nil
}

func (c *Client) DeletePhone(ctx context.Context, accessToken, id string) error {
	return c.doRequest(ctx, request{method: http.MethodDelete, path: phonePath(id), accessToken: accessToken}, nil)
}

// UploadCards sends a card file to the server-side importer as multipart
// form data with the fields "file" and "user_id"
func (c *Client) UploadCards(ctx context.Context, accessToken, userID, filename string, cards io.Reader) (*domain.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, cards); err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}
	if err := mw.WriteField("user_id", userID); err != nil {
		return nil, fmt.Errorf("failed to write user_id: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	var result domain.UploadResult
	err = c.doRequest(ctx, request{
		method:      http.MethodPost,
		path:        "/contacts/upload-vcf",
		accessToken: accessToken,
		raw:         &buf,
		contentType: mw.FormDataContentType(),
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func contactPath(id string) string { return "/contacts/" + url.PathEscape(id) }

func phonePath(id string) string { return "/phones/" + url.PathEscape(id) }
