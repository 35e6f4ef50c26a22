package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/mmcdole/rolo/internal/domain"
	"github.com/mmcdole/rolo/internal/gateway"
)

// ContactService routes every contact and phone call through the gateway
type ContactService struct {
	repo    domain.ContactRepository
	gateway *gateway.Gateway
	logger  *slog.Logger
}

var (
	_ domain.ContactFetcher = (*ContactService)(nil)
	_ domain.ContactCreator = (*ContactService)(nil)
)

// NewContactService creates a new ContactService
func NewContactService(repo domain.ContactRepository, gw *gateway.Gateway, logger *slog.Logger) *ContactService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactService{repo: repo, gateway: gw, logger: logger}
}

func (s *ContactService) ListContacts(ctx context.Context) ([]domain.ContactSummary, error) {
	contacts, err := gateway.Call(ctx, s.gateway, "contacts.list", func(ctx context.Context, a gateway.Attempt) ([]domain.ContactSummary, error) {
		return s.repo.ListContacts(ctx, a.AccessToken)
	})
	if err != nil {
		s.logger.Error("failed to list contacts", "error", err)
		return nil, err
	}
	s.logger.Debug("listed contacts", "count", len(contacts))
	return contacts, nil
}

func (s *ContactService) GetContact(ctx context.Context, id string) (*domain.ContactDetail, error) {
	return gateway.Call(ctx, s.gateway, "contacts.get", func(ctx context.Context, a gateway.Attempt) (*domain.ContactDetail, error) {
		return s.repo.GetContact(ctx, a.AccessToken, id)
	})
}

// CreateContact validates the name locally before submitting
func (s *ContactService) CreateContact(ctx context.Context, in domain.ContactCreate) (*domain.ContactDetail, error) {
	if err := domain.ValidateName(in.Name); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	return gateway.Call(ctx, s.gateway, "contacts.create", func(ctx context.Context, a gateway.Attempt) (*domain.ContactDetail, error) {
		return s.repo.CreateContact(ctx, a.AccessToken, in)
	})
}

func (s *ContactService) UpdateContact(ctx context.Context, id string, in domain.ContactUpdate) (*domain.ContactDetail, error) {
	if in.Name != nil {
		if err := domain.ValidateName(*in.Name); err != nil {
			return nil, err
		}
	}
	return gateway.Call(ctx, s.gateway, "contacts.update", func(ctx context.Context, a gateway.Attempt) (*domain.ContactDetail, error) {
		return s.repo.UpdateContact(ctx, a.AccessToken, id, in)
	})
}

func (s *ContactService) DeleteContact(ctx context.Context, id string) error {
	return s.gateway.Execute(ctx, "contacts.delete", func(ctx context.Context, a gateway.Attempt) error {
		return s.repo.DeleteContact(ctx, a.AccessToken, id)
	})
}

func (s *ContactService) CreatePhone(ctx context.Context, in domain.PhoneCreate) (*domain.PhoneNumber, error) {
	if strings.TrimSpace(in.Number) == "" {
		return nil, &domain.ValidationError{Field: "number", Reason: "number is required"}
	}
	return gateway.Call(ctx, s.gateway, "phones.create", func(ctx context.Context, a gateway.Attempt) (*domain.PhoneNumber, error) {
		return s.repo.CreatePhone(ctx, a.AccessToken, in)
	})
}

func (s *ContactService) UpdatePhone(ctx context.Context, id string, in domain.PhoneUpdate) (*domain.PhoneNumber, error) {
	if in.Number != nil && strings.TrimSpace(*in.Number) == "" {
		return nil, &domain.ValidationError{Field: "number", Reason: "number is required"}
	}
	return gateway.Call(ctx, s.gateway, "phones.update", func(ctx context.Context, a gateway.Attempt) (*domain.PhoneNumber, error) {
		return s.repo.UpdatePhone(ctx, a.AccessToken, id, in)
	})
}

func (s *ContactService) DeletePhone(ctx context.Context, id string) error {
	return s.gateway.Execute(ctx, "phones.delete", func(ctx context.Context, a gateway.Attempt) error {
		return s.repo.DeletePhone(ctx, a.AccessToken, id)
	})
}

// UploadCards hands a card file to the server-side importer. The payload
// is buffered so a retry after renewal can resend it.
func (s *ContactService) UploadCards(ctx context.Context, userID, filename string, cards io.Reader) (*domain.UploadResult, error) {
	data, err := io.ReadAll(cards)
	if err != nil {
		return nil, err
	}
	result, err := gateway.Call(ctx, s.gateway, "contacts.upload", func(ctx context.Context, a gateway.Attempt) (*domain.UploadResult, error) {
		return s.repo.UploadCards(ctx, a.AccessToken, userID, filename, bytes.NewReader(data))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("uploaded cards", "imported", result.Count, "skipped", result.Skipped)
	return result, nil
}
