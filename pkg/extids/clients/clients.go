// Package clients manages the API clients allowed to call the service.
package clients

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/models"
)

const (
	// SecretLength is the length of a generated secret in bytes (32 bytes = 64 hex chars)
	SecretLength = 32
	// KeyPrefixLength is the number of secret characters kept for identification
	KeyPrefixLength = 8
)

// ErrInvalidCredentials is returned for an unknown client, a wrong secret or an inactive client
var ErrInvalidCredentials = errors.New("invalid client credentials")

// Service manages APIClient rows
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates a client service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Input describes a new client. An empty Secret generates one.
type Input struct {
	Name        string
	Secret      string
	Role        models.ClientRole
	RecordTypes []string
	CompanyIDs  []uint
}

// GenerateSecret returns a new random client secret
func GenerateSecret() (string, error) {
	b := make([]byte, SecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashSecret hashes a client secret with bcrypt
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckSecret reports whether secret matches hash
func CheckSecret(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// Create registers a client and returns it with its plain secret, which is
// not stored and cannot be recovered later.
func (s *Service) Create(ctx context.Context, in Input) (*models.APIClient, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, "", &errs.ValidationError{Field: "name", Message: "is required"}
	}
	role := in.Role
	if role == "" {
		role = models.ClientRoleClient
	}
	if role != models.ClientRoleAdmin && role != models.ClientRoleClient {
		return nil, "", &errs.ValidationError{Field: "role", Message: string(role) + " is not one of admin, client"}
	}

	secret := in.Secret
	if secret == "" {
		var err error
		if secret, err = GenerateSecret(); err != nil {
			return nil, "", err
		}
	}
	if len(secret) < KeyPrefixLength {
		return nil, "", &errs.ValidationError{Field: "secret", Message: "must be at least " + strconv.Itoa(KeyPrefixLength) + " characters"}
	}
	hash, err := HashSecret(secret)
	if err != nil {
		return nil, "", err
	}

	companies := make([]string, len(in.CompanyIDs))
	for i, id := range in.CompanyIDs {
		companies[i] = strconv.FormatUint(uint64(id), 10)
	}
	client := models.APIClient{
		Name:        name,
		SecretHash:  hash,
		KeyPrefix:   secret[:KeyPrefixLength],
		Role:        role,
		RecordTypes: strings.Join(in.RecordTypes, ","),
		CompanyIDs:  strings.Join(companies, ","),
		Active:      true,
	}
	if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
		if errs.IsConstraintViolation(err) {
			return nil, "", &errs.UniquenessError{Constraint: "client name", Value: name}
		}
		return nil, "", err
	}
	return &client, secret, nil
}

// Ensure creates the client when no client of that name exists yet.
// The bool reports whether it was created.
func (s *Service) Ensure(ctx context.Context, in Input) (*models.APIClient, bool, error) {
	var existing models.APIClient
	err := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(in.Name)).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	client, _, err := s.Create(ctx, in)
	if err != nil {
		return nil, false, err
	}
	return client, true, nil
}

// List returns every client, newest first
func (s *Service) List(ctx context.Context) ([]models.APIClient, error) {
	var clients []models.APIClient
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&clients).Error
	return clients, err
}

// Get returns a client by id
func (s *Service) Get(ctx context.Context, id uint) (*models.APIClient, error) {
	var client models.APIClient
	if err := s.db.WithContext(ctx).First(&client, id).Error; err != nil {
		return nil, errs.NotFound(err)
	}
	return &client, nil
}

// Delete removes a client. Tokens already issued stay valid until they expire.
func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.APIClient{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Count returns the number of clients
func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.APIClient{}).Count(&n).Error
	return n, err
}

// Authenticate checks a client's secret and stamps its last use
func (s *Service) Authenticate(ctx context.Context, name, secret string) (*models.APIClient, error) {
	var client models.APIClient
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !client.Active || !CheckSecret(secret, client.SecretHash) {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	s.db.WithContext(ctx).Model(&client).Update("last_used_at", now)
	client.LastUsedAt = &now
	return &client, nil
}
