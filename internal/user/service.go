package user

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/wichananm65/storefront/internal/address"
	"github.com/wichananm65/storefront/internal/apperr"
	"github.com/wichananm65/storefront/internal/auth"
)

const minPasswordLength = 8

// AddressBook confirms that a main address belongs to the user.
type AddressBook interface {
	GetAddress(ctx context.Context, userID, addressID int) (address.Address, error)
}

type Service struct {
	repo      Repository
	addresses AddressBook
	secret    string
	tokenTTL  time.Duration
	cost      int
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewService(repo Repository, addresses AddressBook, secret string, tokenTTL time.Duration, log logrus.FieldLogger) *Service {
	return &Service{
		repo:      repo,
		addresses: addresses,
		secret:    secret,
		tokenTTL:  tokenTTL,
		cost:      bcrypt.DefaultCost,
		log:       log,
		now:       time.Now,
	}
}

// Session is what a successful sign-in hands back.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, in Registration) (User, error) {
	return s.create(ctx, in, auth.RoleCustomer)
}

// CreateStaff creates an admin account. It is reachable from the CLI only.
func (s *Service) CreateStaff(ctx context.Context, in Registration) (User, error) {
	return s.create(ctx, in, auth.RoleAdmin)
}

func (s *Service) create(ctx context.Context, in Registration, role auth.Role) (User, error) {
	email := normalizeEmail(in.Email)
	if !strings.Contains(email, "@") {
		return User{}, apperr.Invalidf("a valid email is required")
	}
	if len(in.Password) < minPasswordLength {
		return User{}, apperr.Invalidf("password must be at least %d characters", minPasswordLength)
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return User{}, ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, errors.Wrap(err, "hash password")
	}
	now := s.now()
	u, err := s.repo.Create(ctx, User{
		Email:        email,
		PasswordHash: string(hashed),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return User{}, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("account created")
	return u, nil
}

// SignIn checks the password and issues a bearer token. Unknown emails and
// wrong passwords fail the same way.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, err := auth.NewToken(s.secret, u.Identity(), s.tokenTTL)
	if err != nil {
		return Session{}, errors.Wrap(err, "sign token")
	}
	return Session{Token: token, User: u}, nil
}

func (s *Service) Profile(ctx context.Context, id int) (User, error) {
	if id <= 0 {
		return User{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile applies a partial update. A main address must be one of the
// user's own saved addresses.
func (s *Service) UpdateProfile(ctx context.Context, id int, in ProfileUpdate) (User, error) {
	u, err := s.Profile(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.MainAddressID != nil {
		if _, err := s.addresses.GetAddress(ctx, id, *in.MainAddressID); err != nil {
			return User{}, err
		}
	}
	in.apply(&u)
	u.UpdatedAt = s.now()
	return s.repo.Update(ctx, u)
}
