package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"grc-portal/models"
	"grc-portal/repositories"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	errInvalidCredentials = models.ErrorUnauthorized{Message: "invalid credentials"}
	errUserExists         = models.ErrorConflict{Message: "user already exists"}
)

type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role models.UserRole) (*models.User, error)
}

type authService struct {
	store         repositories.Store
	jwtSecret     []byte
	jwtExpiration time.Duration
}

func NewAuthService(store repositories.Store, jwtSecret []byte, jwtExpiration time.Duration) AuthService {
	return &authService{
		store:         store,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *authService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: string(hashedPassword),
		Role:     models.RoleViewer,
	}

	// The first account bootstraps the portal; everyone else starts read-only
	// until an admin grants a role.
	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		users := tx.Users()
		if err := users.LockForRegistration(ctx); err != nil {
			return err
		}
		if _, err := users.GetByEmail(ctx, email); err == nil {
			return errUserExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		count, err := users.Count(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			user.Role = models.RoleAdmin
		}
		return users.Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, errUserExists) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errUserExists
		}
		return nil, models.ErrorStorage{Op: "register user", Err: err}
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Token: token,
		User:  *user,
	}, nil
}

func (s *authService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, models.ErrorStorage{Op: "lookup user", Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Token: token,
		User:  *user,
	}, nil
}

func (s *authService) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrorNotFound{Resource: "user", Key: id.String()}
		}
		return nil, models.ErrorStorage{Op: "load user", Err: err}
	}
	return user, nil
}

func (s *authService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrorNotFound{Resource: "user", Key: email}
		}
		return nil, models.ErrorStorage{Op: "load user", Err: err}
	}
	return user, nil
}

func (s *authService) SetRole(ctx context.Context, id uuid.UUID, role models.UserRole) (*models.User, error) {
	if !role.Valid() {
		return nil, models.ErrorValidation{Message: "unknown role " + string(role)}
	}
	if err := s.store.Users().UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrorNotFound{Resource: "user", Key: id.String()}
		}
		return nil, models.ErrorStorage{Op: "update role", Err: err}
	}
	return s.GetUserByID(ctx, id)
}

func (s *authService) generateToken(user *models.User) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"name":    user.Name,
		"role":    user.Role,
		"exp":     now.Add(s.jwtExpiration).Unix(),
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
