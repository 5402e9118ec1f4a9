package logic

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"social_distance/dal"
	"social_distance/dto"
	"social_distance/shared"
)

const tokenValidityHours = 72

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_accounts.go -package mocks social_distance/logic IAccounts

type IAccounts interface {
	Register(req *dto.RegisterRequest) (*dal.Author, error)
	Login(req *dto.LoginRequest) (token string, err error)
	VerifyToken(token string) (userId int64, err error)
}

type accounts struct {
	cfg      *shared.Config
	logger   shared.ILogger
	repo     dal.IRepo
	identity IIdentityResolver
}

func NewAccounts(cfg *shared.Config, logger shared.ILogger, repo dal.IRepo, identity IIdentityResolver) IAccounts {
	return &accounts{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		identity: identity,
	}
}

// Register creates the login principal and its bound internal author in one
// go. The author record is what the rest of the world sees.
func (a *accounts) Register(req *dto.RegisterRequest) (*dal.Author, error) {

	if req.Username == "" || req.Password == "" {
		return nil, shared.Errorf(shared.ErrValidation, "username and password are required")
	}
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	userId, err := a.repo.AddUser(req.Username, string(hashBytes))
	if err != nil {
		return nil, err
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}
	author, err := a.identity.CreateInternalAuthor(userId, displayName, req.Github)
	if err != nil {
		return nil, err
	}
	a.logger.Infof("Registered user '%s' with author %s", req.Username, author.Id)
	return author, nil
}

func (a *accounts) Login(req *dto.LoginRequest) (string, error) {

	user, err := a.repo.GetUser(req.Username)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", shared.Errorf(shared.ErrAuthenticationFailed, "unknown user '%s'", req.Username)
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PwHash), []byte(req.Password)); err != nil {
		return "", shared.Errorf(shared.ErrAuthenticationFailed, "wrong password for '%s'", req.Username)
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   user.Username,
		ID:        strconv.FormatInt(user.Id, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenValidityHours * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.cfg.Secrets.TokenSigningKey))
	if err != nil {
		return "", err
	}
	return signed, nil
}

func (a *accounts) VerifyToken(tokenStr string) (int64, error) {

	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.cfg.Secrets.TokenSigningKey), nil
	})
	if err != nil || !token.Valid {
		return 0, shared.Errorf(shared.ErrAuthenticationFailed, "invalid token: %v", err)
	}
	claims := token.Claims.(*jwt.RegisteredClaims)
	userId, err := strconv.ParseInt(claims.ID, 10, 64)
	if err != nil {
		return 0, shared.Errorf(shared.ErrAuthenticationFailed, "token carries no user id")
	}
	return userId, nil
}
