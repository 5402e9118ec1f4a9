package test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"social_distance/dto"
	"social_distance/shared"
)

func TestRegister_CreatesUserAndBoundAuthor(t *testing.T) {

	h := newHarness(t)
	author, err := h.accounts.Register(&dto.RegisterRequest{
		Username:    "alice",
		Password:    "s3cret",
		DisplayName: "Alice",
		Github:      "https://github.com/alice",
	})
	assert.Nil(t, err)
	assert.True(t, author.IsInternal)
	assert.True(t, author.UserId.Valid)
	assert.Equal(t, "Alice", author.DisplayName)
	assert.Equal(t, "https://"+ownHost+"/author/"+author.Id+"/", author.Url)

	bound, err := h.repo.GetAuthorByUserId(author.UserId.Int64)
	assert.Nil(t, err)
	assert.Equal(t, author.Id, bound.Id)
}

func TestRegister_DisplayNameDefaultsToUsername(t *testing.T) {

	h := newHarness(t)
	author, err := h.accounts.Register(&dto.RegisterRequest{Username: "alice", Password: "s3cret"})
	assert.Nil(t, err)
	assert.Equal(t, "alice", author.DisplayName)
}

func TestRegister_DuplicateUsernameConflicts(t *testing.T) {

	h := newHarness(t)
	_, err := h.accounts.Register(&dto.RegisterRequest{Username: "alice", Password: "s3cret"})
	assert.Nil(t, err)
	_, err = h.accounts.Register(&dto.RegisterRequest{Username: "alice", Password: "other"})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestRegister_RequiresCredentials(t *testing.T) {

	h := newHarness(t)
	_, err := h.accounts.Register(&dto.RegisterRequest{Username: "alice"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = h.accounts.Register(&dto.RegisterRequest{Password: "s3cret"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestLogin_RoundTripsUserId(t *testing.T) {

	h := newHarness(t)
	author, err := h.accounts.Register(&dto.RegisterRequest{Username: "alice", Password: "s3cret"})
	assert.Nil(t, err)

	token, err := h.accounts.Login(&dto.LoginRequest{Username: "alice", Password: "s3cret"})
	assert.Nil(t, err)
	assert.NotEmpty(t, token)

	userId, err := h.accounts.VerifyToken(token)
	assert.Nil(t, err)
	assert.Equal(t, author.UserId.Int64, userId)
}

func TestLogin_RejectsBadCredentials(t *testing.T) {

	h := newHarness(t)
	_, err := h.accounts.Register(&dto.RegisterRequest{Username: "alice", Password: "s3cret"})
	assert.Nil(t, err)

	_, err = h.accounts.Login(&dto.LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)
	_, err = h.accounts.Login(&dto.LoginRequest{Username: "nobody", Password: "s3cret"})
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)
}

func TestVerifyToken_RejectsGarbageAndForeignKey(t *testing.T) {

	h := newHarness(t)
	_, err := h.accounts.VerifyToken("not-a-token")
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)

	_, err = h.accounts.Register(&dto.RegisterRequest{Username: "alice", Password: "s3cret"})
	assert.Nil(t, err)
	token, err := h.accounts.Login(&dto.LoginRequest{Username: "alice", Password: "s3cret"})
	assert.Nil(t, err)

	// A token signed under a different key must not verify
	h.cfg.Secrets.TokenSigningKey = "rotated-away"
	_, err = h.accounts.VerifyToken(token)
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)
}
