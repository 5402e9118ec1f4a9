package test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"social_distance/dal"
	"social_distance/dto"
	"social_distance/shared"
)

// A primary-key collision must surface as a conflict, same as a unique
// index violation; the upsert's get-or-create race recovery depends on it.
func TestAddAuthor_DuplicateIdConflicts(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")

	err := h.repo.AddAuthor(&dal.Author{
		Id:          alice.Id,
		DisplayName: "Impostor",
		Url:         "https://other.example.net/author/impostor/",
		Host:        "https://other.example.net/",
		CreatedAt:   time.Now().UTC(),
	})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpsertAuthor_CreatesExternalOnce(t *testing.T) {

	h := newHarness(t)
	bobUrl := "https://other.example.net/author/bob/"

	first, err := h.identity.UpsertAuthor(&dto.Author{
		Type: dto.TypeAuthor, Id: bobUrl, Url: bobUrl, DisplayName: "Bob",
	})
	assert.Nil(t, err)
	assert.False(t, first.IsInternal)
	assert.Equal(t, bobUrl, first.Id)
	assert.Equal(t, "https://other.example.net/", first.Host)

	second, err := h.identity.UpsertAuthor(&dto.Author{
		Type: dto.TypeAuthor, Id: bobUrl, Url: bobUrl, DisplayName: "Robert",
	})
	assert.Nil(t, err)
	assert.Equal(t, first.Id, second.Id)

	// One row, carrying the latest profile
	stored, err := h.repo.GetAuthorByUrl(bobUrl)
	assert.Nil(t, err)
	assert.Equal(t, "Robert", stored.DisplayName)
	authors, err := h.repo.FindAuthors(bobUrl, bobUrl)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(authors))
}

func TestUpsertAuthor_IdSlotCarriesUrl(t *testing.T) {

	h := newHarness(t)
	bobUrl := "https://other.example.net/author/bob/"

	author, err := h.identity.UpsertAuthor(&dto.Author{
		Type: dto.TypeAuthor, Id: bobUrl, DisplayName: "Bob",
	})
	assert.Nil(t, err)
	assert.Equal(t, bobUrl, author.Url)
}

func TestUpsertAuthor_KeepsInternalIdentityFields(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")

	updated, err := h.identity.UpsertAuthor(&dto.Author{
		Type: dto.TypeAuthor, Id: alice.Url, Url: alice.Url,
		DisplayName: "Alice Renamed", Github: "https://github.com/alice",
	})
	assert.Nil(t, err)
	assert.Equal(t, alice.Id, updated.Id)
	assert.True(t, updated.IsInternal)
	assert.Equal(t, "Alice Renamed", updated.DisplayName)
}

func TestUpsertAuthor_RejectsEmptyPayload(t *testing.T) {

	h := newHarness(t)
	_, err := h.identity.UpsertAuthor(&dto.Author{Type: dto.TypeAuthor, DisplayName: "No Name"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = h.identity.UpsertAuthor(nil)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestGetAuthor_ByIdAndByUrl(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")

	byId, err := h.identity.GetAuthor(alice.Id)
	assert.Nil(t, err)
	assert.Equal(t, alice.Url, byId.Url)

	byUrl, err := h.identity.GetAuthor(alice.Url)
	assert.Nil(t, err)
	assert.Equal(t, alice.Id, byUrl.Id)

	_, err = h.identity.GetAuthor("no-such-author")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")

	updated, err := h.identity.UpdateProfile(alice.Id, &dto.ProfileUpdate{
		DisplayName:  "Alice B.",
		Github:       "https://github.com/aliceb",
		ProfileImage: "https://distance.example.com/img/alice.png",
	})
	assert.Nil(t, err)
	assert.Equal(t, "Alice B.", updated.DisplayName)

	stored, err := h.repo.GetAuthor(alice.Id)
	assert.Nil(t, err)
	assert.Equal(t, "https://github.com/aliceb", stored.GithubUrl)
}

func TestGetInternalAuthorsPage_ExcludesExternal(t *testing.T) {

	h := newHarness(t)
	h.cfg.PageSize = 3
	for i := 0; i < 4; i++ {
		h.addInternalAuthor(t, int64(i+1), fmt.Sprintf("Local %d", i))
	}
	h.addExternalAuthor(t, "https://other.example.net/author/bob/", "Bob")

	authors, total, err := h.identity.GetInternalAuthorsPage(1)
	assert.Nil(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, 3, len(authors))
	for _, a := range authors {
		assert.True(t, a.IsInternal)
	}

	authors, _, err = h.identity.GetInternalAuthorsPage(2)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(authors))
}
