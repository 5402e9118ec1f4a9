package logic

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"social_distance/dal"
	"social_distance/dto"
	"social_distance/shared"
)

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_identity.go -package mocks social_distance/logic IIdentityResolver

type IIdentityResolver interface {
	UpsertAuthor(payload *dto.Author) (*dal.Author, error)
	CreateInternalAuthor(userId int64, displayName, github string) (*dal.Author, error)
	UpdateProfile(authorId string, upd *dto.ProfileUpdate) (*dal.Author, error)
	GetAuthor(idOrUrl string) (*dal.Author, error)
	GetInternalAuthorsPage(page int) ([]*dal.Author, int, error)
}

type identityResolver struct {
	cfg    *shared.Config
	logger shared.ILogger
	repo   dal.IRepo
	urls   shared.UrlBuilder
}

func NewIdentityResolver(cfg *shared.Config, logger shared.ILogger, repo dal.IRepo) IIdentityResolver {
	return &identityResolver{
		cfg:    cfg,
		logger: logger,
		repo:   repo,
		urls:   shared.UrlBuilder{Host: cfg.Host},
	}
}

// UpsertAuthor finds-or-creates the author a federation payload refers to.
// An existing record keeps its id, url, host and internal flag; only the
// profile fields are refreshed. A record created here is always external.
func (ir *identityResolver) UpsertAuthor(payload *dto.Author) (*dal.Author, error) {

	if payload == nil || (payload.Id == "" && payload.Url == "") {
		return nil, shared.Errorf(shared.ErrValidation, "author payload carries neither id nor url")
	}
	url := payload.Url
	if url == "" {
		// On the wire the id slot carries the profile URL
		url = payload.Id
	}

	matches, err := ir.repo.FindAuthors(payload.Id, url)
	if err != nil {
		return nil, err
	}
	if len(matches) > 1 {
		return nil, shared.Errorf(shared.ErrAmbiguousState,
			"%d author records match id '%s' / url '%s'", len(matches), payload.Id, url)
	}

	if len(matches) == 1 {
		author := matches[0]
		author.DisplayName = payload.DisplayName
		author.GithubUrl = payload.Github
		author.ProfileImage = payload.ProfileImage
		if err = ir.repo.UpdateAuthorProfile(author); err != nil {
			return nil, err
		}
		return author, nil
	}

	host := payload.Host
	if host == "" {
		if host, err = shared.NormalizeHostUrl(url); err != nil {
			return nil, err
		}
	}
	author := &dal.Author{
		Id:           url,
		IsInternal:   false,
		DisplayName:  payload.DisplayName,
		GithubUrl:    payload.Github,
		ProfileImage: payload.ProfileImage,
		Url:          url,
		Host:         host,
		CreatedAt:    time.Now().UTC(),
	}
	err = ir.repo.AddAuthor(author)
	if err != nil {
		// Lost a concurrent get-or-create race; the row is there now
		if errors.Is(err, shared.ErrConflict) {
			return ir.repo.GetAuthorByUrl(url)
		}
		return nil, err
	}
	return author, nil
}

func (ir *identityResolver) CreateInternalAuthor(userId int64, displayName, github string) (*dal.Author, error) {

	id := uuid.NewString()
	author := &dal.Author{
		Id:          id,
		UserId:      sql.NullInt64{Int64: userId, Valid: true},
		IsInternal:  true,
		DisplayName: displayName,
		GithubUrl:   github,
		Url:         ir.urls.AuthorUrl(id),
		Host:        ir.urls.SiteUrl(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := ir.repo.AddAuthor(author); err != nil {
		return nil, err
	}
	return author, nil
}

func (ir *identityResolver) UpdateProfile(authorId string, upd *dto.ProfileUpdate) (*dal.Author, error) {
	author, err := ir.GetAuthor(authorId)
	if err != nil {
		return nil, err
	}
	author.DisplayName = upd.DisplayName
	author.GithubUrl = upd.Github
	author.ProfileImage = upd.ProfileImage
	if err = ir.repo.UpdateAuthorProfile(author); err != nil {
		return nil, err
	}
	return author, nil
}

// canonicalAuthorUrl restores the trailing slash a profile URL loses on its
// way through path routing. Anything that doesn't parse as an author URL
// passes through unchanged.
func canonicalAuthorUrl(authorUrl string) string {
	hostUrl, authorId, err := shared.ParseAuthorUrl(authorUrl)
	if err != nil {
		return authorUrl
	}
	return hostUrl + "author/" + authorId + "/"
}

// GetAuthor resolves by internal id or by full profile URL; path parameters
// may carry either.
func (ir *identityResolver) GetAuthor(idOrUrl string) (*dal.Author, error) {
	author, err := ir.repo.GetAuthor(idOrUrl)
	if err != nil {
		return nil, err
	}
	if author == nil {
		if author, err = ir.repo.GetAuthorByUrl(idOrUrl); err != nil {
			return nil, err
		}
	}
	if author == nil {
		if canonical := canonicalAuthorUrl(idOrUrl); canonical != idOrUrl {
			if author, err = ir.repo.GetAuthorByUrl(canonical); err != nil {
				return nil, err
			}
		}
	}
	if author == nil {
		return nil, shared.Errorf(shared.ErrNotFound, "author '%s' does not exist", idOrUrl)
	}
	return author, nil
}

func (ir *identityResolver) GetInternalAuthorsPage(page int) ([]*dal.Author, int, error) {
	if page < 1 {
		page = 1
	}
	limit := ir.cfg.PageSize
	return ir.repo.GetInternalAuthorsPage((page-1)*limit, limit)
}
