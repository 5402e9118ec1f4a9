package logic

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/spaolacci/murmur3"

	"social_distance/dal"
	"social_distance/dto"
	"social_distance/shared"
	"social_distance/texts"
)

// IContentAdapters translates between the federation wire shapes and the
// stored records, in both directions. Ingestion upserts any embedded author
// sub-object first; no orphaned content is ever fabricated.
type IContentAdapters interface {
	IngestFollow(target *dal.Author, raw json.RawMessage) (contentId string, err error)
	IngestPost(raw json.RawMessage) (contentId string, err error)
	IngestLike(raw json.RawMessage) (contentId string, err error)
	RenderInboxItem(obj *dal.InboxObject) (json.RawMessage, error)
	WireAuthor(a *dal.Author) *dto.Author
	WireFollow(f *dal.Follow) (*dto.Follow, error)
	WirePost(p *dal.Post) (*dto.Post, error)
	WireLike(l *dal.Like) (*dto.Like, error)
	WireComment(c *dal.Comment) (*dto.Comment, error)
}

type contentAdapters struct {
	cfg       *shared.Config
	logger    shared.ILogger
	repo      dal.IRepo
	identity  IIdentityResolver
	txt       texts.ITexts
	sanitizer *bluemonday.Policy
	urls      shared.UrlBuilder
}

func NewContentAdapters(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	identity IIdentityResolver,
	txt texts.ITexts,
) IContentAdapters {
	return &contentAdapters{
		cfg:       cfg,
		logger:    logger,
		repo:      repo,
		identity:  identity,
		txt:       txt,
		sanitizer: bluemonday.UGCPolicy(),
		urls:      shared.UrlBuilder{Host: cfg.Host},
	}
}

// === Ingestion ==========================================================

// IngestFollow records an inbound follow request addressed to the target
// author. A pre-existing edge for the pair is reused; delivery of the same
// request twice must not create two edges.
func (ca *contentAdapters) IngestFollow(target *dal.Author, raw json.RawMessage) (string, error) {

	var wire dto.Follow
	if err := json.Unmarshal(raw, &wire); err != nil {
		return "", shared.Errorf(shared.ErrValidation, "cannot parse follow payload: %v", err)
	}
	if wire.Actor == nil {
		return "", shared.Errorf(shared.ErrValidation, "follow payload has no actor")
	}
	actor, err := ca.identity.UpsertAuthor(wire.Actor)
	if err != nil {
		return "", err
	}

	existing, err := ca.repo.GetFollow(target.Id, actor.Id)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.Id, nil
	}

	summary := wire.Summary
	if summary == "" {
		summary = ca.txt.WithVals("follow-summary.txt", map[string]string{
			"actor":  actor.DisplayName,
			"object": target.DisplayName,
		})
	}
	follow := &dal.Follow{
		Id:        uuid.NewString(),
		Summary:   summary,
		Status:    dal.FollowPending,
		ObjectId:  target.Id,
		ActorId:   actor.Id,
		CreatedAt: time.Now().UTC(),
	}
	if err = ca.repo.AddFollow(follow); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			// Concurrent delivery of the same request; fetch the winner
			if existing, err = ca.repo.GetFollow(target.Id, actor.Id); err != nil {
				return "", err
			}
			return existing.Id, nil
		}
		return "", err
	}
	return follow.Id, nil
}

func (ca *contentAdapters) IngestPost(raw json.RawMessage) (string, error) {

	var wire dto.Post
	if err := json.Unmarshal(raw, &wire); err != nil {
		return "", shared.Errorf(shared.ErrValidation, "cannot parse post payload: %v", err)
	}
	if wire.Author == nil {
		return "", shared.Errorf(shared.ErrValidation, "post payload has no author")
	}
	author, err := ca.identity.UpsertAuthor(wire.Author)
	if err != nil {
		return "", err
	}

	published := time.Now().UTC()
	if wire.Published != "" {
		if t, err := time.Parse(time.RFC3339, wire.Published); err == nil {
			published = t.UTC()
		}
	}
	id := wire.Id
	if id == "" {
		id = uuid.NewString()
	}
	post := &dal.Post{
		Id:          id,
		Url:         wire.Origin,
		AuthorId:    author.Id,
		Title:       wire.Title,
		Source:      wire.Source,
		Origin:      wire.Origin,
		Description: ca.sanitizer.Sanitize(wire.Description),
		ContentType: wire.ContentType,
		Content:     ca.sanitizer.Sanitize(wire.Content),
		Published:   published,
		Visibility:  wire.Visibility,
		Unlisted:    wire.Unlisted,
	}
	if post.Url == "" {
		post.Url = post.Id
	}
	if err = ca.repo.AddPost(post); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			// Same post delivered to more than one local inbox
			return post.Id, nil
		}
		return "", err
	}
	return post.Id, nil
}

func (ca *contentAdapters) IngestLike(raw json.RawMessage) (string, error) {

	var wire dto.Like
	if err := json.Unmarshal(raw, &wire); err != nil {
		return "", shared.Errorf(shared.ErrValidation, "cannot parse like payload: %v", err)
	}
	if wire.Author == nil {
		return "", shared.Errorf(shared.ErrValidation, "like payload has no author")
	}
	if wire.Object == "" {
		return "", shared.Errorf(shared.ErrValidation, "like payload has no object URL")
	}
	author, err := ca.identity.UpsertAuthor(wire.Author)
	if err != nil {
		return "", err
	}

	summary := wire.Summary
	if summary == "" {
		summary = ca.txt.WithVals("like-summary.txt", map[string]string{
			"author": author.DisplayName,
			"object": wire.Object,
		})
	}
	like := &dal.Like{
		Id:         uuid.NewString(),
		AuthorId:   author.Id,
		Summary:    summary,
		Object:     wire.Object,
		ObjectHash: int64(murmur3.Sum64([]byte(wire.Object))),
	}
	isNew, err := ca.repo.AddLikeIfNew(like)
	if err != nil {
		return "", err
	}
	if !isNew {
		existing, err := ca.findLike(author.Id, wire.Object)
		if err != nil {
			return "", err
		}
		return existing.Id, nil
	}
	return like.Id, nil
}

func (ca *contentAdapters) findLike(authorId, object string) (*dal.Like, error) {
	likes, err := ca.repo.GetLikesByAuthor(authorId)
	if err != nil {
		return nil, err
	}
	for _, l := range likes {
		if l.Object == object {
			return l, nil
		}
	}
	return nil, shared.Errorf(shared.ErrAmbiguousState,
		"like by %s on %s vanished after duplicate-key insert", authorId, object)
}

// === Rendering ==========================================================

// RenderInboxItem re-dispatches on the stored kind tag and serializes the
// wrapped content back into its wire shape.
func (ca *contentAdapters) RenderInboxItem(obj *dal.InboxObject) (json.RawMessage, error) {
	var wire any
	switch obj.Kind {
	case dal.KindFollow:
		follow, err := ca.repo.GetFollowById(obj.ContentId)
		if err != nil {
			return nil, err
		}
		if follow == nil {
			return nil, shared.Errorf(shared.ErrNotFound, "follow %s does not exist", obj.ContentId)
		}
		if wire, err = ca.WireFollow(follow); err != nil {
			return nil, err
		}
	case dal.KindPost:
		post, err := ca.repo.GetPost(obj.ContentId)
		if err != nil {
			return nil, err
		}
		if post == nil {
			return nil, shared.Errorf(shared.ErrNotFound, "post %s does not exist", obj.ContentId)
		}
		if wire, err = ca.WirePost(post); err != nil {
			return nil, err
		}
	case dal.KindLike:
		like, err := ca.repo.GetLike(obj.ContentId)
		if err != nil {
			return nil, err
		}
		if like == nil {
			return nil, shared.Errorf(shared.ErrNotFound, "like %s does not exist", obj.ContentId)
		}
		if wire, err = ca.WireLike(like); err != nil {
			return nil, err
		}
	default:
		return nil, shared.Errorf(shared.ErrAmbiguousState, "inbox object %s has unknown kind '%s'", obj.Id, obj.Kind)
	}
	return json.Marshal(wire)
}

func (ca *contentAdapters) WireAuthor(a *dal.Author) *dto.Author {
	if a == nil {
		return nil
	}
	return &dto.Author{
		Type:         dto.TypeAuthor,
		Id:           a.PublicId(),
		Host:         a.Host,
		DisplayName:  a.DisplayName,
		Url:          a.Url,
		Github:       a.GithubUrl,
		ProfileImage: a.ProfileImage,
	}
}

func (ca *contentAdapters) WireFollow(f *dal.Follow) (*dto.Follow, error) {
	object, err := ca.repo.GetAuthor(f.ObjectId)
	if err != nil {
		return nil, err
	}
	actor, err := ca.repo.GetAuthor(f.ActorId)
	if err != nil {
		return nil, err
	}
	if object == nil || actor == nil {
		return nil, shared.Errorf(shared.ErrAmbiguousState, "follow %s references a missing author", f.Id)
	}
	return &dto.Follow{
		Type:    dto.TypeFollow,
		Summary: f.Summary,
		Status:  f.Status,
		Actor:   ca.WireAuthor(actor),
		Object:  ca.WireAuthor(object),
	}, nil
}

func (ca *contentAdapters) WirePost(p *dal.Post) (*dto.Post, error) {
	author, err := ca.repo.GetAuthor(p.AuthorId)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, shared.Errorf(shared.ErrAmbiguousState, "post %s references a missing author", p.Id)
	}
	commentCount, err := ca.repo.CountComments(p.Id)
	if err != nil {
		return nil, err
	}
	return &dto.Post{
		Type:        dto.TypePost,
		Id:          p.Url,
		Title:       p.Title,
		Source:      p.Source,
		Origin:      p.Origin,
		Description: p.Description,
		ContentType: p.ContentType,
		Content:     p.Content,
		Author:      ca.WireAuthor(author),
		Count:       commentCount,
		Comments:    p.Url + "/comments",
		Published:   p.Published.UTC().Format(time.RFC3339),
		Visibility:  p.Visibility,
		Unlisted:    p.Unlisted,
	}, nil
}

func (ca *contentAdapters) WireLike(l *dal.Like) (*dto.Like, error) {
	author, err := ca.repo.GetAuthor(l.AuthorId)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, shared.Errorf(shared.ErrAmbiguousState, "like %s references a missing author", l.Id)
	}
	return &dto.Like{
		Type:    dto.TypeLike,
		Summary: l.Summary,
		Author:  ca.WireAuthor(author),
		Object:  l.Object,
	}, nil
}

func (ca *contentAdapters) WireComment(c *dal.Comment) (*dto.Comment, error) {
	author, err := ca.repo.GetAuthor(c.AuthorId)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, shared.Errorf(shared.ErrAmbiguousState, "comment %s references a missing author", c.Id)
	}
	return &dto.Comment{
		Type:        dto.TypeComment,
		Id:          c.Url,
		Author:      ca.WireAuthor(author),
		Comment:     c.Comment,
		ContentType: c.ContentType,
		Published:   c.Published.UTC().Format(time.RFC3339),
	}, nil
}
