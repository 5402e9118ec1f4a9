package logic

import (
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/spaolacci/murmur3"

	"social_distance/dal"
	"social_distance/dto"
	"social_distance/shared"
)

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_posts.go -package mocks social_distance/logic IPostService

type IPostService interface {
	CreatePost(authorIdOrUrl string, requesterUserId int64, wire *dto.Post) (*dto.Post, error)
	CreatePostWithId(authorIdOrUrl, postId string, requesterUserId int64, wire *dto.Post) (*dto.Post, error)
	UpdatePost(authorIdOrUrl, postId string, requesterUserId int64, wire *dto.Post) (*dto.Post, error)
	DeletePost(authorIdOrUrl, postId string, requesterUserId int64) error
	GetPost(authorIdOrUrl, postId string) (*dto.Post, error)
	GetPostsPage(authorIdOrUrl string, page int) ([]*dto.Post, int, error)
	AddComment(authorIdOrUrl, postId string, requesterUserId int64, wire *dto.Comment) (*dto.Comment, error)
	GetCommentsPage(authorIdOrUrl, postId string, page int) ([]*dto.Comment, int, error)
	LikeObject(requesterUserId int64, objectUrl string) (*dto.Like, error)
	GetLikesForObject(objectUrl string) ([]*dto.Like, error)
	GetLikesByAuthor(authorIdOrUrl string) ([]*dto.Like, error)
}

type postService struct {
	cfg       *shared.Config
	logger    shared.ILogger
	repo      dal.IRepo
	identity  IIdentityResolver
	adapters  IContentAdapters
	notifier  INotifier
	sanitizer *bluemonday.Policy
	urls      shared.UrlBuilder
}

func NewPostService(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	identity IIdentityResolver,
	adapters IContentAdapters,
	notifier INotifier,
) IPostService {
	return &postService{
		cfg:       cfg,
		logger:    logger,
		repo:      repo,
		identity:  identity,
		adapters:  adapters,
		notifier:  notifier,
		sanitizer: bluemonday.UGCPolicy(),
		urls:      shared.UrlBuilder{Host: cfg.Host},
	}
}

func (ps *postService) ownedAuthor(authorIdOrUrl string, requesterUserId int64) (*dal.Author, error) {
	author, err := ps.identity.GetAuthor(authorIdOrUrl)
	if err != nil {
		return nil, err
	}
	if requesterUserId == 0 {
		return nil, shared.Errorf(shared.ErrAuthenticationFailed, "writing requires a logged-in owner")
	}
	if !author.UserId.Valid || author.UserId.Int64 != requesterUserId {
		return nil, shared.Errorf(shared.ErrPermissionDenied, "author '%s' belongs to someone else", author.Id)
	}
	return author, nil
}

func (ps *postService) buildPost(author *dal.Author, postId string, wire *dto.Post) *dal.Post {
	visibility := wire.Visibility
	if visibility == "" {
		visibility = dal.VisibilityPublic
	}
	contentType := wire.ContentType
	if contentType == "" {
		contentType = "text/markdown"
	}
	url := ps.urls.PostUrl(author.Id, postId)
	return &dal.Post{
		Id:          postId,
		Url:         url,
		AuthorId:    author.Id,
		Title:       wire.Title,
		Source:      wire.Source,
		Origin:      url,
		Description: ps.sanitizer.Sanitize(wire.Description),
		ContentType: contentType,
		Content:     ps.sanitizer.Sanitize(wire.Content),
		Published:   time.Now().UTC(),
		Visibility:  visibility,
		Unlisted:    wire.Unlisted,
	}
}

func (ps *postService) CreatePost(authorIdOrUrl string, requesterUserId int64, wire *dto.Post) (*dto.Post, error) {
	return ps.CreatePostWithId(authorIdOrUrl, uuid.NewString(), requesterUserId, wire)
}

// CreatePostWithId is the PUT-create path; a colliding id is the caller's
// problem, not an upsert.
func (ps *postService) CreatePostWithId(authorIdOrUrl, postId string, requesterUserId int64, wire *dto.Post) (*dto.Post, error) {

	author, err := ps.ownedAuthor(authorIdOrUrl, requesterUserId)
	if err != nil {
		return nil, err
	}
	if wire.Title == "" && wire.Content == "" {
		return nil, shared.Errorf(shared.ErrValidation, "post needs a title or content")
	}

	post := ps.buildPost(author, postId, wire)
	if err = ps.repo.AddPost(post); err != nil {
		return nil, err
	}

	// The post is persisted; push failures must not surface to the caller
	ps.notifier.NotifyPost(post)

	return ps.adapters.WirePost(post)
}

func (ps *postService) UpdatePost(authorIdOrUrl, postId string, requesterUserId int64, wire *dto.Post) (*dto.Post, error) {

	author, err := ps.ownedAuthor(authorIdOrUrl, requesterUserId)
	if err != nil {
		return nil, err
	}
	post, err := ps.repo.GetPost(postId)
	if err != nil {
		return nil, err
	}
	if post == nil || post.AuthorId != author.Id {
		return nil, shared.Errorf(shared.ErrNotFound, "post %s does not exist", postId)
	}

	post.Title = wire.Title
	post.Source = wire.Source
	post.Description = ps.sanitizer.Sanitize(wire.Description)
	post.Content = ps.sanitizer.Sanitize(wire.Content)
	if wire.ContentType != "" {
		post.ContentType = wire.ContentType
	}
	if wire.Visibility != "" {
		post.Visibility = wire.Visibility
	}
	post.Unlisted = wire.Unlisted
	if err = ps.repo.UpdatePost(post); err != nil {
		return nil, err
	}
	return ps.adapters.WirePost(post)
}

func (ps *postService) DeletePost(authorIdOrUrl, postId string, requesterUserId int64) error {

	author, err := ps.ownedAuthor(authorIdOrUrl, requesterUserId)
	if err != nil {
		return err
	}
	post, err := ps.repo.GetPost(postId)
	if err != nil {
		return err
	}
	if post == nil || post.AuthorId != author.Id {
		return shared.Errorf(shared.ErrNotFound, "post %s does not exist", postId)
	}
	return ps.repo.DeletePost(postId)
}

// GetPost serves a post by its address. Even private posts answer a direct
// fetch; visibility only governs who gets a push.
func (ps *postService) GetPost(authorIdOrUrl, postId string) (*dto.Post, error) {
	author, err := ps.identity.GetAuthor(authorIdOrUrl)
	if err != nil {
		return nil, err
	}
	post, err := ps.repo.GetPost(postId)
	if err != nil {
		return nil, err
	}
	if post == nil || post.AuthorId != author.Id {
		return nil, shared.Errorf(shared.ErrNotFound, "post %s does not exist", postId)
	}
	return ps.adapters.WirePost(post)
}

func (ps *postService) GetPostsPage(authorIdOrUrl string, page int) ([]*dto.Post, int, error) {
	author, err := ps.identity.GetAuthor(authorIdOrUrl)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	limit := ps.cfg.PageSize
	posts, total, err := ps.repo.GetPostsByAuthorPage(author.Id, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, err
	}
	res := make([]*dto.Post, 0, len(posts))
	for _, p := range posts {
		wire, err := ps.adapters.WirePost(p)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, wire)
	}
	return res, total, nil
}

func (ps *postService) AddComment(authorIdOrUrl, postId string, requesterUserId int64, wire *dto.Comment) (*dto.Comment, error) {

	postAuthor, err := ps.identity.GetAuthor(authorIdOrUrl)
	if err != nil {
		return nil, err
	}
	post, err := ps.repo.GetPost(postId)
	if err != nil {
		return nil, err
	}
	if post == nil || post.AuthorId != postAuthor.Id {
		return nil, shared.Errorf(shared.ErrNotFound, "post %s does not exist", postId)
	}

	var commenter *dal.Author
	if wire.Author != nil {
		if commenter, err = ps.identity.UpsertAuthor(wire.Author); err != nil {
			return nil, err
		}
	} else {
		if requesterUserId == 0 {
			return nil, shared.Errorf(shared.ErrAuthenticationFailed, "commenting requires a logged-in owner")
		}
		if commenter, err = ps.repo.GetAuthorByUserId(requesterUserId); err != nil {
			return nil, err
		}
		if commenter == nil {
			return nil, shared.Errorf(shared.ErrNotFound, "no author is bound to this login")
		}
	}
	if wire.Comment == "" {
		return nil, shared.Errorf(shared.ErrValidation, "comment has no text")
	}

	contentType := wire.ContentType
	if contentType == "" {
		contentType = "text/markdown"
	}
	commentId := uuid.NewString()
	comment := &dal.Comment{
		Id:          commentId,
		Url:         ps.urls.CommentUrl(postAuthor.Id, postId, commentId),
		AuthorId:    commenter.Id,
		PostId:      postId,
		Comment:     ps.sanitizer.Sanitize(wire.Comment),
		ContentType: contentType,
		Published:   time.Now().UTC(),
	}
	if err = ps.repo.AddComment(comment); err != nil {
		return nil, err
	}
	return ps.adapters.WireComment(comment)
}

func (ps *postService) GetCommentsPage(authorIdOrUrl, postId string, page int) ([]*dto.Comment, int, error) {
	author, err := ps.identity.GetAuthor(authorIdOrUrl)
	if err != nil {
		return nil, 0, err
	}
	post, err := ps.repo.GetPost(postId)
	if err != nil {
		return nil, 0, err
	}
	if post == nil || post.AuthorId != author.Id {
		return nil, 0, shared.Errorf(shared.ErrNotFound, "post %s does not exist", postId)
	}
	if page < 1 {
		page = 1
	}
	limit := ps.cfg.PageSize
	comments, total, err := ps.repo.GetCommentsByPostPage(postId, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, err
	}
	res := make([]*dto.Comment, 0, len(comments))
	for _, c := range comments {
		wire, err := ps.adapters.WireComment(c)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, wire)
	}
	return res, total, nil
}

// LikeObject records a like on a post or comment URL. Liking the same
// object twice is a no-op, not an error.
func (ps *postService) LikeObject(requesterUserId int64, objectUrl string) (*dto.Like, error) {

	if requesterUserId == 0 {
		return nil, shared.Errorf(shared.ErrAuthenticationFailed, "liking requires a logged-in owner")
	}
	liker, err := ps.repo.GetAuthorByUserId(requesterUserId)
	if err != nil {
		return nil, err
	}
	if liker == nil {
		return nil, shared.Errorf(shared.ErrNotFound, "no author is bound to this login")
	}
	if objectUrl == "" {
		return nil, shared.Errorf(shared.ErrValidation, "like has no object URL")
	}

	like := &dal.Like{
		Id:         uuid.NewString(),
		AuthorId:   liker.Id,
		Summary:    liker.DisplayName + " likes " + objectUrl,
		Object:     objectUrl,
		ObjectHash: int64(murmur3.Sum64([]byte(objectUrl))),
	}
	isNew, err := ps.repo.AddLikeIfNew(like)
	if err != nil {
		return nil, err
	}
	if isNew {
		if target := ps.likedAuthor(objectUrl); target != nil {
			ps.notifier.NotifyLike(like, target)
		}
	}
	return ps.adapters.WireLike(like)
}

// likedAuthor finds whose inbox a like on the given object URL belongs in.
func (ps *postService) likedAuthor(objectUrl string) *dal.Author {
	authorUrl, err := shared.AuthorUrlPrefix(objectUrl)
	if err != nil {
		ps.logger.Warnf("Cannot derive author from liked object %s", objectUrl)
		return nil
	}
	author, err := ps.repo.GetAuthorByUrl(authorUrl)
	if err != nil || author == nil {
		_, authorId, parseErr := shared.ParseAuthorUrl(authorUrl)
		if parseErr == nil {
			author, _ = ps.repo.GetAuthor(authorId)
		}
		if author == nil {
			ps.logger.Warnf("Author of liked object %s is not known here", objectUrl)
			return nil
		}
	}
	return author
}

func (ps *postService) GetLikesForObject(objectUrl string) ([]*dto.Like, error) {
	likes, err := ps.repo.GetLikesForObject(objectUrl)
	if err != nil {
		return nil, err
	}
	return ps.wireLikes(likes)
}

func (ps *postService) GetLikesByAuthor(authorIdOrUrl string) ([]*dto.Like, error) {
	author, err := ps.identity.GetAuthor(authorIdOrUrl)
	if err != nil {
		return nil, err
	}
	likes, err := ps.repo.GetLikesByAuthor(author.Id)
	if err != nil {
		return nil, err
	}
	return ps.wireLikes(likes)
}

func (ps *postService) wireLikes(likes []*dal.Like) ([]*dto.Like, error) {
	res := make([]*dto.Like, 0, len(likes))
	for _, l := range likes {
		wire, err := ps.adapters.WireLike(l)
		if err != nil {
			return nil, err
		}
		res = append(res, wire)
	}
	return res, nil
}
