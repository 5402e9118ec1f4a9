package test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"social_distance/dal"
	"social_distance/dto"
	"social_distance/shared"
)

func TestCreatePost_FillsDefaultsAndWireShape(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")

	wire, err := h.posts.CreatePost(alice.Id, 1, &dto.Post{
		Title:   "First",
		Content: "Hello world",
	})
	assert.Nil(t, err)
	assert.Equal(t, dal.KindPost, wire.Type)
	assert.Equal(t, dal.VisibilityPublic, wire.Visibility)
	assert.Equal(t, "text/markdown", wire.ContentType)
	assert.Equal(t, alice.Url, wire.Author.Id)
	assert.Contains(t, wire.Id, "/author/"+alice.Id+"/posts/")
}

func TestCreatePost_SanitizesContent(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")

	wire, err := h.posts.CreatePost(alice.Id, 1, &dto.Post{
		Title:   "Scripted",
		Content: `Hi <script>alert("x")</script>there`,
	})
	assert.Nil(t, err)
	assert.NotContains(t, wire.Content, "<script>")
	assert.Contains(t, wire.Content, "Hi")
}

func TestCreatePost_RequiresOwner(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")

	_, err := h.posts.CreatePost(alice.Id, 0, &dto.Post{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)
	_, err = h.posts.CreatePost(alice.Id, 2, &dto.Post{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	_, err = h.posts.CreatePost(alice.Id, 1, &dto.Post{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreatePostWithId_CollisionConflicts(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")

	_, err := h.posts.CreatePostWithId(alice.Id, "chosen-id", 1, &dto.Post{Title: "First", Content: "a"})
	assert.Nil(t, err)
	_, err = h.posts.CreatePostWithId(alice.Id, "chosen-id", 1, &dto.Post{Title: "Second", Content: "b"})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpdatePost(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	_, err := h.posts.CreatePostWithId(alice.Id, "p1", 1, &dto.Post{Title: "Before", Content: "a"})
	assert.Nil(t, err)

	wire, err := h.posts.UpdatePost(alice.Id, "p1", 1, &dto.Post{
		Title: "After", Content: "b", Visibility: dal.VisibilityFriends,
	})
	assert.Nil(t, err)
	assert.Equal(t, "After", wire.Title)
	assert.Equal(t, dal.VisibilityFriends, wire.Visibility)

	_, err = h.posts.UpdatePost(alice.Id, "missing", 1, &dto.Post{Title: "x"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeletePost(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	_, err := h.posts.CreatePostWithId(alice.Id, "p1", 1, &dto.Post{Title: "T", Content: "c"})
	assert.Nil(t, err)

	err = h.posts.DeletePost(alice.Id, "p1", 2)
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)

	err = h.posts.DeletePost(alice.Id, "p1", 1)
	assert.Nil(t, err)
	_, err = h.posts.GetPost(alice.Id, "p1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetPost_PrivateStillServed(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	_, err := h.posts.CreatePostWithId(alice.Id, "p1", 1, &dto.Post{
		Title: "Secret", Content: "c", Visibility: dal.VisibilityPrivate,
	})
	assert.Nil(t, err)

	wire, err := h.posts.GetPost(alice.Id, "p1")
	assert.Nil(t, err)
	assert.Equal(t, "Secret", wire.Title)
}

func TestGetPostsPage(t *testing.T) {

	h := newHarness(t)
	h.cfg.PageSize = 2
	alice := h.addInternalAuthor(t, 1, "Alice")
	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := h.posts.CreatePostWithId(alice.Id, id, 1, &dto.Post{Title: id, Content: "c"})
		assert.Nil(t, err)
	}

	posts, total, err := h.posts.GetPostsPage(alice.Id, 1)
	assert.Nil(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, len(posts))
	posts, _, err = h.posts.GetPostsPage(alice.Id, 2)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(posts))
}

func TestAddComment_LocalAndForeign(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	carol := h.addInternalAuthor(t, 2, "Carol")
	_, err := h.posts.CreatePostWithId(alice.Id, "p1", 1, &dto.Post{Title: "T", Content: "c"})
	assert.Nil(t, err)

	// A logged-in local author comments without an embedded author payload
	comment, err := h.posts.AddComment(alice.Id, "p1", 2, &dto.Comment{Comment: "Nice one"})
	assert.Nil(t, err)
	assert.Equal(t, carol.Url, comment.Author.Id)

	// A federated caller embeds the commenter's identity instead
	bobUrl := "https://other.example.net/author/bob/"
	comment, err = h.posts.AddComment(alice.Id, "p1", 0, &dto.Comment{
		Comment: "Me too",
		Author:  &dto.Author{Type: dto.TypeAuthor, Id: bobUrl, Url: bobUrl, DisplayName: "Bob"},
	})
	assert.Nil(t, err)
	assert.Equal(t, bobUrl, comment.Author.Id)

	comments, total, err := h.posts.GetCommentsPage(alice.Id, "p1", 1)
	assert.Nil(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, len(comments))

	// Without a login or an embedded author there is nobody to attribute
	_, err = h.posts.AddComment(alice.Id, "p1", 0, &dto.Comment{Comment: "anon"})
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)
}

func TestAddComment_CountShowsUpOnPost(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	_, err := h.posts.CreatePostWithId(alice.Id, "p1", 1, &dto.Post{Title: "T", Content: "c"})
	assert.Nil(t, err)
	_, err = h.posts.AddComment(alice.Id, "p1", 1, &dto.Comment{Comment: "First!"})
	assert.Nil(t, err)

	wire, err := h.posts.GetPost(alice.Id, "p1")
	assert.Nil(t, err)
	assert.Equal(t, 1, wire.Count)
}

func TestLikeObject_IdempotentAndNotifiesOwner(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	carol := h.addInternalAuthor(t, 2, "Carol")
	post, err := h.posts.CreatePostWithId(alice.Id, "p1", 1, &dto.Post{Title: "T", Content: "c"})
	assert.Nil(t, err)

	like, err := h.posts.LikeObject(2, post.Id)
	assert.Nil(t, err)
	assert.Equal(t, dal.KindLike, like.Type)
	assert.Equal(t, carol.Url, like.Author.Id)

	// The post's author gets a like envelope; liking again adds nothing
	assert.Equal(t, 1, inboxCountOf(t, h, alice.Id))
	_, err = h.posts.LikeObject(2, post.Id)
	assert.Nil(t, err)
	assert.Equal(t, 1, inboxCountOf(t, h, alice.Id))

	likes, err := h.posts.GetLikesForObject(post.Id)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(likes))

	likes, err = h.posts.GetLikesByAuthor(carol.Id)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(likes))
}
