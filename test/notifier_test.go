package test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"social_distance/dal"
	"social_distance/shared"
)

func (h *harness) addLocalPost(t *testing.T, author *dal.Author, visibility string, unlisted bool) *dal.Post {
	t.Helper()
	id := uuid.NewString()
	urls := shared.UrlBuilder{Host: h.cfg.Host}
	post := &dal.Post{
		Id:          id,
		Url:         urls.PostUrl(author.Id, id),
		AuthorId:    author.Id,
		Title:       "A post",
		ContentType: "text/plain",
		Content:     "Content",
		Published:   time.Now().UTC(),
		Visibility:  visibility,
		Unlisted:    unlisted,
	}
	if err := h.repo.AddPost(post); err != nil {
		t.Fatalf("failed to add post: %v", err)
	}
	return post
}

func inboxCountOf(t *testing.T, h *harness, authorId string) int {
	t.Helper()
	_, total, err := h.repo.GetInboxObjectsPage(authorId, 0, 100)
	assert.Nil(t, err)
	return total
}

func TestResolveTargets_PublicReachesAcceptedFollowers(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	carol := h.addInternalAuthor(t, 2, "Carol")
	dave := h.addInternalAuthor(t, 3, "Dave")
	h.addFollow(t, alice.Id, carol.Id, dal.FollowAccepted)
	h.addFollow(t, alice.Id, dave.Id, dal.FollowPending)

	post := h.addLocalPost(t, alice, dal.VisibilityPublic, false)
	targets, err := h.notifier.ResolveTargets(post)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(targets))
	assert.Equal(t, carol.Id, targets[0].Id)
}

func TestResolveTargets_FriendsNeedsMutualAcceptedEdges(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	carol := h.addInternalAuthor(t, 2, "Carol")
	dave := h.addInternalAuthor(t, 3, "Dave")
	// Carol and Alice follow each other; Dave only follows Alice
	h.addFollow(t, alice.Id, carol.Id, dal.FollowAccepted)
	h.addFollow(t, carol.Id, alice.Id, dal.FollowAccepted)
	h.addFollow(t, alice.Id, dave.Id, dal.FollowAccepted)

	post := h.addLocalPost(t, alice, dal.VisibilityFriends, false)
	targets, err := h.notifier.ResolveTargets(post)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(targets))
	assert.Equal(t, carol.Id, targets[0].Id)
}

func TestResolveTargets_PrivateAndUnlistedReachNobody(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	carol := h.addInternalAuthor(t, 2, "Carol")
	h.addFollow(t, alice.Id, carol.Id, dal.FollowAccepted)

	private := h.addLocalPost(t, alice, dal.VisibilityPrivate, false)
	targets, err := h.notifier.ResolveTargets(private)
	assert.Nil(t, err)
	assert.Empty(t, targets)

	unlisted := h.addLocalPost(t, alice, dal.VisibilityPublic, true)
	targets, err = h.notifier.ResolveTargets(unlisted)
	assert.Nil(t, err)
	assert.Empty(t, targets)

	// Not pushed, but still fetchable directly
	stored, err := h.repo.GetPost(private.Id)
	assert.Nil(t, err)
	assert.NotNil(t, stored)
}

func TestNotifyPost_ShortCircuitsToLocalInboxes(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	carol := h.addInternalAuthor(t, 2, "Carol")
	dave := h.addInternalAuthor(t, 3, "Dave")
	h.addFollow(t, alice.Id, carol.Id, dal.FollowAccepted)
	h.addFollow(t, alice.Id, dave.Id, dal.FollowAccepted)

	post := h.addLocalPost(t, alice, dal.VisibilityPublic, false)
	h.notifier.NotifyPost(post)

	assert.Equal(t, 1, inboxCountOf(t, h, carol.Id))
	assert.Equal(t, 1, inboxCountOf(t, h, dave.Id))
	assert.Equal(t, 0, inboxCountOf(t, h, alice.Id))
}

func TestNotifyPost_PostsToRemoteInbox(t *testing.T) {

	h := newHarness(t)

	var mu sync.Mutex
	var gotPath, gotUser string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	alice := h.addInternalAuthor(t, 1, "Alice")
	bob := h.addExternalAuthor(t, srv.URL+"/author/bob/", "Bob")
	h.addFollow(t, alice.Id, bob.Id, dal.FollowAccepted)
	h.registerNode(t, srv.URL)

	post := h.addLocalPost(t, alice, dal.VisibilityPublic, false)
	h.notifier.NotifyPost(post)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/author/bob/inbox/", gotPath)
	assert.Equal(t, "us", gotUser)
	var wire struct {
		Type  string `json:"type"`
		Title string `json:"title"`
	}
	assert.Nil(t, json.Unmarshal(gotBody, &wire))
	assert.Equal(t, dal.KindPost, wire.Type)
	assert.Equal(t, "A post", wire.Title)
}

func TestNotifyPost_RemoteFailureIsSwallowed(t *testing.T) {

	h := newHarness(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	alice := h.addInternalAuthor(t, 1, "Alice")
	carol := h.addInternalAuthor(t, 2, "Carol")
	bob := h.addExternalAuthor(t, srv.URL+"/author/bob/", "Bob")
	h.addFollow(t, alice.Id, bob.Id, dal.FollowAccepted)
	h.addFollow(t, alice.Id, carol.Id, dal.FollowAccepted)
	h.registerNode(t, srv.URL)

	// Must not panic or abort; the local target still gets its copy
	post := h.addLocalPost(t, alice, dal.VisibilityPublic, false)
	h.notifier.NotifyPost(post)
	assert.Equal(t, 1, inboxCountOf(t, h, carol.Id))
}

func TestNotifyPost_UnknownNodeIsSwallowed(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	bob := h.addExternalAuthor(t, "https://unregistered.example.net/author/bob/", "Bob")
	h.addFollow(t, alice.Id, bob.Id, dal.FollowAccepted)

	post := h.addLocalPost(t, alice, dal.VisibilityPublic, false)
	h.notifier.NotifyPost(post)
	assert.Equal(t, 0, inboxCountOf(t, h, bob.Id))
}

func TestDeleteFollower_IssuesRemoteDelete(t *testing.T) {

	h := newHarness(t)
	var mu sync.Mutex
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(204)
	}))
	defer srv.Close()
	h.registerNode(t, srv.URL)

	ourUrl := "https://" + ownHost + "/author/alice/"
	h.notifier.DeleteFollower(srv.URL+"/author/bob/", ourUrl)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "DELETE", gotMethod)
	assert.Equal(t, "/author/bob/followers/"+ourUrl, gotPath)
}
