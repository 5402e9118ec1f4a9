package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"social_distance/dto"
	"social_distance/shared"
)

func TestResolveNode_MatchesStructurally(t *testing.T) {

	h := newHarness(t)
	node := h.registerNode(t, "https://friendly.example.org")

	resolved, err := h.nodes.ResolveNode("https://friendly.example.org/author/someone/")
	assert.Nil(t, err)
	assert.Equal(t, node.Id, resolved.Id)

	// Trailing slash on the registered host url must not matter
	resolved, err = h.nodes.ResolveNode("https://friendly.example.org")
	assert.Nil(t, err)
	assert.Equal(t, node.Id, resolved.Id)
}

func TestResolveNode_RejectsSubstringLookalikes(t *testing.T) {

	h := newHarness(t)
	h.registerNode(t, "https://friendly.example.org")

	// Host is a superstring of the registered one; containment would match it
	_, err := h.nodes.ResolveNode("https://friendly.example.org.evil.net/author/mallory/")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.nodes.ResolveNode("https://sub.friendly.example.org/author/bob/")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolveNode_ErrorCases(t *testing.T) {

	h := newHarness(t)
	_, err := h.nodes.ResolveNode("https://nowhere.example.org/author/bob/")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.nodes.ResolveNode("not a url")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestInboxAndHost(t *testing.T) {

	h := newHarness(t)
	inboxUrl, hostUrl, canonical, err := h.nodes.InboxAndHost("https://friendly.example.org/author/bob")
	assert.Nil(t, err)
	assert.Equal(t, "https://friendly.example.org/", hostUrl)
	assert.Equal(t, "https://friendly.example.org/author/bob/", canonical)
	assert.Equal(t, "https://friendly.example.org/author/bob/inbox/", inboxUrl)

	_, _, _, err = h.nodes.InboxAndHost("https://friendly.example.org/not-an-author")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRetrieveAuthor_PlainFetch(t *testing.T) {

	h := newHarness(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dto.Author{
			Type: dto.TypeAuthor, Id: "u", Url: "u", DisplayName: "Bob",
		})
	}))
	defer srv.Close()

	author, err := h.nodes.RetrieveAuthor(srv.URL + "/author/bob/")
	assert.Nil(t, err)
	assert.Equal(t, "Bob", author.DisplayName)
}

func TestRetrieveAuthor_RetriesWithNodeAuth(t *testing.T) {

	h := newHarness(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(401)
			return
		}
		json.NewEncoder(w).Encode(dto.Author{
			Type: dto.TypeAuthor, Id: "u", Url: "u", DisplayName: "Bob",
		})
	}))
	defer srv.Close()
	h.registerNode(t, srv.URL)

	author, err := h.nodes.RetrieveAuthor(srv.URL + "/author/bob/")
	assert.Nil(t, err)
	assert.Equal(t, "Bob", author.DisplayName)
}

func TestRetrieveAuthor_FailsWithoutNode(t *testing.T) {

	h := newHarness(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(403)
	}))
	defer srv.Close()

	_, err := h.nodes.RetrieveAuthor(srv.URL + "/author/bob/")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetNode(t *testing.T) {

	h := newHarness(t)
	node := h.registerNode(t, "https://friendly.example.org")

	got, err := h.nodes.GetNode(node.Id)
	assert.Nil(t, err)
	assert.Equal(t, "https://friendly.example.org", got.HostUrl)

	_, err = h.nodes.GetNode(node.Id + 100)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpsertNode_SameHostUpdatesInPlace(t *testing.T) {

	h := newHarness(t)
	first := h.registerNode(t, "https://friendly.example.org")
	second := h.registerNode(t, "https://friendly.example.org")
	assert.Equal(t, first.Id, second.Id)

	nodes, err := h.nodes.ListNodes()
	assert.Nil(t, err)
	assert.Equal(t, 1, len(nodes))
}

func TestProxyAuthors(t *testing.T) {

	h := newHarness(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/authors/" {
			w.WriteHeader(404)
			return
		}
		if user, _, _ := r.BasicAuth(); user != "us" {
			w.WriteHeader(401)
			return
		}
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("size") != "5" {
			w.WriteHeader(400)
			return
		}
		w.Write([]byte(`{"type":"authors","items":[]}`))
	}))
	defer srv.Close()
	node := h.registerNode(t, srv.URL)

	status, body, err := h.nodes.ProxyAuthors(node.Id, 2, 5)
	assert.Nil(t, err)
	assert.Equal(t, 200, status)
	assert.Contains(t, string(body), `"authors"`)

	// Wrong page: the remote's status comes through untouched
	status, _, err = h.nodes.ProxyAuthors(node.Id, 7, 5)
	assert.Nil(t, err)
	assert.Equal(t, 400, status)

	_, _, err = h.nodes.ProxyAuthors(node.Id+100, 1, 5)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAuthenticateCaller(t *testing.T) {

	h := newHarness(t)
	first := h.registerNode(t, "https://friendly.example.org")

	node, err := h.nodes.AuthenticateCaller("peer-caller", "peer-secret")
	assert.Nil(t, err)
	assert.Equal(t, first.Id, node.Id)

	_, err = h.nodes.AuthenticateCaller("peer-caller", "wrong")
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)
	_, err = h.nodes.AuthenticateCaller("nobody", "peer-secret")
	assert.ErrorIs(t, err, shared.ErrAuthenticationFailed)
}
