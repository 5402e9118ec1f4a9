package test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"social_distance/dal"
	"social_distance/dto"
	"social_distance/shared"
)

func TestRequestFollow_CreatesPendingEdge(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	bob := h.addExternalAuthor(t, "https://other.example.net/author/bob/", "Bob")

	wire, err := h.follows.RequestFollow(alice.Id, bob.Url)
	assert.Nil(t, err)
	assert.Equal(t, dal.FollowPending, wire.Status)
	assert.Equal(t, alice.Url, wire.Actor.Id)
	assert.Equal(t, bob.Url, wire.Object.Id)

	stored, err := h.repo.GetFollow(bob.Id, alice.Id)
	assert.Nil(t, err)
	assert.NotNil(t, stored)
	assert.Equal(t, dal.FollowPending, stored.Status)
}

func TestRequestFollow_SecondRequestConflicts(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	bob := h.addExternalAuthor(t, "https://other.example.net/author/bob/", "Bob")

	_, err := h.follows.RequestFollow(alice.Id, bob.Url)
	assert.Nil(t, err)
	_, err = h.follows.RequestFollow(alice.Id, bob.Url)
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestRequestFollow_SelfFollowRejected(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")

	_, err := h.follows.RequestFollow(alice.Id, alice.Url)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestAcceptFollower_FlipsPendingToAccepted(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	bob := h.addExternalAuthor(t, "https://other.example.net/author/bob/", "Bob")
	h.addFollow(t, alice.Id, bob.Id, dal.FollowPending)

	wire, err := h.follows.AcceptFollower(alice.Id, bob.Url, nil)
	assert.Nil(t, err)
	assert.Equal(t, dal.FollowAccepted, wire.Status)

	stored, _ := h.repo.GetFollow(alice.Id, bob.Id)
	assert.Equal(t, dal.FollowAccepted, stored.Status)
}

func TestAcceptFollower_WithoutPriorRequestCreatesAccepted(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	bobUrl := "https://other.example.net/author/bob/"

	payload := &dto.Author{Type: dto.TypeAuthor, Id: bobUrl, Url: bobUrl, DisplayName: "Bob"}
	wire, err := h.follows.AcceptFollower(alice.Id, bobUrl, payload)
	assert.Nil(t, err)
	assert.Equal(t, dal.FollowAccepted, wire.Status)

	// The follower's profile got upserted on the way
	bob, err := h.repo.GetAuthorByUrl(bobUrl)
	assert.Nil(t, err)
	assert.NotNil(t, bob)
	assert.False(t, bob.IsInternal)
}

func TestAcceptFollower_DuplicateAcceptIsNoOp(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	bobUrl := "https://other.example.net/author/bob/"
	payload := &dto.Author{Type: dto.TypeAuthor, Id: bobUrl, Url: bobUrl, DisplayName: "Bob"}

	_, err := h.follows.AcceptFollower(alice.Id, bobUrl, payload)
	assert.Nil(t, err)
	wire, err := h.follows.AcceptFollower(alice.Id, bobUrl, payload)
	assert.Nil(t, err)
	assert.Equal(t, dal.FollowAccepted, wire.Status)

	followers, err := h.repo.GetFollowerAuthors(alice.Id, true)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(followers))
}

// Peer nodes probe this check to decide whether their pending request got
// approved; answering 200 for a pending edge would have their reconcilers
// promote an unapproved follow.
func TestIsFollower_PendingAnswersNotFound(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	bob := h.addExternalAuthor(t, "https://other.example.net/author/bob/", "Bob")
	h.addFollow(t, alice.Id, bob.Id, dal.FollowPending)

	_, err := h.follows.IsFollower(alice.Id, bob.Url)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.follows.AcceptFollower(alice.Id, bob.Url, nil)
	assert.Nil(t, err)

	wire, err := h.follows.IsFollower(alice.Id, bob.Url)
	assert.Nil(t, err)
	assert.Equal(t, dal.FollowAccepted, wire.Status)
}

func TestRemoveFollower(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	bob := h.addExternalAuthor(t, "https://other.example.net/author/bob/", "Bob")
	h.addFollow(t, alice.Id, bob.Id, dal.FollowAccepted)

	err := h.follows.RemoveFollower(alice.Id, bob.Url)
	assert.Nil(t, err)

	stored, _ := h.repo.GetFollow(alice.Id, bob.Id)
	assert.Nil(t, stored)

	err = h.follows.RemoveFollower(alice.Id, bob.Url)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUnfollow_LocalDeleteSurvivesRemoteFailure(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	// No node is registered for bob's host; the outbound notify will fail
	bob := h.addExternalAuthor(t, "https://unreachable.example.net/author/bob/", "Bob")
	h.addFollow(t, bob.Id, alice.Id, dal.FollowAccepted)

	err := h.follows.Unfollow(alice.Id, bob.Url)
	assert.Nil(t, err)

	stored, _ := h.repo.GetFollow(bob.Id, alice.Id)
	assert.Nil(t, stored)
}

// Reconciliation scaffolding: a fake remote node whose follower probe
// endpoint answers a fixed status.
func startProbeServer(t *testing.T, probeStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/followers/") {
			w.WriteHeader(probeStatus)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListFollowings_PromotesPendingWhenProbeSucceeds(t *testing.T) {

	h := newHarness(t)
	srv := startProbeServer(t, http.StatusOK)
	h.registerNode(t, srv.URL)

	alice := h.addInternalAuthor(t, 1, "Alice")
	bob := h.addExternalAuthor(t, srv.URL+"/author/bob/", "Bob")
	h.addFollow(t, bob.Id, alice.Id, dal.FollowPending)

	follows, err := h.follows.ListFollowings(alice.Id)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(follows))
	assert.Equal(t, dal.FollowAccepted, follows[0].Status)

	stored, _ := h.repo.GetFollow(bob.Id, alice.Id)
	assert.Equal(t, dal.FollowAccepted, stored.Status)
}

func TestListFollowings_DeletesAcceptedWhenProbeRejects(t *testing.T) {

	h := newHarness(t)
	srv := startProbeServer(t, http.StatusNotFound)
	h.registerNode(t, srv.URL)

	alice := h.addInternalAuthor(t, 1, "Alice")
	bob := h.addExternalAuthor(t, srv.URL+"/author/bob/", "Bob")
	h.addFollow(t, bob.Id, alice.Id, dal.FollowAccepted)

	follows, err := h.follows.ListFollowings(alice.Id)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(follows))

	stored, _ := h.repo.GetFollow(bob.Id, alice.Id)
	assert.Nil(t, stored)
}

func TestListFollowings_PendingSurvivesProbeRejection(t *testing.T) {

	h := newHarness(t)
	srv := startProbeServer(t, http.StatusNotFound)
	h.registerNode(t, srv.URL)

	alice := h.addInternalAuthor(t, 1, "Alice")
	bob := h.addExternalAuthor(t, srv.URL+"/author/bob/", "Bob")
	h.addFollow(t, bob.Id, alice.Id, dal.FollowPending)

	follows, err := h.follows.ListFollowings(alice.Id)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(follows))
	assert.Equal(t, dal.FollowPending, follows[0].Status)
}

func TestListFollowings_InternalTargetSkipsProbe(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	carol := h.addInternalAuthor(t, 2, "Carol")
	h.addFollow(t, carol.Id, alice.Id, dal.FollowPending)

	follows, err := h.follows.ListFollowings(alice.Id)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(follows))
	assert.Equal(t, dal.FollowPending, follows[0].Status)
}

// The batch delete backs reconciliation's read-decide-delete; an edge whose
// status changed after the decision must survive.
func TestDeleteFollows_SparesEdgesNoLongerAccepted(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	bob := h.addExternalAuthor(t, "https://other.example.net/author/bob/", "Bob")
	pending := h.addFollow(t, bob.Id, alice.Id, dal.FollowPending)
	accepted := h.addFollow(t, alice.Id, bob.Id, dal.FollowAccepted)

	err := h.repo.DeleteFollows([]string{pending.Id, accepted.Id})
	assert.Nil(t, err)

	stored, _ := h.repo.GetFollowById(pending.Id)
	assert.NotNil(t, stored)
	stored, _ = h.repo.GetFollowById(accepted.Id)
	assert.Nil(t, stored)
}

func TestFollowPairUniqueness(t *testing.T) {

	h := newHarness(t)
	alice := h.addInternalAuthor(t, 1, "Alice")
	bob := h.addExternalAuthor(t, "https://other.example.net/author/bob/", "Bob")
	h.addFollow(t, alice.Id, bob.Id, dal.FollowPending)

	err := h.repo.AddFollow(&dal.Follow{
		Id:       "other-id",
		Status:   dal.FollowPending,
		ObjectId: alice.Id,
		ActorId:  bob.Id,
	})
	assert.ErrorIs(t, err, shared.ErrConflict)
}
