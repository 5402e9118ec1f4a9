package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"social_distance/dto"
	"social_distance/logic"
	"social_distance/shared"
)

// Groups the author-scoped endpoints: profiles, mailboxes, follower and
// following management.
type authorHandlerGroup struct {
	cfg      *shared.Config
	logger   shared.ILogger
	metrics  logic.IMetrics
	accounts logic.IAccounts
	identity logic.IIdentityResolver
	adapters logic.IContentAdapters
	inbox    logic.IInbox
	follows  logic.IFollowService
	nodes    logic.INodeRegistry
	github   logic.IGithubFeed
}

func NewAuthorHandlerGroup(
	cfg *shared.Config,
	logger shared.ILogger,
	metrics logic.IMetrics,
	accounts logic.IAccounts,
	identity logic.IIdentityResolver,
	adapters logic.IContentAdapters,
	ibox logic.IInbox,
	follows logic.IFollowService,
	nodes logic.INodeRegistry,
	github logic.IGithubFeed,
) IHandlerGroup {
	res := authorHandlerGroup{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		accounts: accounts,
		identity: identity,
		adapters: adapters,
		inbox:    ibox,
		follows:  follows,
		nodes:    nodes,
		github:   github,
	}
	return &res
}

func (hg *authorHandlerGroup) Prefix() string {
	return ""
}

func (hg *authorHandlerGroup) GroupDefs() []handlerDef {
	return []handlerDef{
		{"GET", "/authors", func(w http.ResponseWriter, r *http.Request) { hg.getAuthors(w, r) }},
		{"GET", "/author/{id}", func(w http.ResponseWriter, r *http.Request) { hg.getAuthor(w, r) }},
		{"POST", "/author/{id}", func(w http.ResponseWriter, r *http.Request) { hg.postAuthor(w, r) }},
		{"GET", "/author/{id}/inbox", func(w http.ResponseWriter, r *http.Request) { hg.getInbox(w, r) }},
		{"POST", "/author/{id}/inbox", func(w http.ResponseWriter, r *http.Request) { hg.postInbox(w, r) }},
		{"GET", "/author/{id}/inbox/{inboxId}", func(w http.ResponseWriter, r *http.Request) { hg.getInboxItem(w, r) }},
		{"DELETE", "/author/{id}/inbox/{inboxId}", func(w http.ResponseWriter, r *http.Request) { hg.deleteInboxItem(w, r) }},
		{"GET", "/author/{id}/followers", func(w http.ResponseWriter, r *http.Request) { hg.getFollowers(w, r) }},
		{"GET", "/author/{id}/followers/{foreignUrl:.+}", func(w http.ResponseWriter, r *http.Request) { hg.getFollower(w, r) }},
		{"PUT", "/author/{id}/followers/{foreignUrl:.+}", func(w http.ResponseWriter, r *http.Request) { hg.putFollower(w, r) }},
		{"DELETE", "/author/{id}/followers/{foreignUrl:.+}", func(w http.ResponseWriter, r *http.Request) { hg.deleteFollower(w, r) }},
		{"GET", "/author/{id}/followings", func(w http.ResponseWriter, r *http.Request) { hg.getFollowings(w, r) }},
		{"POST", "/author/{id}/followings/{foreignUrl:.+}", func(w http.ResponseWriter, r *http.Request) { hg.postFollowing(w, r) }},
		{"DELETE", "/author/{id}/followings/{foreignUrl:.+}", func(w http.ResponseWriter, r *http.Request) { hg.deleteFollowing(w, r) }},
		{"GET", "/author/{id}/github", func(w http.ResponseWriter, r *http.Request) { hg.getGithub(w, r) }},
	}
}

func (hg *authorHandlerGroup) AuthMW() func(next http.Handler) http.Handler {
	return emptyMW
}

// Path vars may carry percent-encoded foreign URLs.
func pathVar(r *http.Request, name string) string {
	raw := mux.Vars(r)[name]
	if unescaped, err := url.PathUnescape(raw); err == nil {
		return unescaped
	}
	return raw
}

func (hg *authorHandlerGroup) getAuthors(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("authors")
	defer obs.Finish()

	page := pageParam(r)
	authors, total, err := hg.identity.GetInternalAuthorsPage(page)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	resp := dto.AuthorList{Type: "authors", Page: page, Size: hg.cfg.PageSize, Total: total,
		Items: make([]*dto.Author, 0, len(authors))}
	for _, a := range authors {
		resp.Items = append(resp.Items, hg.adapters.WireAuthor(a))
	}
	writeJsonResponse(hg.logger, w, resp)
}

func (hg *authorHandlerGroup) getAuthor(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("author")
	defer obs.Finish()

	author, err := hg.identity.GetAuthor(pathVar(r, "id"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, hg.adapters.WireAuthor(author))
}

func (hg *authorHandlerGroup) postAuthor(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("author-update")
	defer obs.Finish()

	userId := requesterUserId(hg.accounts, r)
	author, err := hg.identity.GetAuthor(pathVar(r, "id"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	if userId == 0 {
		writeErrorResponse(w, badAuthorization, http.StatusUnauthorized)
		return
	}
	if !author.UserId.Valid || author.UserId.Int64 != userId {
		writeErrorResponse(w, "profile belongs to someone else", http.StatusForbidden)
		return
	}

	var upd dto.ProfileUpdate
	body := readBody(hg.logger, w, r)
	if body == nil {
		return
	}
	if err = json.Unmarshal(body, &upd); err != nil {
		writeErrorResponse(w, badRequestStr, http.StatusBadRequest)
		return
	}
	if author, err = hg.identity.UpdateProfile(author.Id, &upd); err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, hg.adapters.WireAuthor(author))
}

func (hg *authorHandlerGroup) getInbox(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("inbox-list")
	defer obs.Finish()

	userId := requesterUserId(hg.accounts, r)
	page, err := hg.inbox.List(pathVar(r, "id"), userId, pageParam(r))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, page)
}

// postInbox is the server-to-server delivery endpoint; callers are
// registered nodes authenticating with basic auth.
func (hg *authorHandlerGroup) postInbox(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartFedRequestIn("inbox-deliver")
	defer obs.Finish()

	if callingNode(hg.nodes, r) == nil {
		hg.logger.Warnf("Inbox delivery without valid node credentials: %s", r.URL.Path)
		writeErrorResponse(w, badAuthorization, http.StatusUnauthorized)
		return
	}

	body := readBody(hg.logger, w, r)
	if body == nil {
		return
	}
	var item dto.InboxItem
	if err := json.Unmarshal(body, &item); err != nil {
		writeErrorResponse(w, badRequestStr, http.StatusBadRequest)
		return
	}
	obj, err := hg.inbox.Deliver(pathVar(r, "id"), &item)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	rendered, err := hg.adapters.RenderInboxItem(obj)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, rendered)
}

func (hg *authorHandlerGroup) getInboxItem(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("inbox-get")
	defer obs.Finish()

	userId := requesterUserId(hg.accounts, r)
	rendered, err := hg.inbox.Get(pathVar(r, "id"), pathVar(r, "inboxId"), userId)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, rendered)
}

func (hg *authorHandlerGroup) deleteInboxItem(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("inbox-delete")
	defer obs.Finish()

	userId := requesterUserId(hg.accounts, r)
	err := hg.inbox.Delete(pathVar(r, "id"), pathVar(r, "inboxId"), userId)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (hg *authorHandlerGroup) getFollowers(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("followers")
	defer obs.Finish()

	followers, err := hg.follows.ListFollowers(pathVar(r, "id"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, dto.FollowerList{Type: "followers", Items: followers})
}

func (hg *authorHandlerGroup) getFollower(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartFedRequestIn("follower-query")
	defer obs.Finish()

	follow, err := hg.follows.IsFollower(pathVar(r, "id"), pathVar(r, "foreignUrl"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, follow)
}

// requireOwner admits only the login principal bound to the author in the
// path. Writes the error response itself when it says no.
func (hg *authorHandlerGroup) requireOwner(w http.ResponseWriter, r *http.Request) bool {
	userId := requesterUserId(hg.accounts, r)
	if userId == 0 {
		writeErrorResponse(w, badAuthorization, http.StatusUnauthorized)
		return false
	}
	author, err := hg.identity.GetAuthor(pathVar(r, "id"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return false
	}
	if !author.UserId.Valid || author.UserId.Int64 != userId {
		writeErrorResponse(w, "author belongs to someone else", http.StatusForbidden)
		return false
	}
	return true
}

func (hg *authorHandlerGroup) putFollower(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartFedRequestIn("follower-accept")
	defer obs.Finish()

	// Accept comes from the owner, or from the follower's server
	// authenticating as a registered node
	if callingNode(hg.nodes, r) == nil && !hg.requireOwner(w, r) {
		return
	}

	// An optional body carries the follower's profile; without one the
	// profile is fetched from their server
	var payload *dto.Author
	body := readBody(hg.logger, w, r)
	if body == nil {
		return
	}
	if len(body) > 0 {
		var author dto.Author
		if err := json.Unmarshal(body, &author); err == nil && (author.Id != "" || author.Url != "") {
			payload = &author
		}
	}

	follow, err := hg.follows.AcceptFollower(pathVar(r, "id"), pathVar(r, "foreignUrl"), payload)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, follow)
}

func (hg *authorHandlerGroup) deleteFollower(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartFedRequestIn("follower-remove")
	defer obs.Finish()

	if callingNode(hg.nodes, r) == nil && !hg.requireOwner(w, r) {
		return
	}

	err := hg.follows.RemoveFollower(pathVar(r, "id"), pathVar(r, "foreignUrl"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (hg *authorHandlerGroup) getFollowings(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("followings")
	defer obs.Finish()

	follows, err := hg.follows.ListFollowings(pathVar(r, "id"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, follows)
}

func (hg *authorHandlerGroup) postFollowing(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("follow-request")
	defer obs.Finish()

	if !hg.requireOwner(w, r) {
		return
	}

	follow, err := hg.follows.RequestFollow(pathVar(r, "id"), pathVar(r, "foreignUrl"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, follow)
}

func (hg *authorHandlerGroup) deleteFollowing(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("unfollow")
	defer obs.Finish()

	if !hg.requireOwner(w, r) {
		return
	}

	err := hg.follows.Unfollow(pathVar(r, "id"), pathVar(r, "foreignUrl"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (hg *authorHandlerGroup) getGithub(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("github-activity")
	defer obs.Finish()

	posts, err := hg.github.GetActivityPosts(pathVar(r, "id"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, dto.PostList{Type: "posts", Items: posts})
}
