package server

import (
	"encoding/json"
	"net/http"

	"social_distance/dto"
	"social_distance/logic"
	"social_distance/shared"
)

type postHandlerGroup struct {
	cfg      *shared.Config
	logger   shared.ILogger
	metrics  logic.IMetrics
	accounts logic.IAccounts
	posts    logic.IPostService
}

func NewPostHandlerGroup(
	cfg *shared.Config,
	logger shared.ILogger,
	metrics logic.IMetrics,
	accounts logic.IAccounts,
	posts logic.IPostService,
) IHandlerGroup {
	res := postHandlerGroup{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		accounts: accounts,
		posts:    posts,
	}
	return &res
}

func (hg *postHandlerGroup) Prefix() string {
	return "/author/{id}"
}

func (hg *postHandlerGroup) GroupDefs() []handlerDef {
	return []handlerDef{
		{"GET", "/posts", func(w http.ResponseWriter, r *http.Request) { hg.getPosts(w, r) }},
		{"POST", "/posts", func(w http.ResponseWriter, r *http.Request) { hg.postPost(w, r) }},
		{"GET", "/posts/{postId}", func(w http.ResponseWriter, r *http.Request) { hg.getPost(w, r) }},
		{"PUT", "/posts/{postId}", func(w http.ResponseWriter, r *http.Request) { hg.putPost(w, r) }},
		{"POST", "/posts/{postId}", func(w http.ResponseWriter, r *http.Request) { hg.updatePost(w, r) }},
		{"DELETE", "/posts/{postId}", func(w http.ResponseWriter, r *http.Request) { hg.deletePost(w, r) }},
		{"GET", "/posts/{postId}/comments", func(w http.ResponseWriter, r *http.Request) { hg.getComments(w, r) }},
		{"POST", "/posts/{postId}/comments", func(w http.ResponseWriter, r *http.Request) { hg.postComment(w, r) }},
		{"GET", "/posts/{postId}/likes", func(w http.ResponseWriter, r *http.Request) { hg.getPostLikes(w, r) }},
		{"GET", "/liked", func(w http.ResponseWriter, r *http.Request) { hg.getLiked(w, r) }},
		{"POST", "/liked", func(w http.ResponseWriter, r *http.Request) { hg.postLiked(w, r) }},
	}
}

func (hg *postHandlerGroup) AuthMW() func(next http.Handler) http.Handler {
	return emptyMW
}

func (hg *postHandlerGroup) readPostBody(w http.ResponseWriter, r *http.Request) *dto.Post {
	body := readBody(hg.logger, w, r)
	if body == nil {
		return nil
	}
	var wire dto.Post
	if err := json.Unmarshal(body, &wire); err != nil {
		writeErrorResponse(w, badRequestStr, http.StatusBadRequest)
		return nil
	}
	return &wire
}

func (hg *postHandlerGroup) getPosts(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("posts")
	defer obs.Finish()

	page := pageParam(r)
	posts, total, err := hg.posts.GetPostsPage(pathVar(r, "id"), page)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w,
		dto.PostList{Type: "posts", Page: page, Size: hg.cfg.PageSize, Total: total, Items: posts})
}

func (hg *postHandlerGroup) postPost(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("post-create")
	defer obs.Finish()

	wire := hg.readPostBody(w, r)
	if wire == nil {
		return
	}
	userId := requesterUserId(hg.accounts, r)
	post, err := hg.posts.CreatePost(pathVar(r, "id"), userId, wire)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, post)
}

func (hg *postHandlerGroup) getPost(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("post")
	defer obs.Finish()

	post, err := hg.posts.GetPost(pathVar(r, "id"), pathVar(r, "postId"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, post)
}

// putPost creates a post under a caller-chosen id; a collision is a 409.
func (hg *postHandlerGroup) putPost(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("post-put")
	defer obs.Finish()

	wire := hg.readPostBody(w, r)
	if wire == nil {
		return
	}
	userId := requesterUserId(hg.accounts, r)
	post, err := hg.posts.CreatePostWithId(pathVar(r, "id"), pathVar(r, "postId"), userId, wire)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, post)
}

func (hg *postHandlerGroup) updatePost(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("post-update")
	defer obs.Finish()

	wire := hg.readPostBody(w, r)
	if wire == nil {
		return
	}
	userId := requesterUserId(hg.accounts, r)
	post, err := hg.posts.UpdatePost(pathVar(r, "id"), pathVar(r, "postId"), userId, wire)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, post)
}

func (hg *postHandlerGroup) deletePost(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("post-delete")
	defer obs.Finish()

	userId := requesterUserId(hg.accounts, r)
	err := hg.posts.DeletePost(pathVar(r, "id"), pathVar(r, "postId"), userId)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (hg *postHandlerGroup) getComments(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("comments")
	defer obs.Finish()

	page := pageParam(r)
	comments, total, err := hg.posts.GetCommentsPage(pathVar(r, "id"), pathVar(r, "postId"), page)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w,
		dto.CommentList{Type: "comments", Page: page, Size: hg.cfg.PageSize, Total: total, Items: comments})
}

func (hg *postHandlerGroup) postComment(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("comment-create")
	defer obs.Finish()

	body := readBody(hg.logger, w, r)
	if body == nil {
		return
	}
	var wire dto.Comment
	if err := json.Unmarshal(body, &wire); err != nil {
		writeErrorResponse(w, badRequestStr, http.StatusBadRequest)
		return
	}
	userId := requesterUserId(hg.accounts, r)
	comment, err := hg.posts.AddComment(pathVar(r, "id"), pathVar(r, "postId"), userId, &wire)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, comment)
}

func (hg *postHandlerGroup) getPostLikes(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("post-likes")
	defer obs.Finish()

	post, err := hg.posts.GetPost(pathVar(r, "id"), pathVar(r, "postId"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	likes, err := hg.posts.GetLikesForObject(post.Id)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, dto.LikeList{Type: "likes", Items: likes})
}

func (hg *postHandlerGroup) getLiked(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("liked")
	defer obs.Finish()

	likes, err := hg.posts.GetLikesByAuthor(pathVar(r, "id"))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, dto.LikeList{Type: "liked", Items: likes})
}

func (hg *postHandlerGroup) postLiked(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("like-create")
	defer obs.Finish()

	body := readBody(hg.logger, w, r)
	if body == nil {
		return
	}
	var wire dto.Like
	if err := json.Unmarshal(body, &wire); err != nil {
		writeErrorResponse(w, badRequestStr, http.StatusBadRequest)
		return
	}
	userId := requesterUserId(hg.accounts, r)
	like, err := hg.posts.LikeObject(userId, wire.Object)
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, like)
}
