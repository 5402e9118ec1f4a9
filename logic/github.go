package logic

import (
	"fmt"
	"strings"
	"time"

	"social_distance/dal"
	"social_distance/dto"
	"social_distance/shared"
)

const githubEventsUrlTemplate = "https://api.github.com/users/%s/events"

// IGithubFeed turns an author's public GitHub activity into synthetic
// posts. Events are cached so a flaky GitHub API still yields the feed
// seen on the last successful fetch.
type IGithubFeed interface {
	GetActivityPosts(authorIdOrUrl string) ([]*dto.Post, error)
}

type githubFeed struct {
	cfg      *shared.Config
	logger   shared.ILogger
	repo     dal.IRepo
	identity IIdentityResolver
	client   IRemoteClient
	adapters IContentAdapters
}

func NewGithubFeed(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	identity IIdentityResolver,
	client IRemoteClient,
	adapters IContentAdapters,
) IGithubFeed {
	return &githubFeed{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		identity: identity,
		client:   client,
		adapters: adapters,
	}
}

type githubEventRaw struct {
	Id   string `json:"id"`
	Type string `json:"type"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload struct {
		Action  string `json:"action"`
		Ref     string `json:"ref"`
		RefType string `json:"ref_type"`
		Commits []struct {
			Message string `json:"message"`
		} `json:"commits"`
	} `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

func (gf *githubFeed) GetActivityPosts(authorIdOrUrl string) ([]*dto.Post, error) {

	author, err := gf.identity.GetAuthor(authorIdOrUrl)
	if err != nil {
		return nil, err
	}
	username := githubUsername(author.GithubUrl)
	if username == "" {
		return nil, shared.Errorf(shared.ErrValidation, "author %s has no GitHub account on their profile", author.Id)
	}

	if err = gf.refreshEvents(username); err != nil {
		// Serve whatever the cache has
		gf.logger.Warnf("GitHub activity fetch for %s failed: %v", username, err)
	}

	events, err := gf.repo.GetGithubEventsByUsername(username)
	if err != nil {
		return nil, err
	}
	wireAuthor := gf.adapters.WireAuthor(author)
	res := make([]*dto.Post, 0, len(events))
	for _, ev := range events {
		res = append(res, &dto.Post{
			Type:        dto.TypePost,
			Id:          ev.Url,
			Title:       ev.EventTitle,
			Origin:      ev.Url,
			ContentType: "text/markdown",
			Content:     ev.EventContent,
			Author:      wireAuthor,
			Published:   ev.Time.UTC().Format(time.RFC3339),
			Visibility:  dal.VisibilityPublic,
			Unlisted:    true,
		})
	}
	return res, nil
}

func (gf *githubFeed) refreshEvents(username string) error {

	var raws []githubEventRaw
	url := fmt.Sprintf(githubEventsUrlTemplate, username)
	if err := gf.client.GetJSON(url, nil, &raws); err != nil {
		return err
	}
	for _, raw := range raws {
		title, content := describeGithubEvent(&raw)
		_, err := gf.repo.AddGithubEventIfNew(&dal.GithubEvent{
			Id:           raw.Id,
			Type:         raw.Type,
			Username:     username,
			Url:          "https://github.com/" + raw.Repo.Name,
			EventTitle:   title,
			EventContent: content,
			Time:         raw.CreatedAt.UTC(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func describeGithubEvent(raw *githubEventRaw) (title, content string) {
	repo := raw.Repo.Name
	switch raw.Type {
	case "PushEvent":
		title = fmt.Sprintf("Pushed %d commit(s) to %s", len(raw.Payload.Commits), repo)
		var sb strings.Builder
		for _, c := range raw.Payload.Commits {
			sb.WriteString("- ")
			sb.WriteString(firstLine(c.Message))
			sb.WriteString("\n")
		}
		content = sb.String()
	case "CreateEvent":
		title = fmt.Sprintf("Created %s %s in %s", raw.Payload.RefType, raw.Payload.Ref, repo)
	case "PullRequestEvent":
		title = fmt.Sprintf("Pull request %s in %s", raw.Payload.Action, repo)
	case "IssuesEvent":
		title = fmt.Sprintf("Issue %s in %s", raw.Payload.Action, repo)
	case "WatchEvent":
		title = fmt.Sprintf("Starred %s", repo)
	case "ForkEvent":
		title = fmt.Sprintf("Forked %s", repo)
	default:
		title = fmt.Sprintf("%s in %s", raw.Type, repo)
	}
	if content == "" {
		content = title
	}
	return
}

func firstLine(s string) string {
	if ix := strings.IndexByte(s, '\n'); ix >= 0 {
		return s[:ix]
	}
	return s
}

func githubUsername(githubUrl string) string {
	if githubUrl == "" {
		return ""
	}
	trimmed := strings.TrimRight(githubUrl, "/")
	if ix := strings.LastIndexByte(trimmed, '/'); ix >= 0 {
		return trimmed[ix+1:]
	}
	return trimmed
}
