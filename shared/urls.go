package shared

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var reAuthorUrl = regexp.MustCompile(`^(https?://[^/]+)/author/([^/]+?)/?$`)
var reAuthorUrlPrefix = regexp.MustCompile(`^https?://[^/]+/author/[^/]+/`)

// UrlBuilder derives the canonical public URLs of local resources.
type UrlBuilder struct {
	Host string
}

func (ub *UrlBuilder) SiteUrl() string {
	return fmt.Sprintf("https://%s/", ub.Host)
}

func (ub *UrlBuilder) AuthorUrl(authorId string) string {
	return fmt.Sprintf("https://%s/author/%s/", ub.Host, authorId)
}

func (ub *UrlBuilder) AuthorInbox(authorId string) string {
	return fmt.Sprintf("https://%s/author/%s/inbox/", ub.Host, authorId)
}

func (ub *UrlBuilder) PostUrl(authorId, postId string) string {
	return fmt.Sprintf("https://%s/author/%s/posts/%s", ub.Host, authorId, postId)
}

func (ub *UrlBuilder) CommentUrl(authorId, postId, commentId string) string {
	return fmt.Sprintf("https://%s/author/%s/posts/%s/comments/%s", ub.Host, authorId, postId, commentId)
}

// ParseAuthorUrl splits a canonical author profile URL into the node's host
// URL and the author's id segment.
func ParseAuthorUrl(authorUrl string) (hostUrl, authorId string, err error) {
	groups := reAuthorUrl.FindStringSubmatch(authorUrl)
	if groups == nil {
		return "", "", Errorf(ErrValidation, "cannot parse author URL '%s'", authorUrl)
	}
	return groups[1] + "/", groups[2], nil
}

// AuthorUrlPrefix extracts the owning author's profile URL from a longer
// resource URL, such as a post or comment address.
func AuthorUrlPrefix(resourceUrl string) (string, error) {
	match := reAuthorUrlPrefix.FindString(resourceUrl)
	if match == "" {
		return "", Errorf(ErrValidation, "no author URL prefix in '%s'", resourceUrl)
	}
	return match, nil
}

// InboxUrl derives the inbox address of an author from their profile URL.
func InboxUrl(authorUrl string) string {
	if strings.HasSuffix(authorUrl, "/") {
		return authorUrl + "inbox/"
	}
	return authorUrl + "/inbox/"
}

// FollowerProbeUrl is the remote endpoint that answers whether ref (our
// author's URL or id) is an accepted follower of the foreign author.
func FollowerProbeUrl(foreignAuthorUrl, ref string) string {
	if strings.HasSuffix(foreignAuthorUrl, "/") {
		return foreignAuthorUrl + "followers/" + ref
	}
	return foreignAuthorUrl + "/followers/" + ref
}

// NormalizeHostUrl reduces a URL to scheme://host/ so that host comparisons
// are structural, not substring containment.
func NormalizeHostUrl(rawUrl string) (string, error) {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return "", Errorf(ErrValidation, "cannot parse URL '%s'", rawUrl)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", Errorf(ErrValidation, "URL '%s' has no scheme or host", rawUrl)
	}
	return parsed.Scheme + "://" + parsed.Host + "/", nil
}

// SameHost reports whether two URLs point at the same server.
func SameHost(urlA, urlB string) bool {
	hostA, errA := NormalizeHostUrl(urlA)
	hostB, errB := NormalizeHostUrl(urlB)
	if errA != nil || errB != nil {
		return false
	}
	return hostA == hostB
}
