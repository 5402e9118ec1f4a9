package dal

import (
	"database/sql"
	"time"
)

// Type tags of federated objects, as they appear on the wire. Mind the
// casing: these exact literals are part of the protocol.
const (
	KindFollow = "Follow"
	KindPost   = "post"
	KindLike   = "Like"
)

const (
	FollowPending  = "PENDING"
	FollowAccepted = "ACCEPTED"
)

const (
	VisibilityPublic  = "PUBLIC"
	VisibilityFriends = "FRIENDS"
	VisibilityPrivate = "PRIVATE"
)

// Author is a federated identity. Internal authors carry a UUID id and a
// bound login principal; external ones are keyed by their foreign profile
// URL and have no user.
type Author struct {
	Id           string // UUID for internal, profile URL for external
	UserId       sql.NullInt64
	IsInternal   bool
	DisplayName  string
	GithubUrl    string
	ProfileImage string
	Url          string // https://distance.example.com/author/51914b9c.../
	Host         string // https://distance.example.com/
	CreatedAt    time.Time
}

// PublicId is what goes on the wire as the author's id: always the
// canonical profile URL, never the storage key.
func (a *Author) PublicId() string {
	if a.Url != "" {
		return a.Url
	}
	return a.Id
}

// User is a local login principal.
type User struct {
	Id        int64
	Username  string
	PwHash    string
	CreatedAt time.Time
}

// Follow is a directed edge: actor wants to / does follow object.
// At most one row exists per (object, actor) pair.
type Follow struct {
	Id        string
	Summary   string
	Status    string // FollowPending | FollowAccepted
	ObjectId  string // the author being followed
	ActorId   string // the follower
	CreatedAt time.Time
}

// InboxObject is the envelope around one federated item delivered to a
// local author's mailbox. Kind tags which table ContentId points into.
type InboxObject struct {
	Id        string
	AuthorId  string
	Kind      string // KindFollow | KindPost | KindLike
	ContentId string
	CreatedAt time.Time
}

// Node is a registered remote server. Username/Password are the credentials
// we present when calling it; the inbox pair is what it must present when
// delivering into our inboxes.
type Node struct {
	Id            int64
	Name          string
	HostUrl       string // https://other-node.herokuapp.com/
	Username      string
	Password      string
	InboxUsername string
	InboxPassword string
}

type Post struct {
	Id          string
	Url         string
	AuthorId    string
	Title       string
	Source      string
	Origin      string
	Description string
	ContentType string
	Content     string
	Published   time.Time
	Visibility  string
	Unlisted    bool
	IsGithub    bool
}

type Comment struct {
	Id          string
	Url         string
	AuthorId    string
	PostId      string
	Comment     string
	ContentType string
	Published   time.Time
}

// Like targets a post or comment by URL, not by foreign key; one per
// (author, target) pair. ObjectHash is the murmur64 of Object, backing the
// uniqueness index.
type Like struct {
	Id         string
	AuthorId   string
	Summary    string
	Object     string
	ObjectHash int64
}

// GithubEvent caches one event from a GitHub activity feed, rendered as a
// synthetic post on the author's stream.
type GithubEvent struct {
	Id           string
	Type         string
	Username     string
	Url          string
	EventTitle   string
	EventContent string
	Time         time.Time
}
