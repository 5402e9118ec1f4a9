package logic

import (
	"social_distance/dal"
	"social_distance/shared"
)

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_notifier.go -package mocks social_distance/logic INotifier

// INotifier pushes outbound objects to their audience. Delivery is
// best-effort: remote failures are logged and counted, never returned to
// the caller. A same-host target is written straight into the local inbox,
// a server must not basic-auth itself.
type INotifier interface {
	NotifyPost(post *dal.Post)
	NotifyLike(like *dal.Like, target *dal.Author)
	NotifyFollow(follow *dal.Follow, target *dal.Author)
	ResolveTargets(post *dal.Post) ([]*dal.Author, error)
	DeleteFollower(foreignAuthorUrl, ourAuthorUrl string)
}

type notifier struct {
	cfg      *shared.Config
	logger   shared.ILogger
	repo     dal.IRepo
	nodes    INodeRegistry
	inbox    IInbox
	adapters IContentAdapters
	client   IRemoteClient
	metrics  IMetrics
	urls     shared.UrlBuilder
}

func NewNotifier(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	nodes INodeRegistry,
	inbox IInbox,
	adapters IContentAdapters,
	client IRemoteClient,
	metrics IMetrics,
) INotifier {
	return &notifier{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		nodes:    nodes,
		inbox:    inbox,
		adapters: adapters,
		client:   client,
		metrics:  metrics,
		urls:     shared.UrlBuilder{Host: cfg.Host},
	}
}

// ResolveTargets computes the audience of a post. PUBLIC reaches all
// accepted followers; FRIENDS only mutual follows; PRIVATE and unlisted
// posts are not pushed anywhere, though they stay fetchable by URL.
func (n *notifier) ResolveTargets(post *dal.Post) ([]*dal.Author, error) {
	if post.Unlisted || post.Visibility == dal.VisibilityPrivate {
		return []*dal.Author{}, nil
	}
	switch post.Visibility {
	case dal.VisibilityPublic:
		return n.repo.GetFollowerAuthors(post.AuthorId, true)
	case dal.VisibilityFriends:
		return n.repo.GetFriendAuthors(post.AuthorId)
	}
	return []*dal.Author{}, nil
}

func (n *notifier) NotifyPost(post *dal.Post) {
	targets, err := n.ResolveTargets(post)
	if err != nil {
		n.logger.Errorf("Cannot resolve audience of post %s: %v", post.Id, err)
		return
	}
	wire, err := n.adapters.WirePost(post)
	if err != nil {
		n.logger.Errorf("Cannot serialize post %s: %v", post.Id, err)
		return
	}
	// All targets are attempted even if an earlier one failed
	for _, target := range targets {
		n.deliverOne(target, dal.KindPost, post.Id, wire)
	}
}

func (n *notifier) NotifyLike(like *dal.Like, target *dal.Author) {
	wire, err := n.adapters.WireLike(like)
	if err != nil {
		n.logger.Errorf("Cannot serialize like %s: %v", like.Id, err)
		return
	}
	n.deliverOne(target, dal.KindLike, like.Id, wire)
}

func (n *notifier) NotifyFollow(follow *dal.Follow, target *dal.Author) {
	wire, err := n.adapters.WireFollow(follow)
	if err != nil {
		n.logger.Errorf("Cannot serialize follow %s: %v", follow.Id, err)
		return
	}
	n.deliverOne(target, dal.KindFollow, follow.Id, wire)
}

func (n *notifier) deliverOne(target *dal.Author, kind, contentId string, wire any) {

	if target.IsInternal || shared.SameHost(target.Url, n.urls.SiteUrl()) {
		if _, err := n.inbox.DeliverLocal(target, kind, contentId); err != nil {
			n.logger.Errorf("Local inbox write for %s failed: %v", target.Id, err)
			n.metrics.NotificationFailed()
			return
		}
		n.metrics.NotificationSent()
		return
	}

	node, err := n.nodes.ResolveNode(target.Url)
	if err != nil {
		n.logger.Errorf("Cannot notify %s: %v", target.Url, err)
		n.metrics.NotificationFailed()
		return
	}
	inboxUrl := shared.InboxUrl(target.Url)
	status, err := n.client.PostJSON(inboxUrl, node, wire)
	if err != nil {
		n.logger.Errorf("Delivery of %s to %s on node %s failed: %v", kind, inboxUrl, node.Name, err)
		n.metrics.NotificationFailed()
		return
	}
	if status >= 400 {
		n.logger.Errorf("Node %s rejected %s delivery to %s with status %d", node.Name, kind, inboxUrl, status)
		n.metrics.NotificationFailed()
		return
	}
	n.logger.Infof("Delivered %s to %s", kind, inboxUrl)
	n.metrics.NotificationSent()
}

// DeleteFollower asks the foreign author's node to drop our author from
// their follower list. Best-effort, like all outbound federation.
func (n *notifier) DeleteFollower(foreignAuthorUrl, ourAuthorUrl string) {
	node, err := n.nodes.ResolveNode(foreignAuthorUrl)
	if err != nil {
		n.logger.Warnf("Cannot notify unfollow to %s: %v", foreignAuthorUrl, err)
		return
	}
	probeUrl := shared.FollowerProbeUrl(foreignAuthorUrl, ourAuthorUrl)
	status, err := n.client.Delete(probeUrl, node)
	if err != nil {
		n.logger.Warnf("Unfollow notification to %s failed: %v", probeUrl, err)
		return
	}
	if status >= 400 {
		n.logger.Warnf("Node %s answered unfollow notification with status %d", node.Name, status)
	}
}
