package logic

import (
	"time"

	"github.com/google/uuid"

	"social_distance/dal"
	"social_distance/dto"
	"social_distance/shared"
	"social_distance/texts"
)

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_follows.go -package mocks social_distance/logic IFollowService

// IFollowService drives the pending/accepted follow handshake between two
// authors, local or foreign.
type IFollowService interface {
	RequestFollow(actorIdOrUrl, targetAuthorUrl string) (*dto.Follow, error)
	AcceptFollower(objectIdOrUrl, foreignActorUrl string, payload *dto.Author) (*dto.Follow, error)
	RemoveFollower(objectIdOrUrl, foreignActorUrl string) error
	Unfollow(actorIdOrUrl, targetAuthorUrl string) error
	IsFollower(objectIdOrUrl, foreignActorUrl string) (*dto.Follow, error)
	ListFollowers(objectIdOrUrl string) ([]*dto.Author, error)
	ListFollowings(actorIdOrUrl string) ([]*dto.Follow, error)
}

type followService struct {
	cfg      *shared.Config
	logger   shared.ILogger
	repo     dal.IRepo
	identity IIdentityResolver
	nodes    INodeRegistry
	notifier INotifier
	client   IRemoteClient
	adapters IContentAdapters
	metrics  IMetrics
	txt      texts.ITexts
	urls     shared.UrlBuilder
}

func NewFollowService(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	identity IIdentityResolver,
	nodes INodeRegistry,
	notifier INotifier,
	client IRemoteClient,
	adapters IContentAdapters,
	metrics IMetrics,
	txt texts.ITexts,
) IFollowService {
	return &followService{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		identity: identity,
		nodes:    nodes,
		notifier: notifier,
		client:   client,
		adapters: adapters,
		metrics:  metrics,
		txt:      txt,
		urls:     shared.UrlBuilder{Host: cfg.Host},
	}
}

// resolveForeignAuthor finds the author behind a profile URL. Same-host
// URLs are looked up locally; anything else is fetched over HTTP and
// upserted.
func (fs *followService) resolveForeignAuthor(authorUrl string) (*dal.Author, error) {
	authorUrl = canonicalAuthorUrl(authorUrl)
	if shared.SameHost(authorUrl, fs.urls.SiteUrl()) {
		return fs.identity.GetAuthor(authorUrl)
	}
	if existing, err := fs.repo.GetAuthorByUrl(authorUrl); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}
	profile, err := fs.nodes.RetrieveAuthor(authorUrl)
	if err != nil {
		return nil, err
	}
	return fs.identity.UpsertAuthor(profile)
}

func (fs *followService) RequestFollow(actorIdOrUrl, targetAuthorUrl string) (*dto.Follow, error) {

	actor, err := fs.identity.GetAuthor(actorIdOrUrl)
	if err != nil {
		return nil, err
	}
	target, err := fs.resolveForeignAuthor(targetAuthorUrl)
	if err != nil {
		return nil, err
	}
	if actor.Id == target.Id {
		return nil, shared.Errorf(shared.ErrValidation, "author %s cannot follow themselves", actor.Id)
	}

	existing, err := fs.repo.GetFollow(target.Id, actor.Id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.Errorf(shared.ErrConflict,
			"author %s already follows or requested %s", actor.Id, target.Id)
	}

	follow := &dal.Follow{
		Id: uuid.NewString(),
		Summary: fs.txt.WithVals("follow-summary.txt", map[string]string{
			"actor":  actor.DisplayName,
			"object": target.DisplayName,
		}),
		Status:    dal.FollowPending,
		ObjectId:  target.Id,
		ActorId:   actor.Id,
		CreatedAt: time.Now().UTC(),
	}
	if err = fs.repo.AddFollow(follow); err != nil {
		return nil, err
	}

	fs.notifier.NotifyFollow(follow, target)

	return fs.adapters.WireFollow(follow)
}

// AcceptFollower flips a pending request to accepted, or creates the edge
// directly as accepted when no request was recorded. Calling it again for
// the same follower is a no-op.
func (fs *followService) AcceptFollower(objectIdOrUrl, foreignActorUrl string, payload *dto.Author) (*dto.Follow, error) {

	object, err := fs.identity.GetAuthor(objectIdOrUrl)
	if err != nil {
		return nil, err
	}

	var actor *dal.Author
	if payload != nil {
		actor, err = fs.identity.UpsertAuthor(payload)
	} else {
		actor, err = fs.resolveForeignAuthor(foreignActorUrl)
	}
	if err != nil {
		return nil, err
	}

	follow, err := fs.repo.GetFollow(object.Id, actor.Id)
	if err != nil {
		return nil, err
	}
	if follow == nil {
		follow = &dal.Follow{
			Id: uuid.NewString(),
			Summary: fs.txt.WithVals("follow-summary.txt", map[string]string{
				"actor":  actor.DisplayName,
				"object": object.DisplayName,
			}),
			Status:    dal.FollowAccepted,
			ObjectId:  object.Id,
			ActorId:   actor.Id,
			CreatedAt: time.Now().UTC(),
		}
		if err = fs.repo.AddFollow(follow); err != nil {
			return nil, err
		}
	} else if follow.Status != dal.FollowAccepted {
		if err = fs.repo.SetFollowStatus(follow.Id, dal.FollowAccepted); err != nil {
			return nil, err
		}
		follow.Status = dal.FollowAccepted
	}

	return fs.adapters.WireFollow(follow)
}

func (fs *followService) RemoveFollower(objectIdOrUrl, foreignActorUrl string) error {

	object, err := fs.identity.GetAuthor(objectIdOrUrl)
	if err != nil {
		return err
	}
	actor, err := fs.repo.GetAuthorByUrl(canonicalAuthorUrl(foreignActorUrl))
	if err != nil {
		return err
	}
	if actor == nil {
		return shared.Errorf(shared.ErrNotFound, "author '%s' is not known here", foreignActorUrl)
	}
	follow, err := fs.repo.GetFollow(object.Id, actor.Id)
	if err != nil {
		return err
	}
	if follow == nil {
		return shared.Errorf(shared.ErrNotFound, "%s does not follow %s", actor.Id, object.Id)
	}
	return fs.repo.DeleteFollow(follow.Id)
}

// Unfollow deletes the actor's own outgoing edge. The foreign node is told
// best-effort; its failure never fails the local unfollow.
func (fs *followService) Unfollow(actorIdOrUrl, targetAuthorUrl string) error {

	actor, err := fs.identity.GetAuthor(actorIdOrUrl)
	if err != nil {
		return err
	}
	target, err := fs.repo.GetAuthorByUrl(canonicalAuthorUrl(targetAuthorUrl))
	if err != nil {
		return err
	}
	if target == nil {
		if target, err = fs.repo.GetAuthor(targetAuthorUrl); err != nil {
			return err
		}
	}
	if target == nil {
		return shared.Errorf(shared.ErrNotFound, "author '%s' is not known here", targetAuthorUrl)
	}
	follow, err := fs.repo.GetFollow(target.Id, actor.Id)
	if err != nil {
		return err
	}
	if follow == nil {
		return shared.Errorf(shared.ErrNotFound, "%s does not follow %s", actor.Id, target.Id)
	}
	if err = fs.repo.DeleteFollow(follow.Id); err != nil {
		return err
	}

	if !target.IsInternal {
		fs.notifier.DeleteFollower(target.Url, actor.Url)
	}
	return nil
}

func (fs *followService) IsFollower(objectIdOrUrl, foreignActorUrl string) (*dto.Follow, error) {

	object, err := fs.identity.GetAuthor(objectIdOrUrl)
	if err != nil {
		return nil, err
	}
	actor, err := fs.repo.GetAuthorByUrl(canonicalAuthorUrl(foreignActorUrl))
	if err != nil {
		return nil, err
	}
	if actor == nil {
		if actor, err = fs.repo.GetAuthor(foreignActorUrl); err != nil {
			return nil, err
		}
	}
	if actor == nil {
		return nil, shared.Errorf(shared.ErrNotFound, "author '%s' is not known here", foreignActorUrl)
	}
	follow, err := fs.repo.GetFollow(object.Id, actor.Id)
	if err != nil {
		return nil, err
	}
	// Peers probe this to decide whether a pending request got approved;
	// a pending edge must answer not-found, never 200.
	if follow == nil || follow.Status != dal.FollowAccepted {
		return nil, shared.Errorf(shared.ErrNotFound, "%s does not follow %s", actor.Id, object.Id)
	}
	return fs.adapters.WireFollow(follow)
}

func (fs *followService) ListFollowers(objectIdOrUrl string) ([]*dto.Author, error) {

	object, err := fs.identity.GetAuthor(objectIdOrUrl)
	if err != nil {
		return nil, err
	}
	followers, err := fs.repo.GetFollowerAuthors(object.Id, true)
	if err != nil {
		return nil, err
	}
	fs.metrics.TotalFollowers(len(followers))
	res := make([]*dto.Author, 0, len(followers))
	for _, f := range followers {
		res = append(res, fs.adapters.WireAuthor(f))
	}
	return res, nil
}

// ListFollowings returns the actor's outgoing follows, reconciling each
// external edge against the target server first. This is a side-effecting
// read: pending edges the remote party accepted get promoted, accepted
// edges the remote party revoked get deleted, and only the survivors are
// returned.
func (fs *followService) ListFollowings(actorIdOrUrl string) ([]*dto.Follow, error) {

	actor, err := fs.identity.GetAuthor(actorIdOrUrl)
	if err != nil {
		return nil, err
	}
	follows, err := fs.repo.GetFollowsByActor(actor.Id)
	if err != nil {
		return nil, err
	}

	var revokedIds []string
	promoted := 0
	surviving := make([]*dal.Follow, 0, len(follows))
	for _, follow := range follows {
		target, err := fs.repo.GetAuthor(follow.ObjectId)
		if err != nil {
			return nil, err
		}
		if target == nil || target.IsInternal {
			surviving = append(surviving, follow)
			continue
		}

		status, probeErr := fs.probeFollower(target, actor)
		if probeErr != nil {
			// Remote unreachable; leave the edge as it stands
			fs.logger.Warnf("Follower probe against %s failed: %v", target.Url, probeErr)
			surviving = append(surviving, follow)
			continue
		}
		if status < 400 {
			if follow.Status == dal.FollowPending {
				if err = fs.repo.SetFollowStatus(follow.Id, dal.FollowAccepted); err != nil {
					return nil, err
				}
				follow.Status = dal.FollowAccepted
				promoted += 1
			}
			surviving = append(surviving, follow)
		} else if follow.Status == dal.FollowAccepted {
			// Remote party revoked the relationship
			revokedIds = append(revokedIds, follow.Id)
		} else {
			surviving = append(surviving, follow)
		}
	}

	if err = fs.repo.DeleteFollows(revokedIds); err != nil {
		return nil, err
	}
	fs.metrics.FollowsReconciled(promoted, len(revokedIds))

	res := make([]*dto.Follow, 0, len(surviving))
	for _, follow := range surviving {
		wire, err := fs.adapters.WireFollow(follow)
		if err != nil {
			return nil, err
		}
		res = append(res, wire)
	}
	return res, nil
}

// probeFollower asks the target's server whether our author is on their
// follower list; first by our author's URL, once more by their bare id if
// the first call errors out.
func (fs *followService) probeFollower(target, actor *dal.Author) (int, error) {
	node, err := fs.nodes.ResolveNode(target.Url)
	if err != nil {
		return 0, err
	}
	status, _, err := fs.client.Get(shared.FollowerProbeUrl(target.Url, actor.Url), node)
	if err == nil {
		return status, nil
	}
	status, _, err = fs.client.Get(shared.FollowerProbeUrl(target.Url, actor.Id), node)
	return status, err
}
