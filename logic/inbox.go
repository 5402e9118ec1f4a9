package logic

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"social_distance/dal"
	"social_distance/dto"
	"social_distance/shared"
)

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_inbox.go -package mocks social_distance/logic IInbox

// IInbox is the per-author mailbox of delivered federated objects. Deliver
// is the server-to-server write path; List/Get/Delete are owner-only reads.
type IInbox interface {
	Deliver(authorIdOrUrl string, item *dto.InboxItem) (*dal.InboxObject, error)
	DeliverLocal(target *dal.Author, kind, contentId string) (*dal.InboxObject, error)
	List(authorIdOrUrl string, requesterUserId int64, page int) (*dto.InboxPage, error)
	Get(authorIdOrUrl, inboxId string, requesterUserId int64) (json.RawMessage, error)
	Delete(authorIdOrUrl, inboxId string, requesterUserId int64) error
}

type inbox struct {
	cfg      *shared.Config
	logger   shared.ILogger
	repo     dal.IRepo
	identity IIdentityResolver
	adapters IContentAdapters
	metrics  IMetrics
}

func NewInbox(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	identity IIdentityResolver,
	adapters IContentAdapters,
	metrics IMetrics,
) IInbox {
	return &inbox{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		identity: identity,
		adapters: adapters,
		metrics:  metrics,
	}
}

// mailboxOwner resolves the author and checks they actually own a mailbox
// on this server.
func (ib *inbox) mailboxOwner(authorIdOrUrl string) (*dal.Author, error) {
	author, err := ib.identity.GetAuthor(authorIdOrUrl)
	if err != nil {
		return nil, err
	}
	if !author.IsInternal {
		return nil, shared.Errorf(shared.ErrValidation, "author '%s' has no mailbox on this server", authorIdOrUrl)
	}
	return author, nil
}

func (ib *inbox) checkOwnership(author *dal.Author, requesterUserId int64) error {
	if requesterUserId == 0 {
		return shared.Errorf(shared.ErrAuthenticationFailed, "mailbox access requires a logged-in owner")
	}
	if !author.UserId.Valid || author.UserId.Int64 != requesterUserId {
		return shared.Errorf(shared.ErrPermissionDenied, "mailbox of '%s' belongs to someone else", author.Id)
	}
	return nil
}

func (ib *inbox) Deliver(authorIdOrUrl string, item *dto.InboxItem) (*dal.InboxObject, error) {

	target, err := ib.mailboxOwner(authorIdOrUrl)
	if err != nil {
		return nil, err
	}

	var kind, contentId string
	switch item.Type {
	case dto.TypeFollow:
		kind = dal.KindFollow
		contentId, err = ib.adapters.IngestFollow(target, item.Raw)
	case dto.TypePost:
		kind = dal.KindPost
		contentId, err = ib.adapters.IngestPost(item.Raw)
	case dto.TypeLike:
		kind = dal.KindLike
		contentId, err = ib.adapters.IngestLike(item.Raw)
	default:
		return nil, shared.Errorf(shared.ErrValidation, "cannot deliver object of type '%s'", item.Type)
	}
	if err != nil {
		return nil, err
	}

	return ib.DeliverLocal(target, kind, contentId)
}

// DeliverLocal writes an envelope for already-stored content. This is also
// the notifier's same-host short-circuit entry point.
func (ib *inbox) DeliverLocal(target *dal.Author, kind, contentId string) (*dal.InboxObject, error) {
	obj := &dal.InboxObject{
		Id:        uuid.NewString(),
		AuthorId:  target.Id,
		Kind:      kind,
		ContentId: contentId,
		CreatedAt: time.Now().UTC(),
	}
	if err := ib.repo.AddInboxObject(obj); err != nil {
		return nil, err
	}
	ib.metrics.InboxObjectStored(kind)
	return obj, nil
}

func (ib *inbox) List(authorIdOrUrl string, requesterUserId int64, page int) (*dto.InboxPage, error) {

	author, err := ib.mailboxOwner(authorIdOrUrl)
	if err != nil {
		return nil, err
	}
	if err = ib.checkOwnership(author, requesterUserId); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	limit := ib.cfg.PageSize
	objs, total, err := ib.repo.GetInboxObjectsPage(author.Id, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	res := &dto.InboxPage{
		Type:   "inbox",
		Author: author.Url,
		Page:   page,
		Size:   limit,
		Total:  total,
		Items:  make([]json.RawMessage, 0, len(objs)),
	}
	for _, obj := range objs {
		item, err := ib.adapters.RenderInboxItem(obj)
		if err != nil {
			// Content may be gone while the envelope survives; skip, don't fail
			ib.logger.Warnf("Cannot render inbox object %s: %v", obj.Id, err)
			continue
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}

func (ib *inbox) Get(authorIdOrUrl, inboxId string, requesterUserId int64) (json.RawMessage, error) {

	author, err := ib.mailboxOwner(authorIdOrUrl)
	if err != nil {
		return nil, err
	}
	if err = ib.checkOwnership(author, requesterUserId); err != nil {
		return nil, err
	}

	obj, err := ib.repo.GetInboxObject(author.Id, inboxId)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, shared.Errorf(shared.ErrNotFound, "inbox object %s does not exist", inboxId)
	}
	return ib.adapters.RenderInboxItem(obj)
}

func (ib *inbox) Delete(authorIdOrUrl, inboxId string, requesterUserId int64) error {

	author, err := ib.mailboxOwner(authorIdOrUrl)
	if err != nil {
		return err
	}
	if err = ib.checkOwnership(author, requesterUserId); err != nil {
		return err
	}
	return ib.repo.DeleteInboxObject(author.Id, inboxId)
}
