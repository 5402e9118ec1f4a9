package test

import (
	"database/sql"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"social_distance/dal"
	"social_distance/logic"
	"social_distance/shared"
	"social_distance/texts"
)

const ownHost = "distance.example.com"

// harness wires the full service stack over a throwaway sqlite file, so
// tests exercise the real storage semantics, duplicate-key handling
// included.
type harness struct {
	cfg      *shared.Config
	logger   shared.ILogger
	repo     dal.IRepo
	metrics  logic.IMetrics
	client   logic.IRemoteClient
	identity logic.IIdentityResolver
	adapters logic.IContentAdapters
	nodes    logic.INodeRegistry
	inbox    logic.IInbox
	notifier logic.INotifier
	follows  logic.IFollowService
	posts    logic.IPostService
	accounts logic.IAccounts
}

func newHarness(t *testing.T) *harness {

	cfg := &shared.Config{
		Host:     ownHost,
		DbFile:   filepath.Join(t.TempDir(), "test.db"),
		PageSize: 20,
		Secrets: shared.Secrets{
			TokenSigningKey: "test-signing-key",
		},
	}
	logger := log.New(io.Discard)

	h := &harness{cfg: cfg, logger: logger}
	h.repo = dal.NewRepo(cfg, logger)
	h.repo.InitUpdateDb()
	h.metrics = logic.NewMetrics(cfg)
	h.client = logic.NewRemoteClient(logger, h.metrics, shared.NewUserAgent(cfg))
	txt := texts.NewTexts()
	h.identity = logic.NewIdentityResolver(cfg, logger, h.repo)
	h.adapters = logic.NewContentAdapters(cfg, logger, h.repo, h.identity, txt)
	h.nodes = logic.NewNodeRegistry(logger, h.repo, h.client)
	h.inbox = logic.NewInbox(cfg, logger, h.repo, h.identity, h.adapters, h.metrics)
	h.notifier = logic.NewNotifier(cfg, logger, h.repo, h.nodes, h.inbox, h.adapters, h.client, h.metrics)
	h.follows = logic.NewFollowService(cfg, logger, h.repo, h.identity, h.nodes, h.notifier,
		h.client, h.adapters, h.metrics, txt)
	h.posts = logic.NewPostService(cfg, logger, h.repo, h.identity, h.adapters, h.notifier)
	h.accounts = logic.NewAccounts(cfg, logger, h.repo, h.identity)
	return h
}

// addInternalAuthor stores a locally hosted author bound to a login.
func (h *harness) addInternalAuthor(t *testing.T, userId int64, displayName string) *dal.Author {
	t.Helper()
	id := uuid.NewString()
	urls := shared.UrlBuilder{Host: h.cfg.Host}
	author := &dal.Author{
		Id:          id,
		UserId:      sql.NullInt64{Int64: userId, Valid: true},
		IsInternal:  true,
		DisplayName: displayName,
		Url:         urls.AuthorUrl(id),
		Host:        urls.SiteUrl(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.repo.AddAuthor(author); err != nil {
		t.Fatalf("failed to add internal author: %v", err)
	}
	return author
}

// addExternalAuthor stores a foreign author keyed by their profile URL.
func (h *harness) addExternalAuthor(t *testing.T, profileUrl, displayName string) *dal.Author {
	t.Helper()
	host, err := shared.NormalizeHostUrl(profileUrl)
	if err != nil {
		t.Fatalf("bad profile url %s: %v", profileUrl, err)
	}
	author := &dal.Author{
		Id:          profileUrl,
		IsInternal:  false,
		DisplayName: displayName,
		Url:         profileUrl,
		Host:        host,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.repo.AddAuthor(author); err != nil {
		t.Fatalf("failed to add external author: %v", err)
	}
	return author
}

func (h *harness) addFollow(t *testing.T, objectId, actorId, status string) *dal.Follow {
	t.Helper()
	follow := &dal.Follow{
		Id:        uuid.NewString(),
		Status:    status,
		ObjectId:  objectId,
		ActorId:   actorId,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.AddFollow(follow); err != nil {
		t.Fatalf("failed to add follow: %v", err)
	}
	return follow
}

func (h *harness) registerNode(t *testing.T, hostUrl string) *dal.Node {
	t.Helper()
	err := h.repo.UpsertNode(&dal.Node{
		Name:          "test-node",
		HostUrl:       hostUrl,
		Username:      "us",
		Password:      "pw",
		InboxUsername: "peer-caller",
		InboxPassword: "peer-secret",
	})
	if err != nil {
		t.Fatalf("failed to register node: %v", err)
	}
	nodes, err := h.repo.GetNodes()
	if err != nil || len(nodes) == 0 {
		t.Fatalf("failed to read back node: %v", err)
	}
	return nodes[len(nodes)-1]
}
