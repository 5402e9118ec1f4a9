package logic

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"social_distance/dal"
	"social_distance/dto"
	"social_distance/shared"
)

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_node_registry.go -package mocks social_distance/logic INodeRegistry

type INodeRegistry interface {
	ResolveNode(anyUrl string) (*dal.Node, error)
	AuthenticateCaller(username, password string) (*dal.Node, error)
	InboxAndHost(authorUrl string) (inboxUrl, hostUrl, canonicalUrl string, err error)
	RetrieveAuthor(authorUrl string) (*dto.Author, error)
	ListNodes() ([]*dal.Node, error)
	GetNode(id int64) (*dal.Node, error)
	ProxyAuthors(nodeId int64, page, size int) (status int, body json.RawMessage, err error)
}

type nodeRegistry struct {
	logger shared.ILogger
	repo   dal.IRepo
	client IRemoteClient
}

func NewNodeRegistry(logger shared.ILogger, repo dal.IRepo, client IRemoteClient) INodeRegistry {
	return &nodeRegistry{
		logger: logger,
		repo:   repo,
		client: client,
	}
}

// ResolveNode finds the registered node that owns the given URL. Matching
// is structural on scheme+host, never substring containment.
func (nr *nodeRegistry) ResolveNode(anyUrl string) (*dal.Node, error) {
	hostUrl, err := shared.NormalizeHostUrl(anyUrl)
	if err != nil {
		return nil, shared.Errorf(shared.ErrValidation, "cannot derive host from '%s'", anyUrl)
	}
	nodes, err := nr.repo.GetNodes()
	if err != nil {
		return nil, err
	}
	var matches []*dal.Node
	for _, n := range nodes {
		nodeHost, err := shared.NormalizeHostUrl(n.HostUrl)
		if err != nil {
			continue
		}
		if nodeHost == hostUrl {
			matches = append(matches, n)
		}
	}
	if len(matches) == 0 {
		return nil, shared.Errorf(shared.ErrNotFound, "no registered node for host %s", hostUrl)
	}
	if len(matches) > 1 {
		return nil, shared.Errorf(shared.ErrAmbiguousState, "%d registered nodes match host %s", len(matches), hostUrl)
	}
	return matches[0], nil
}

// AuthenticateCaller matches inbound basic-auth credentials against the
// registered nodes, so every peer presents its own pair. All candidates are
// compared in constant time.
func (nr *nodeRegistry) AuthenticateCaller(username, password string) (*dal.Node, error) {
	nodes, err := nr.repo.GetNodes()
	if err != nil {
		return nil, err
	}
	var match *dal.Node
	for _, n := range nodes {
		if n.InboxUsername == "" {
			continue
		}
		userOk := subtle.ConstantTimeCompare([]byte(username), []byte(n.InboxUsername)) == 1
		passOk := subtle.ConstantTimeCompare([]byte(password), []byte(n.InboxPassword)) == 1
		if userOk && passOk {
			match = n
		}
	}
	if match == nil {
		return nil, shared.Errorf(shared.ErrAuthenticationFailed, "no registered node matches these credentials")
	}
	return match, nil
}

func (nr *nodeRegistry) InboxAndHost(authorUrl string) (string, string, string, error) {
	hostUrl, authorId, err := shared.ParseAuthorUrl(authorUrl)
	if err != nil {
		return "", "", "", err
	}
	canonical := hostUrl + "author/" + authorId + "/"
	return canonical + "inbox/", hostUrl, canonical, nil
}

// RetrieveAuthor fetches a foreign author's profile. First a plain GET;
// if that fails or is rejected, one retry with the owning node's
// credentials.
func (nr *nodeRegistry) RetrieveAuthor(authorUrl string) (*dto.Author, error) {

	var author dto.Author
	err := nr.client.GetJSON(authorUrl, nil, &author)
	if err == nil {
		return &author, nil
	}
	nr.logger.Debugf("Plain profile fetch failed for %s; retrying with node auth: %v", authorUrl, err)

	node, nodeErr := nr.ResolveNode(authorUrl)
	if nodeErr != nil {
		return nil, nodeErr
	}
	if err = nr.client.GetJSON(authorUrl, node, &author); err != nil {
		return nil, err
	}
	return &author, nil
}

func (nr *nodeRegistry) ListNodes() ([]*dal.Node, error) {
	return nr.repo.GetNodes()
}

func (nr *nodeRegistry) GetNode(id int64) (*dal.Node, error) {
	node, err := nr.repo.GetNode(id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, shared.Errorf(shared.ErrNotFound, "node %d does not exist", id)
	}
	return node, nil
}

// ProxyAuthors fetches a page of the remote node's author directory on the
// caller's behalf, using this server's stored credentials for that node.
// The remote's status and body are relayed as-is.
func (nr *nodeRegistry) ProxyAuthors(nodeId int64, page, size int) (int, json.RawMessage, error) {
	node, err := nr.GetNode(nodeId)
	if err != nil {
		return 0, nil, err
	}
	hostUrl, err := shared.NormalizeHostUrl(node.HostUrl)
	if err != nil {
		return 0, nil, shared.Errorf(shared.ErrValidation, "node %d has malformed host url '%s'", nodeId, node.HostUrl)
	}
	url := fmt.Sprintf("%sauthors/?page=%d&size=%d", hostUrl, page, size)
	return nr.client.Get(url, node)
}
