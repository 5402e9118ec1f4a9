package logic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"social_distance/dal"
	"social_distance/shared"
)

const remoteTimeoutSec = 10

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_remote_client.go -package mocks social_distance/logic IRemoteClient

// IRemoteClient is the single place this server talks HTTP to other
// servers. When node is non-nil the request carries that node's basic-auth
// credentials.
type IRemoteClient interface {
	Get(url string, node *dal.Node) (status int, body []byte, err error)
	GetJSON(url string, node *dal.Node, out any) error
	PostJSON(url string, node *dal.Node, payload any) (status int, err error)
	Delete(url string, node *dal.Node) (status int, err error)
}

type remoteClient struct {
	logger    shared.ILogger
	metrics   IMetrics
	userAgent shared.IUserAgent
	client    *http.Client
}

func NewRemoteClient(logger shared.ILogger, metrics IMetrics, userAgent shared.IUserAgent) IRemoteClient {
	return &remoteClient{
		logger:    logger,
		metrics:   metrics,
		userAgent: userAgent,
		client:    &http.Client{Timeout: remoteTimeoutSec * time.Second},
	}
}

func (rc *remoteClient) do(method, url string, node *dal.Node, payload any) (int, []byte, error) {

	obs := rc.metrics.StartFedRequestOut(method)
	defer obs.Finish()

	var bodyReader io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	rc.userAgent.AddUserAgent(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if node != nil {
		req.SetBasicAuth(node.Username, node.Password)
	}

	resp, err := rc.client.Do(req)
	if err != nil {
		return 0, nil, shared.Errorf(shared.ErrRemoteDelivery, "%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, shared.Errorf(shared.ErrRemoteDelivery, "reading %s response failed: %v", url, err)
	}
	return resp.StatusCode, bodyBytes, nil
}

func (rc *remoteClient) Get(url string, node *dal.Node) (int, []byte, error) {
	return rc.do("GET", url, node, nil)
}

func (rc *remoteClient) GetJSON(url string, node *dal.Node, out any) error {
	status, body, err := rc.do("GET", url, node, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", url, status)
	}
	return json.Unmarshal(body, out)
}

func (rc *remoteClient) PostJSON(url string, node *dal.Node, payload any) (int, error) {
	status, _, err := rc.do("POST", url, node, payload)
	return status, err
}

func (rc *remoteClient) Delete(url string, node *dal.Node) (int, error) {
	status, _, err := rc.do("DELETE", url, node, nil)
	return status, err
}
