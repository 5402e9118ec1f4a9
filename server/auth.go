package server

import (
	"net/http"
	"strings"

	"social_distance/dal"
	"social_distance/logic"
)

// requesterUserId extracts the logged-in user behind a Bearer token.
// Returns 0 when the request carries no valid token; endpoints that demand
// ownership fail on that downstream.
func requesterUserId(accounts logic.IAccounts, r *http.Request) int64 {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return 0
	}
	userId, err := accounts.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return 0
	}
	return userId
}

// callingNode identifies the registered node behind the request's basic-auth
// credentials. Returns nil when no node matches; each peer has its own pair.
func callingNode(nodes logic.INodeRegistry, r *http.Request) *dal.Node {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil
	}
	node, err := nodes.AuthenticateCaller(username, password)
	if err != nil {
		return nil
	}
	return node
}
