package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"social_distance/dal"
	"social_distance/dto"
	"social_distance/logic"
	"social_distance/shared"
)

type nodeHandlerGroup struct {
	cfg     *shared.Config
	logger  shared.ILogger
	metrics logic.IMetrics
	nodes   logic.INodeRegistry
}

func NewNodeHandlerGroup(
	cfg *shared.Config,
	logger shared.ILogger,
	metrics logic.IMetrics,
	nodes logic.INodeRegistry,
) IHandlerGroup {
	res := nodeHandlerGroup{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		nodes:   nodes,
	}
	return &res
}

func (hg *nodeHandlerGroup) Prefix() string {
	return "/nodes"
}

func (hg *nodeHandlerGroup) GroupDefs() []handlerDef {
	return []handlerDef{
		{"GET", "", func(w http.ResponseWriter, r *http.Request) { hg.getNodes(w, r) }},
		{"GET", "/{nodeId:[0-9]+}", func(w http.ResponseWriter, r *http.Request) { hg.getNode(w, r) }},
		{"GET", "/{nodeId:[0-9]+}/authors", func(w http.ResponseWriter, r *http.Request) { hg.getNodeAuthors(w, r) }},
	}
}

func (hg *nodeHandlerGroup) AuthMW() func(next http.Handler) http.Handler {
	return emptyMW
}

// Credentials never leave this server; the wire shape has no place for them.
func wireNode(n *dal.Node) *dto.Node {
	return &dto.Node{Id: n.Id, Name: n.Name, HostUrl: n.HostUrl}
}

func (hg *nodeHandlerGroup) nodeIdVar(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["nodeId"], 10, 64)
	return id
}

func (hg *nodeHandlerGroup) getNodes(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("nodes")
	defer obs.Finish()

	nodes, err := hg.nodes.ListNodes()
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	res := make([]*dto.Node, 0, len(nodes))
	for _, n := range nodes {
		res = append(res, wireNode(n))
	}
	writeJsonResponse(hg.logger, w, res)
}

func (hg *nodeHandlerGroup) getNode(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApiRequestIn("node")
	defer obs.Finish()

	node, err := hg.nodes.GetNode(hg.nodeIdVar(r))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	writeJsonResponse(hg.logger, w, wireNode(node))
}

// getNodeAuthors proxies the remote node's author directory, so browsers
// never need that node's credentials. Paging params and the remote's status
// are relayed both ways.
func (hg *nodeHandlerGroup) getNodeAuthors(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartFedRequestIn("node-authors")
	defer obs.Finish()

	status, body, err := hg.nodes.ProxyAuthors(hg.nodeIdVar(r), pageParam(r), sizeParam(r, hg.cfg.PageSize))
	if err != nil {
		writeServiceError(hg.logger, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
