package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rauldose/node-red-new-sub000/internal/registry"
)

// NodeHandler exposes the node-type registry so an editor
// can discover what's installed, mirroring GetNodeList/GetNodeInfo.
type NodeHandler struct {
	reg *registry.Registry
}

type nodeTypeSummary struct {
	ID      string   `json:"id"`
	Module  string   `json:"module"`
	Name    string   `json:"name"`
	Types   []string `json:"types"`
	Enabled bool     `json:"enabled"`
	Err     string   `json:"err,omitempty"`
}

func summarize(info *registry.NodeInfo) nodeTypeSummary {
	s := nodeTypeSummary{
		ID:      info.Set.ID(),
		Module:  info.ModuleName,
		Name:    info.Set.Name,
		Types:   info.Set.Types,
		Enabled: info.Set.Enabled,
	}
	if info.Set.Err != nil {
		s.Err = info.Set.Err.Error()
	}
	return s
}

// ListNodeTypes handles GET /api/v1/nodes.
func (h *NodeHandler) ListNodeTypes(w http.ResponseWriter, r *http.Request) {
	infos := h.reg.GetNodeList(nil)
	out := make([]nodeTypeSummary, 0, len(infos))
	for _, info := range infos {
		out = append(out, summarize(info))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetNodeInfo handles GET /api/v1/nodes/{type}.
func (h *NodeHandler) GetNodeInfo(w http.ResponseWriter, r *http.Request) {
	nodeType := mux.Vars(r)["type"]
	info := h.reg.GetNodeInfo(nodeType)
	if info == nil {
		http.Error(w, "unknown node type", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, summarize(info))
}
