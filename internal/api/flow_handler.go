package api

import (
	"encoding/json"
	"net/http"

	"github.com/rauldose/node-red-new-sub000/internal/flowmanager"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// FlowHandler exposes the flow manager's GetFlows/SetFlows operations
// as the management API's deploy surface.
type FlowHandler struct {
	mgr *flowmanager.Manager
}

// GetFlows handles GET /api/v1/flows: the current canonical config
// snapshot.
func (h *FlowHandler) GetFlows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mgr.GetFlows())
}

// setFlowsRequest is the deploy request body: a flow config array
// plus the deployment-type/forceStart arguments.
type setFlowsRequest struct {
	Flows          []model.Element `json:"flows"`
	DeploymentType string          `json:"deploymentType"`
	ForceStart     bool            `json:"forceStart"`
}

// SetFlows handles POST/PUT /api/v1/flows: triggers a deploy via
// flowmanager.Manager.SetFlows and reports success/failure. Deploys
// are partial — SetFlows itself only returns an error on storage
// unavailability — so a 200 here means the deploy was accepted, not
// that every node started.
func (h *FlowHandler) SetFlows(w http.ResponseWriter, r *http.Request) {
	var req setFlowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	deploymentType := flowmanager.DeploymentType(req.DeploymentType)
	if deploymentType == "" {
		deploymentType = flowmanager.Nodes
	}
	if err := h.mgr.SetFlows(r.Context(), req.Flows, deploymentType, req.ForceStart); err != nil {
		http.Error(w, "deploy failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deployed"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
