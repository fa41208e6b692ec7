package workspace

import (
	"os"

	"github.com/workforce-hq/workforce/internal/graph"
)

// StopResult mirrors the {killed, errors, stopped_nodes} response shape of
// the stop endpoint (§6).
type StopResult struct {
	Killed       []string `json:"killed"`
	Errors       []string `json:"errors"`
	StoppedNodes []string `json:"stopped_nodes"`
}

// Stop implements §4.E.5: every node currently "running" is killed by PID
// and its status transitioned to "fail", propagating no further than that
// node itself.
func (c *Context) Stop() (StopResult, error) {
	g, err := c.Store.Load()
	if err != nil {
		return StopResult{}, err
	}

	var res StopResult
	for _, n := range g.NodeList() {
		if n.Status != graph.NodeStatusRunning {
			continue
		}
		res.StoppedNodes = append(res.StoppedNodes, n.ID)

		if n.PID > 0 {
			if proc, findErr := os.FindProcess(n.PID); findErr == nil {
				if killErr := proc.Kill(); killErr != nil {
					res.Errors = append(res.Errors, n.ID+": "+killErr.Error())
				} else {
					res.Killed = append(res.Killed, n.ID)
				}
			} else {
				res.Errors = append(res.Errors, n.ID+": "+findErr.Error())
			}
		}

		runID := c.Runs.RunIDForNode(n.ID)
		c.EnqueueStatus(graph.KindNode, n.ID, string(graph.NodeStatusFail), runID)
	}
	return res, nil
}
