package pipeline

import "github.com/poiesic/sibyl/core"

// Monitor provides hooks to observe a pipeline invocation.
// Implement this interface to track intermediate stages and results.
type Monitor interface {
	Start(query string)
	AfterAnalysis(analysis *core.QueryAnalysis)
	AfterRoute(action RouteAction)
	AfterRetrieval(documents int, webResults int, errs map[string]error)
	AfterRanking(contextChars int)
	AfterGeneration(mode core.ServiceMode)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                {}
func (n *noopMonitor) AfterAnalysis(_ *core.QueryAnalysis)           {}
func (n *noopMonitor) AfterRoute(_ RouteAction)                      {}
func (n *noopMonitor) AfterRetrieval(_ int, _ int, _ map[string]error) {}
func (n *noopMonitor) AfterRanking(_ int)                            {}
func (n *noopMonitor) AfterGeneration(_ core.ServiceMode)            {}
func (n *noopMonitor) Finish(_ *Result)                              {}
